package model

import "strings"

// Source identifies the channel through which a user reached the app.
type Source string

const (
	SourceInstagram Source = "instagram"
	SourceReferral  Source = "referral"
	SourceBlog      Source = "blog"
	SourceDirect    Source = "direct"
	SourceUnknown   Source = "unknown"
)

// KnownSources lists every source in display order.
var KnownSources = []Source{
	SourceInstagram,
	SourceReferral,
	SourceBlog,
	SourceDirect,
	SourceUnknown,
}

// ParseSource normalizes s into a known Source, falling back to
// SourceUnknown for anything unrecognized.
func ParseSource(s string) Source {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownSources {
		if src == known {
			return src
		}
	}
	return SourceUnknown
}

// SourceScores returns a map holding value for every known source.
func SourceScores(value int) map[Source]int {
	scores := make(map[Source]int, len(KnownSources))
	for _, src := range KnownSources {
		scores[src] = value
	}
	return scores
}
