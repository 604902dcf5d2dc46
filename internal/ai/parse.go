package ai

import (
	"encoding/json"
	"strings"
)

// decodeEmbedded finds a JSON value delimited by open/close inside free
// text and decodes it into dst. The first balanced segment is tried before
// the greedy span from the first open to the last close.
func decodeEmbedded(text string, open, close byte, dst any) bool {
	for _, candidate := range jsonCandidates(text, open, close) {
		if err := json.Unmarshal([]byte(candidate), dst); err == nil {
			return true
		}
	}
	return false
}

func jsonCandidates(text string, open, close byte) []string {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return nil
	}

	var out []string
	if end := matchBracket(text, start, open, close); end > start {
		out = append(out, text[start:end+1])
	}
	if last := strings.LastIndexByte(text, close); last > start {
		greedy := text[start : last+1]
		if len(out) == 0 || out[0] != greedy {
			out = append(out, greedy)
		}
	}
	return out
}

// matchBracket returns the index of the bracket closing the one at start,
// ignoring brackets inside JSON strings, or -1.
func matchBracket(text string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripQuotes removes quote characters and surrounding whitespace from
// free-form model output.
func stripQuotes(s string) string {
	return strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(s))
}
