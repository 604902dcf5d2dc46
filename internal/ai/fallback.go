package ai

import (
	"slices"
	"sort"

	"github.com/nhle/smart-onboard/internal/model"
)

const (
	defaultRelevance   = 50
	maxInterests       = 5
	interestWindow     = 10
	explorationLength  = 3
	explorationOptions = 15
)

var welcomeMessages = map[model.Source]string{
	model.SourceInstagram: "Welcome from Instagram! Check out our visual experience.",
	model.SourceReferral:  "Thanks for joining through a referral! Here's what your friends love.",
	model.SourceBlog:      "Welcome, blog reader! Dive deeper into our content.",
	model.SourceDirect:    "Welcome to SmartOnboardAI! Discover personalized content.",
	model.SourceUnknown:   "Welcome! Let's personalize your experience.",
}

// DefaultRelevance returns a relevance map with every known source at 50.
func DefaultRelevance() map[model.Source]int {
	return model.SourceScores(defaultRelevance)
}

// DefaultWelcome returns the canned welcome message for source.
func DefaultWelcome(source model.Source) string {
	if msg, ok := welcomeMessages[source]; ok {
		return msg
	}
	return welcomeMessages[model.SourceUnknown]
}

// FallbackInterests ranks tags across the most recent viewed items by
// frequency, ties keeping first-seen order, and returns at most five.
func FallbackInterests(viewed []model.ContentItem) []string {
	counts := make(map[string]int)
	var order []string
	for _, item := range recentWindow(viewed) {
		for _, tag := range item.Tags {
			if tag == "" {
				continue
			}
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxInterests {
		order = order[:maxInterests]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// RankBySource orders content by its relevance for source, highest first.
// Items with equal relevance keep their input order. The input is not
// modified.
func RankBySource(content []model.ContentItem, source model.Source) []model.ContentItem {
	ranked := slices.Clone(content)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance(source) > ranked[j].Relevance(source)
	})
	if ranked == nil {
		return []model.ContentItem{}
	}
	return ranked
}

func fallbackPath(user model.User, content []model.ContentItem) []model.ContentItem {
	return firstN(RankBySource(content, user.Source), explorationLength)
}

// recentWindow returns the last interestWindow items, oldest first.
func recentWindow(viewed []model.ContentItem) []model.ContentItem {
	if len(viewed) > interestWindow {
		return viewed[len(viewed)-interestWindow:]
	}
	return viewed
}

func firstN(items []model.ContentItem, n int) []model.ContentItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
