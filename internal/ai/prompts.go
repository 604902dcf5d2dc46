package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/smart-onboard/internal/genclient"
	"github.com/nhle/smart-onboard/internal/model"
)

var (
	relevanceParams   = genclient.Params{Temperature: 0.2, MaxOutputTokens: 256}
	welcomeParams     = genclient.Params{Temperature: 0.7, MaxOutputTokens: 128}
	summaryParams     = genclient.Params{Temperature: 0.7, MaxOutputTokens: 200}
	interestsParams   = genclient.Params{Temperature: 0.3, MaxOutputTokens: 256}
	rankingParams     = genclient.Params{Temperature: 0.3, MaxOutputTokens: 256}
	explorationParams = genclient.Params{Temperature: 0.5, MaxOutputTokens: 256}
)

func relevancePrompt(c model.ContentItem) string {
	return fmt.Sprintf(`Analyze this content and rate its relevance (0-100) for users coming from different sources:

Title: %s
Description: %s
Tags: %s

Return ratings for instagram, referral, blog, direct and unknown traffic sources in JSON format:
{"instagram": 0-100, "referral": 0-100, "blog": 0-100, "direct": 0-100, "unknown": 0-100}`,
		c.Title, c.Description, strings.Join(c.Tags, ", "))
}

func welcomePrompt(source model.Source) string {
	return fmt.Sprintf(`Generate a short, friendly welcome message for a user coming from %s.
The message should be personalized to this source but keep it under 100 characters.
Don't include quotes in your response.`, source)
}

func summaryPrompt(c model.ContentItem, source model.Source) string {
	return fmt.Sprintf(`Create a personalized summary of the following content for a user coming from %[1]s.

Title: %[2]s
Description: %[3]s
Tags: %[4]s

The summary should:
- Be around 2-3 sentences
- Highlight aspects most relevant to %[1]s users
- Use a tone appropriate for %[1]s (e.g., visual focus for instagram, detailed for blog)
- Not use quotation marks in the output`,
		source, c.Title, c.Description, strings.Join(c.Tags, ", "))
}

func interestsPrompt(viewed []model.ContentItem) string {
	var b strings.Builder
	for i, item := range viewed {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\nTags: %s", item.Title, strings.Join(item.Tags, ", "))
	}
	return fmt.Sprintf(`Based on the following content viewed by a user, predict their top %d interest areas.
Return just the list of interests as a JSON array of strings.

Content viewed:
%s`, maxInterests, b.String())
}

type contentSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Tags      string `json:"tags"`
	Relevance int    `json:"relevance"`
}

func summarize(content []model.ContentItem, source model.Source) string {
	out := make([]contentSummary, 0, len(content))
	for _, c := range content {
		out = append(out, contentSummary{
			ID:        c.ID,
			Title:     c.Title,
			Tags:      strings.Join(c.Tags, ", "),
			Relevance: c.Relevance(source),
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func rankingPrompt(user model.User, content []model.ContentItem) string {
	return fmt.Sprintf(`Order the following content for a user coming from %s with interests: %s.
Put the most engaging items for this user first.

Return only the IDs in a JSON array, for example: ["id1", "id2"]

Content options:
%s`, user.Source, interestsText(user), summarize(content, user.Source))
}

func explorationPrompt(user model.User, content []model.ContentItem) string {
	return fmt.Sprintf(`I need to create an exploration path (a sequence of %[1]d content pieces) for a user with:
- Source: %[2]s
- Interests: %[3]s

The goal is to gradually expand their knowledge from familiar to new topics.

From the following content options, select the %[1]d pieces that would form the best
exploration path, starting with something familiar and gradually introducing new concepts.

Return only the IDs in a JSON array like this: ["id1", "id2", "id3"]

Content options:
%[4]s`, explorationLength, user.Source, interestsText(user), summarize(content, user.Source))
}

func interestsText(user model.User) string {
	if len(user.Preferences.Interests) == 0 {
		return "none recorded"
	}
	return strings.Join(user.Preferences.Interests, ", ")
}
