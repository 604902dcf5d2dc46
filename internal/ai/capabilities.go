package ai

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/smart-onboard/internal/genclient"
	"github.com/nhle/smart-onboard/internal/model"
)

const interestBoost = 10

// generate issues one capability request. It reports false when no model
// became ready within initWait or the request failed, in which case the
// caller returns its fallback. A zero initWait waits up to timeout.
func (o *Orchestrator) generate(
	ctx context.Context,
	capability string,
	prompt string,
	params genclient.Params,
	timeout time.Duration,
	initWait time.Duration,
) (string, bool) {
	if initWait <= 0 {
		initWait = timeout
	}

	m := o.ensureReady(ctx, initWait)
	if m == nil {
		o.log.Debug().Str("capability", capability).Msg("model not initialized, using fallback")
		return "", false
	}

	text, err := genclient.Call(ctx, m, prompt, &params, timeout)
	if err != nil {
		o.handleCallError(capability, m, err)
		return "", false
	}
	return text, true
}

// ScoreRelevance rates content for every known source (0-100). Sources the
// model omits keep the default of 50.
func (o *Orchestrator) ScoreRelevance(ctx context.Context, content model.ContentItem) map[model.Source]int {
	scores := DefaultRelevance()

	text, ok := o.generate(ctx, "relevance", relevancePrompt(content), relevanceParams, o.cfg.Timeouts.Relevance, 0)
	if !ok {
		return scores
	}

	var raw map[string]any
	if !decodeEmbedded(text, '{', '}', &raw) {
		o.log.Warn().Str("capability", "relevance").Msg("unparsable response, using fallback")
		return scores
	}
	for k, v := range raw {
		src := model.Source(strings.ToLower(strings.TrimSpace(k)))
		if _, known := scores[src]; !known {
			continue
		}
		if n, ok := toScore(v); ok {
			scores[src] = n
		}
	}
	return scores
}

// WelcomeMessage returns a short greeting for source. Initialization is
// awaited for at most the configured welcome wait.
func (o *Orchestrator) WelcomeMessage(ctx context.Context, source model.Source) string {
	text, ok := o.generate(ctx, "welcome", welcomePrompt(source), welcomeParams, o.cfg.Timeouts.Welcome, o.cfg.WelcomeInitWait)
	if !ok {
		return DefaultWelcome(source)
	}
	if msg := stripQuotes(text); msg != "" {
		return msg
	}
	return DefaultWelcome(source)
}

// PersonalizedSummary rewrites the content description for source, or
// returns it untouched.
func (o *Orchestrator) PersonalizedSummary(ctx context.Context, content model.ContentItem, source model.Source) string {
	text, ok := o.generate(ctx, "summary", summaryPrompt(content, source), summaryParams, o.cfg.Timeouts.Summary, 0)
	if !ok {
		return content.Description
	}
	if summary := stripQuotes(text); summary != "" {
		return summary
	}
	return content.Description
}

// PredictInterests returns up to five interest labels for viewed content,
// given oldest first. No history yields an empty list without a request.
func (o *Orchestrator) PredictInterests(ctx context.Context, viewed []model.ContentItem) []string {
	if len(viewed) == 0 {
		return []string{}
	}

	text, ok := o.generate(ctx, "interests", interestsPrompt(recentWindow(viewed)), interestsParams, o.cfg.Timeouts.Interests, 0)
	if !ok {
		return FallbackInterests(viewed)
	}
	if interests := parseInterests(text); len(interests) > 0 {
		return interests
	}
	return FallbackInterests(viewed)
}

// RankRecommendations orders content for user. The result is always a
// permutation of content; without a usable model answer it is the
// source-relevance ranking.
func (o *Orchestrator) RankRecommendations(ctx context.Context, user model.User, content []model.ContentItem) []model.ContentItem {
	ranked := RankBySource(content, user.Source)
	if len(ranked) < 2 {
		return ranked
	}

	text, ok := o.generate(ctx, "ranking", rankingPrompt(user, ranked), rankingParams, o.cfg.Timeouts.Ranking, 0)
	if !ok {
		return ranked
	}
	ids, ok := parseIDs(text)
	if !ok {
		return ranked
	}

	ordered := pickByIDs(ranked, ids, len(ranked))
	return pad(ordered, ranked, len(ranked))
}

// ExplorationPath picks three items leading from familiar to novel topics.
// Users without recorded interests get the top of the source ranking.
func (o *Orchestrator) ExplorationPath(ctx context.Context, user model.User, content []model.ContentItem) []model.ContentItem {
	ranked := RankBySource(content, user.Source)
	if len(user.Preferences.Interests) == 0 || len(ranked) == 0 {
		return firstN(ranked, explorationLength)
	}

	options := firstN(ranked, explorationOptions)
	text, ok := o.generate(ctx, "exploration", explorationPrompt(user, options), explorationParams, o.cfg.Timeouts.Exploration, 0)
	if !ok {
		return fallbackPath(user, content)
	}
	ids, ok := parseIDs(text)
	if !ok {
		o.log.Warn().Str("capability", "exploration").Msg("no ID array in response, using fallback")
		return fallbackPath(user, content)
	}

	path := pickByIDs(content, ids, explorationLength)
	return pad(path, ranked, explorationLength)
}

// PersonalizedSuggestions ranks content by source relevance boosted by the
// interests predicted from viewed. Without history it is RankRecommendations.
func (o *Orchestrator) PersonalizedSuggestions(
	ctx context.Context,
	user model.User,
	viewed []model.ContentItem,
	content []model.ContentItem,
) []model.ContentItem {
	if len(viewed) == 0 {
		return o.RankRecommendations(ctx, user, content)
	}

	interests := o.PredictInterests(ctx, viewed)

	type scored struct {
		item  model.ContentItem
		score int
	}
	items := make([]scored, 0, len(content))
	for _, c := range content {
		base := c.Relevance(user.Source)
		if base == 0 {
			base = defaultRelevance
		}
		items = append(items, scored{item: c, score: base + interestScore(c.Tags, interests)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]model.ContentItem, 0, len(items))
	for _, s := range items {
		out = append(out, s.item)
	}
	return out
}

func interestScore(tags, interests []string) int {
	score := 0
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, interest := range interests {
			i := strings.ToLower(interest)
			if strings.Contains(i, t) || strings.Contains(t, i) {
				score += interestBoost
			}
		}
	}
	return score
}

func toScore(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), true
}

func parseInterests(text string) []string {
	var raw []any
	if decodeEmbedded(text, '[', ']', &raw) {
		var out []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return firstStrings(out, maxInterests)
		}
	}

	clean := strings.NewReplacer(`"`, "", `'`, "", "[", "", "]", "")
	var out []string
	for _, part := range strings.Split(text, ",") {
		if s := strings.TrimSpace(clean.Replace(part)); s != "" {
			out = append(out, s)
		}
	}
	return firstStrings(out, maxInterests)
}

// parseIDs extracts a JSON array of content IDs. Numeric IDs are accepted.
func parseIDs(text string) ([]string, bool) {
	var raw []any
	if !decodeEmbedded(text, '[', ']', &raw) {
		return nil, false
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			ids = append(ids, strings.TrimSpace(id))
		case float64:
			ids = append(ids, strconv.FormatFloat(id, 'f', -1, 64))
		}
	}
	return ids, true
}

// pickByIDs maps ids to items of pool in id order, skipping unknown and
// repeated ids, up to limit items.
func pickByIDs(pool []model.ContentItem, ids []string, limit int) []model.ContentItem {
	byID := make(map[string]model.ContentItem, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}

	seen := make(map[string]bool, len(ids))
	out := make([]model.ContentItem, 0, limit)
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		c, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}

// pad appends items from ranked not yet in path until path has n items.
func pad(path, ranked []model.ContentItem, n int) []model.ContentItem {
	selected := make(map[string]bool, len(path))
	for _, c := range path {
		selected[c.ID] = true
	}
	for _, c := range ranked {
		if len(path) >= n {
			break
		}
		if selected[c.ID] {
			continue
		}
		selected[c.ID] = true
		path = append(path, c)
	}
	return path
}

func firstStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
