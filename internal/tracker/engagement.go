package tracker

import (
	"context"
	"math"

	"github.com/nhle/smart-onboard/internal/model"
)

const (
	maxWeight       = 5
	maxViewBonus    = 3
	viewBonusUnitMs = 10000
)

var interactionWeights = map[model.InteractionType]float64{
	model.InteractionView:    1,
	model.InteractionLike:    3,
	model.InteractionShare:   5,
	model.InteractionSave:    4,
	model.InteractionComment: 4,
}

// Engagement scores a user's activity on a 0-100 scale.
type Engagement struct {
	Overall  int                  `json:"overall"`
	BySource map[model.Source]int `json:"bySource"`
}

func weight(typ model.InteractionType) float64 {
	if w, ok := interactionWeights[typ]; ok {
		return w
	}
	return 1
}

// EngagementScore computes the user's engagement from their recorded
// interactions. No history scores zero everywhere.
func (t *Tracker) EngagementScore(ctx context.Context, userID string) (Engagement, error) {
	user, err := t.User(ctx, userID)
	if err != nil {
		return Engagement{}, err
	}
	return scoreEngagement(user.Preferences.Interactions, t.catalog), nil
}

func scoreEngagement(interactions []model.InteractionRecord, catalog Catalog) Engagement {
	e := Engagement{BySource: model.SourceScores(0)}
	if len(interactions) == 0 {
		return e
	}

	var total float64
	for _, rec := range interactions {
		total += weight(rec.Type)
		if rec.Type == model.InteractionView && rec.DurationMs > 0 {
			total += math.Min(float64(rec.DurationMs)/viewBonusUnitMs, maxViewBonus)
		}
	}
	e.Overall = percent(total / float64(len(interactions)*maxWeight))

	ids := make([]string, 0, len(interactions))
	for _, rec := range interactions {
		ids = append(ids, rec.ContentID)
	}
	content := make(map[string]model.ContentItem)
	for _, c := range catalog.ByIDs(ids) {
		content[c.ID] = c
	}

	sums := make(map[model.Source]float64)
	counts := make(map[model.Source]int)
	for _, rec := range interactions {
		c, ok := content[rec.ContentID]
		if !ok {
			continue
		}
		for src, relevance := range c.SourceRelevance {
			sums[src] += float64(relevance) * weight(rec.Type) / 100
			counts[src]++
		}
	}
	for src, n := range counts {
		e.BySource[src] = percent(sums[src] / float64(n))
	}
	return e
}

// percent scales a fraction to 0-100, rounding and capping at 100.
func percent(f float64) int {
	return int(math.Min(math.Round(f*100), 100))
}
