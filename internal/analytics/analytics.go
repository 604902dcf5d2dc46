// Package analytics keeps per-source user counts and engagement counters.
package analytics

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/store"
)

// StorageKey is the store key holding the analytics document.
const StorageKey = "analytics-data"

// Engagement counts activity attributed to one source.
type Engagement struct {
	Views       int   `json:"views"`
	Clicks      int   `json:"clicks"`
	TimeSpentMs int64 `json:"timeSpentMs"`
}

// Data is the persisted analytics document.
type Data struct {
	SourceCounts       map[model.Source]int        `json:"sourceCounts"`
	EngagementBySource map[model.Source]Engagement `json:"engagementBySource"`
}

// Empty returns a document with zeroed entries for every known source.
func Empty() Data {
	d := Data{
		SourceCounts:       model.SourceScores(0),
		EngagementBySource: make(map[model.Source]Engagement, len(model.KnownSources)),
	}
	for _, src := range model.KnownSources {
		d.EngagementBySource[src] = Engagement{}
	}
	return d
}

// Service records analytics. Storage failures are logged and swallowed.
type Service struct {
	store store.Store
	log   zerolog.Logger
	mu    sync.Mutex
}

// NewService creates a Service backed by s.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: s,
		log:   log.With().Str("component", "analytics").Logger(),
	}
}

// TrackNewUser increments the user count for src.
func (s *Service) TrackNewUser(ctx context.Context, src model.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.load(ctx)
	d.SourceCounts[src]++
	s.save(ctx, d)
}

// TrackEngagement counts an interaction for src. Views add to views and
// time spent; every other type counts as a click.
func (s *Service) TrackEngagement(ctx context.Context, src model.Source, typ model.InteractionType, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.load(ctx)
	e := d.EngagementBySource[src]
	if typ == model.InteractionView {
		e.Views++
		if durationMs > 0 {
			e.TimeSpentMs += durationMs
		}
	} else {
		e.Clicks++
	}
	d.EngagementBySource[src] = e
	s.save(ctx, d)
}

// Data returns the current analytics, or an empty document when nothing
// was recorded or storage fails.
func (s *Service) Data(ctx context.Context) Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Reset replaces the stored document with an empty one.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx, Empty())
}

func (s *Service) load(ctx context.Context) Data {
	d := Empty()
	var stored Data
	ok, err := store.GetJSON(ctx, s.store, StorageKey, &stored)
	if err != nil {
		s.log.Error().Err(err).Msg("loading analytics")
		return d
	}
	if !ok {
		return d
	}
	for src, n := range stored.SourceCounts {
		d.SourceCounts[src] = n
	}
	for src, e := range stored.EngagementBySource {
		d.EngagementBySource[src] = e
	}
	return d
}

func (s *Service) save(ctx context.Context, d Data) {
	if err := store.SetJSON(ctx, s.store, StorageKey, d); err != nil {
		s.log.Error().Err(err).Msg("saving analytics")
	}
}
