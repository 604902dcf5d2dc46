package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smart-onboard/internal/analytics"
	"github.com/nhle/smart-onboard/internal/catalog"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/store"
	"github.com/nhle/smart-onboard/internal/testutil"
)

type stubAI struct {
	mu        sync.Mutex
	interests []string
	block     chan struct{}
	predicted [][]string
	path      []model.ContentItem
}

func (s *stubAI) PredictInterests(ctx context.Context, viewed []model.ContentItem) []string {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil
		}
	}

	ids := make([]string, 0, len(viewed))
	for _, c := range viewed {
		ids = append(ids, c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.predicted = append(s.predicted, ids)
	return s.interests
}

func (s *stubAI) PersonalizedSuggestions(_ context.Context, _ model.User, viewed, content []model.ContentItem) []model.ContentItem {
	out := append([]model.ContentItem{}, content...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *stubAI) ExplorationPath(context.Context, model.User, []model.ContentItem) []model.ContentItem {
	return s.path
}

func (s *stubAI) predictions() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.predicted...)
}

type fixture struct {
	tracker   *Tracker
	ai        *stubAI
	analytics *analytics.Service
	store     store.Store
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testutil.NewTestStore(t)
	ai := &stubAI{interests: []string{"design", "ai"}}
	an := analytics.NewService(st, zerolog.Nop())
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	tr := New(st, ai, catalog.Default(), an, clock, zerolog.Nop())
	t.Cleanup(tr.Close)

	return &fixture{tracker: tr, ai: ai, analytics: an, store: st, clock: clock}
}

func TestInitUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, model.SourceBlog, user.Source)
	assert.Equal(t, "light", user.Preferences.Theme)
	assert.Empty(t, user.Preferences.Interests)
	assert.NotNil(t, user.Preferences.ViewedContent)

	user, err = f.tracker.InitUser(ctx, "u1", model.SourceInstagram)
	require.NoError(t, err)
	assert.Equal(t, model.SourceInstagram, user.Source)

	stored, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.SourceInstagram, stored.Source)

	counts := f.analytics.Data(ctx).SourceCounts
	assert.Equal(t, 1, counts[model.SourceBlog])
	assert.Equal(t, 0, counts[model.SourceInstagram])
}

func TestUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.tracker.User(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, f.tracker.TrackInteraction(ctx, "ghost", "1", model.InteractionView, 0), ErrUserNotFound)
	assert.ErrorIs(t, f.tracker.TrackContentViewed(ctx, "ghost", "1"), ErrUserNotFound)
	_, err = f.tracker.EngagementScore(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	content, err := f.tracker.PersonalizedContent(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().All(), content)
}

func TestTrackInteraction_RecordsAndCaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceDirect)
	require.NoError(t, err)

	require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", "1", model.InteractionView, 1200))
	require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", "1", model.InteractionView, 0))

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	prefs := user.Preferences
	require.Len(t, prefs.Interactions, 2)
	assert.Equal(t, []string{"1"}, prefs.ViewedContent)
	assert.NotEmpty(t, prefs.Interactions[0].ID)
	assert.NotEqual(t, prefs.Interactions[0].ID, prefs.Interactions[1].ID)
	assert.Equal(t, f.clock.Now(), prefs.Interactions[0].Timestamp)
	assert.Equal(t, int64(1200), prefs.Interactions[0].DurationMs)

	for i := 0; i < 60; i++ {
		require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", "2", model.InteractionLike, 0))
	}
	f.tracker.Wait()

	user, err = f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, user.Preferences.Interactions, 50)
	assert.Equal(t, 62, user.Preferences.TotalInteractions)
	assert.Equal(t, model.InteractionLike, user.Preferences.Interactions[0].Type)

	eng := f.analytics.Data(ctx).EngagementBySource[model.SourceDirect]
	assert.Equal(t, analytics.Engagement{Views: 2, Clicks: 60, TimeSpentMs: 1200}, eng)
}

func TestRefreshTriggers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	track := func(id string, typ model.InteractionType) {
		require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", id, typ, 0))
		f.tracker.Wait()
	}

	track("1", model.InteractionView)
	track("2", model.InteractionView)
	track("1", model.InteractionLike)
	track("2", model.InteractionLike)
	assert.Empty(t, f.ai.predictions())

	// Fifth interaction and third distinct view: a single refresh.
	track("3", model.InteractionView)
	assert.Equal(t, [][]string{{"1", "2", "3"}}, f.ai.predictions())

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"design", "ai"}, user.Preferences.Interests)

	for i := 0; i < 4; i++ {
		track("1", model.InteractionShare)
	}
	assert.Len(t, f.ai.predictions(), 1)
	track("1", model.InteractionShare)
	assert.Len(t, f.ai.predictions(), 2)
}

func TestTrackContentViewed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	for _, id := range []string{"4", "4", "5"} {
		require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", id))
	}
	f.tracker.Wait()
	assert.Empty(t, f.ai.predictions())

	require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", "1"))
	f.tracker.Wait()
	assert.Equal(t, [][]string{{"4", "5", "1"}}, f.ai.predictions())

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Preferences.Interactions)
	assert.Equal(t, []string{"4", "5", "1"}, user.Preferences.ViewedContent)
}

func TestRefreshDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ai.block = make(chan struct{})
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, id := range []string{"1", "2", "3"} {
			assert.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", id))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracking blocked on interest refresh")
	}

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Preferences.Interests)

	close(f.ai.block)
	f.tracker.Wait()

	user, err = f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"design", "ai"}, user.Preferences.Interests)
}

func TestCloseCancelsRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ai.block = make(chan struct{})
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", id))
	}
	f.tracker.Close()

	assert.Empty(t, f.ai.predictions())
	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Preferences.Interests)

	// No refresh is started after Close.
	require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", "4"))
	require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", "5"))
	require.NoError(t, f.tracker.TrackContentViewed(ctx, "u1", "6"))
	f.tracker.Wait()
	assert.Empty(t, f.ai.predictions())
}

func TestEngagementScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	eng, err := f.tracker.EngagementScore(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Engagement{BySource: map[model.Source]int{
		model.SourceInstagram: 0,
		model.SourceReferral:  0,
		model.SourceBlog:      0,
		model.SourceDirect:    0,
		model.SourceUnknown:   0,
	}}, eng)

	// View with a 50s duration: weight 1 plus the capped bonus of 3.
	require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", "1", model.InteractionView, 50000))
	// Like on content missing from the catalog: counted overall only.
	require.NoError(t, f.tracker.TrackInteraction(ctx, "u1", "missing", model.InteractionLike, 0))

	eng, err = f.tracker.EngagementScore(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 70, eng.Overall)
	assert.Equal(t, map[model.Source]int{
		model.SourceBlog:      90,
		model.SourceReferral:  70,
		model.SourceInstagram: 60,
		model.SourceDirect:    50,
		model.SourceUnknown:   0,
	}, eng.BySource)
}

func TestScoreEngagement_Caps(t *testing.T) {
	recs := []model.InteractionRecord{
		{ContentID: "1", Type: model.InteractionShare},
		{ContentID: "1", Type: model.InteractionView, DurationMs: 1_000_000},
	}
	eng := scoreEngagement(recs, catalog.Default())

	// (5 + 1 + 3) / 10
	assert.Equal(t, 90, eng.Overall)
	// blog: (4.5 + 0.9) / 2 exceeds 1 and is capped.
	assert.Equal(t, 100, eng.BySource[model.SourceBlog])
	// direct: (2.5 + 0.5) / 2
	assert.Equal(t, 100, eng.BySource[model.SourceDirect])
	assert.Equal(t, 0, eng.BySource[model.SourceUnknown])
}

func TestPersonalizedContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	content, err := f.tracker.PersonalizedContent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, content, 5)
	assert.Equal(t, "5", content[0].ID)
}

func TestExplorationPathIsRemembered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	f.ai.path = catalog.Default().ByIDs([]string{"2", "4", "1"})
	path, err := f.tracker.ExplorationPath(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, path, 3)

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "1"}, user.Preferences.LastExplorationPath)
}

func TestUpdatePreferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.tracker.InitUser(ctx, "u1", model.SourceBlog)
	require.NoError(t, err)

	dark := "dark"
	require.NoError(t, f.tracker.UpdatePreferences(ctx, "u1", PreferencesUpdate{Theme: &dark}))
	require.NoError(t, f.tracker.UpdatePreferences(ctx, "u1", PreferencesUpdate{Interests: []string{"ux"}}))

	user, err := f.tracker.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "dark", user.Preferences.Theme)
	assert.Equal(t, []string{"ux"}, user.Preferences.Interests)

	assert.ErrorIs(t, f.tracker.UpdatePreferences(ctx, "ghost", PreferencesUpdate{}), ErrUserNotFound)
}
