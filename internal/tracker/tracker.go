// Package tracker records user interactions, derives engagement scores and
// keeps predicted interests up to date.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/store"
)

const (
	maxInteractions = 50

	// Interests are refreshed every interactionRefreshEvery recorded
	// interactions and every viewedRefreshEvery distinct viewed items.
	interactionRefreshEvery = 5
	viewedRefreshEvery      = 3

	defaultTheme = "light"
)

// ErrUserNotFound is returned for operations on users never initialized.
var ErrUserNotFound = errors.New("user not found")

// Personalizer is the subset of the orchestrator the tracker consumes.
type Personalizer interface {
	PredictInterests(ctx context.Context, viewed []model.ContentItem) []string
	PersonalizedSuggestions(ctx context.Context, user model.User, viewed, content []model.ContentItem) []model.ContentItem
	ExplorationPath(ctx context.Context, user model.User, content []model.ContentItem) []model.ContentItem
}

// Catalog supplies the content interactions refer to.
type Catalog interface {
	All() []model.ContentItem
	ByIDs(ids []string) []model.ContentItem
}

// Analytics receives per-source counters.
type Analytics interface {
	TrackNewUser(ctx context.Context, src model.Source)
	TrackEngagement(ctx context.Context, src model.Source, typ model.InteractionType, durationMs int64)
}

// PreferencesUpdate changes selected preference fields. Nil fields are
// left untouched.
type PreferencesUpdate struct {
	Theme     *string
	Interests []string
}

// Tracker owns user documents in the store. Load-modify-save sequences are
// serialized; interest refreshes run in the background on a context that
// lives until Close.
type Tracker struct {
	store     store.Store
	ai        Personalizer
	catalog   Catalog
	analytics Analytics
	clock     clockwork.Clock
	log       zerolog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	bg      context.Context
	cancel  context.CancelFunc
	closing bool
}

// New creates a Tracker. analytics may be nil.
func New(s store.Store, ai Personalizer, catalog Catalog, analytics Analytics, clock clockwork.Clock, log zerolog.Logger) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Tracker{
		store:     s,
		ai:        ai,
		catalog:   catalog,
		analytics: analytics,
		clock:     clock,
		log:       log.With().Str("component", "tracker").Logger(),
		bg:        bg,
		cancel:    cancel,
	}
}

func userKey(id string) string { return "user:" + id }

// InitUser loads userID, creating it when missing. An existing user's
// source is updated when it changed.
func (t *Tracker) InitUser(ctx context.Context, userID string, src model.Source) (model.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, ok, err := t.load(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if ok {
		if user.Source != src {
			user.Source = src
			if err := t.save(ctx, user); err != nil {
				return model.User{}, err
			}
		}
		return user, nil
	}

	user = model.User{
		ID:     userID,
		Source: src,
		Preferences: model.Preferences{
			Theme:         defaultTheme,
			Interests:     []string{},
			ViewedContent: []string{},
		},
	}
	if err := t.save(ctx, user); err != nil {
		return model.User{}, err
	}
	if t.analytics != nil {
		t.analytics.TrackNewUser(ctx, src)
	}
	t.log.Info().Str("user", userID).Str("source", string(src)).Msg("user created")
	return user, nil
}

// User returns the stored user.
func (t *Tracker) User(ctx context.Context, userID string) (model.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mustLoad(ctx, userID)
}

// TrackInteraction records an interaction, keeping the most recent 50.
// Views also mark the content as viewed. Interest refreshes triggered by
// the call run in the background.
func (t *Tracker) TrackInteraction(
	ctx context.Context,
	userID string,
	contentID string,
	typ model.InteractionType,
	durationMs int64,
) error {
	t.mu.Lock()
	user, err := t.mustLoad(ctx, userID)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	prefs := &user.Preferences
	prefs.Interactions = append(prefs.Interactions, model.InteractionRecord{
		ID:         uuid.NewString(),
		ContentID:  contentID,
		Type:       typ,
		Timestamp:  t.clock.Now().UTC(),
		DurationMs: durationMs,
	})
	if n := len(prefs.Interactions); n > maxInteractions {
		prefs.Interactions = append([]model.InteractionRecord(nil), prefs.Interactions[n-maxInteractions:]...)
	}
	prefs.TotalInteractions++

	addedView := typ == model.InteractionView && markViewed(prefs, contentID)

	if err := t.save(ctx, user); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	if t.analytics != nil {
		t.analytics.TrackEngagement(ctx, user.Source, typ, durationMs)
	}

	if prefs.TotalInteractions%interactionRefreshEvery == 0 ||
		(addedView && len(prefs.ViewedContent)%viewedRefreshEvery == 0) {
		t.refresh(userID)
	}
	return nil
}

// TrackContentViewed marks contentID as viewed without recording an
// interaction.
func (t *Tracker) TrackContentViewed(ctx context.Context, userID, contentID string) error {
	t.mu.Lock()
	user, err := t.mustLoad(ctx, userID)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	prefs := &user.Preferences
	if !markViewed(prefs, contentID) {
		t.mu.Unlock()
		return nil
	}
	if err := t.save(ctx, user); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	if len(prefs.ViewedContent)%viewedRefreshEvery == 0 {
		t.refresh(userID)
	}
	return nil
}

// UpdatePreferences applies u to the user's preferences.
func (t *Tracker) UpdatePreferences(ctx context.Context, userID string, u PreferencesUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.mustLoad(ctx, userID)
	if err != nil {
		return err
	}
	if u.Theme != nil {
		user.Preferences.Theme = *u.Theme
	}
	if u.Interests != nil {
		user.Preferences.Interests = append([]string{}, u.Interests...)
	}
	return t.save(ctx, user)
}

// PersonalizedContent orders the catalog for userID. Unknown users get the
// catalog order.
func (t *Tracker) PersonalizedContent(ctx context.Context, userID string) ([]model.ContentItem, error) {
	user, err := t.User(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return t.catalog.All(), nil
	}
	if err != nil {
		return nil, err
	}

	viewed := t.catalog.ByIDs(user.Preferences.ViewedContent)
	return t.ai.PersonalizedSuggestions(ctx, user, viewed, t.catalog.All()), nil
}

// ExplorationPath computes a learning path for userID and remembers it.
func (t *Tracker) ExplorationPath(ctx context.Context, userID string) ([]model.ContentItem, error) {
	user, err := t.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	path := t.ai.ExplorationPath(ctx, user, t.catalog.All())

	ids := make([]string, 0, len(path))
	for _, c := range path {
		ids = append(ids, c.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	user, err = t.mustLoad(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Preferences.LastExplorationPath = ids
	if err := t.save(ctx, user); err != nil {
		return nil, err
	}
	return path, nil
}

// Wait blocks until every pending interest refresh has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels pending refreshes and waits for them to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closing = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// refresh re-predicts the user's interests in the background.
func (t *Tracker) refresh(userID string) {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		if err := t.refreshInterests(t.bg, userID); err != nil {
			t.log.Warn().Err(err).Str("user", userID).Msg("refreshing interests")
		}
	}()
}

func (t *Tracker) refreshInterests(ctx context.Context, userID string) error {
	user, err := t.User(ctx, userID)
	if err != nil {
		return err
	}

	viewed := t.catalog.ByIDs(user.Preferences.ViewedContent)
	if len(viewed) == 0 {
		return nil
	}

	interests := t.ai.PredictInterests(ctx, viewed)
	if len(interests) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	user, err = t.mustLoad(ctx, userID)
	if err != nil {
		return err
	}
	user.Preferences.Interests = interests
	if err := t.save(ctx, user); err != nil {
		return err
	}
	t.log.Debug().Str("user", userID).Strs("interests", interests).Msg("interests updated")
	return nil
}

func markViewed(prefs *model.Preferences, contentID string) bool {
	for _, id := range prefs.ViewedContent {
		if id == contentID {
			return false
		}
	}
	prefs.ViewedContent = append(prefs.ViewedContent, contentID)
	return true
}

func (t *Tracker) load(ctx context.Context, userID string) (model.User, bool, error) {
	var user model.User
	ok, err := store.GetJSON(ctx, t.store, userKey(userID), &user)
	if err != nil {
		return model.User{}, false, fmt.Errorf("loading user %s: %w", userID, err)
	}
	return user, ok, nil
}

func (t *Tracker) mustLoad(ctx context.Context, userID string) (model.User, error) {
	user, ok, err := t.load(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, nil
}

func (t *Tracker) save(ctx context.Context, user model.User) error {
	if err := store.SetJSON(ctx, t.store, userKey(user.ID), user); err != nil {
		return fmt.Errorf("saving user %s: %w", user.ID, err)
	}
	return nil
}
