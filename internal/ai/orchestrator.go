// Package ai orchestrates the generative API: it owns the initialization
// state machine with its retry policies and exposes capabilities that always
// return a usable value, falling back to deterministic local results.
package ai

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/smart-onboard/internal/credential"
	"github.com/nhle/smart-onboard/internal/genclient"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/status"
)

const (
	probePrompt    = "Test?"
	probeMaxTokens = 10
)

// Credentials is the part of the credential resolver the orchestrator needs.
type Credentials interface {
	Status(ctx context.Context) credential.Status
	APIKey(ctx context.Context) (string, bool)
}

// Orchestrator manages one connection to the generative API.
type Orchestrator struct {
	cfg      model.AIConfig
	creds    Credentials
	factory  genclient.Factory
	registry *status.Registry
	clock    clockwork.Clock
	log      zerolog.Logger

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	state            State
	cause            FailureCause
	attempted        bool
	retryCount       int
	retryPending     bool
	resurrected      bool
	epoch            uint64
	model            genclient.Model
	attemptCancel    context.CancelFunc
	nextAttemptAt    time.Time
	lastQuotaIssueAt time.Time
	lastAuthErrorAt  time.Time
	lastAuthMessage  string
	timers           map[*pendingTimer]struct{}
	closed           bool
}

// New creates an Orchestrator. Nothing happens until Start is called or a
// capability is invoked.
func New(
	cfg model.AIConfig,
	creds Credentials,
	factory genclient.Factory,
	registry *status.Registry,
	log zerolog.Logger,
	clock clockwork.Clock,
) *Orchestrator {
	cfg = withDefaults(cfg)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if registry == nil {
		registry = status.NewRegistry(clock)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		creds:    creds,
		factory:  factory,
		registry: registry,
		clock:    clock,
		log:      log.With().Str("component", "ai").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateUninitialized,
		cause:    CauseNone,
		timers:   make(map[*pendingTimer]struct{}),
	}
}

// withDefaults fills unset fields from model.DefaultAIConfig. Timeouts,
// waits, backoff and resurrection must be positive; the plain delays may be
// zero, meaning immediately.
func withDefaults(cfg model.AIConfig) model.AIConfig {
	def := model.DefaultAIConfig()

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if len(cfg.Models) == 0 {
		cfg.Models = def.Models
	}
	if len(cfg.ProbeModels) == 0 {
		cfg.ProbeModels = def.ProbeModels
	}

	positive := func(d *time.Duration, fallback time.Duration) {
		if *d <= 0 {
			*d = fallback
		}
	}
	positive(&cfg.ProbeTimeout, def.ProbeTimeout)
	positive(&cfg.ProbeBackoffBase, def.ProbeBackoffBase)
	positive(&cfg.ProbeBackoffCap, def.ProbeBackoffCap)
	positive(&cfg.ErrorBackoffBase, def.ErrorBackoffBase)
	positive(&cfg.ErrorBackoffCap, def.ErrorBackoffCap)
	positive(&cfg.ResurrectionDelay, def.ResurrectionDelay)
	positive(&cfg.WelcomeInitWait, def.WelcomeInitWait)
	positive(&cfg.Timeouts.Relevance, def.Timeouts.Relevance)
	positive(&cfg.Timeouts.Welcome, def.Timeouts.Welcome)
	positive(&cfg.Timeouts.Summary, def.Timeouts.Summary)
	positive(&cfg.Timeouts.Interests, def.Timeouts.Interests)
	positive(&cfg.Timeouts.Ranking, def.Timeouts.Ranking)
	positive(&cfg.Timeouts.Exploration, def.Timeouts.Exploration)

	nonNegative := func(d *time.Duration, fallback time.Duration) {
		if *d < 0 {
			*d = fallback
		}
	}
	nonNegative(&cfg.StartDelay, def.StartDelay)
	nonNegative(&cfg.ProbeDelay, def.ProbeDelay)
	nonNegative(&cfg.QuotaDelay, def.QuotaDelay)
	nonNegative(&cfg.ReinitDelay, def.ReinitDelay)

	return cfg
}

// Start schedules the first initialization after the configured start delay
// so that startup is never blocked on the network.
func (o *Orchestrator) Start() {
	o.after(o.cfg.StartDelay, o.trigger)
}

// Close stops pending timers and cancels any in-flight attempt.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.epoch++
	for pt := range o.timers {
		if pt.t != nil {
			pt.t.Stop()
		}
	}
	o.timers = nil
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	o.model = nil
	o.mu.Unlock()

	o.cancel()
}

// Initialize runs an initialization attempt, or joins the one in flight,
// and reports whether a model is ready afterwards. The attempt itself runs
// on the orchestrator's context; ctx only bounds the wait.
func (o *Orchestrator) Initialize(ctx context.Context) bool {
	return o.ensureReady(ctx, 0) != nil
}

// OnNetworkRegained resets every counter and flag, including a permanent
// failure, and starts a fresh initialization.
func (o *Orchestrator) OnNetworkRegained() {
	o.log.Info().Msg("network connection restored, reinitializing")
	o.reset()
	go o.trigger()
}

// OnCredentialUpdated behaves like OnNetworkRegained and also clears the
// process-wide authentication marker.
func (o *Orchestrator) OnCredentialUpdated() {
	o.log.Info().Msg("API key updated, reinitializing")
	o.registry.ClearAuthenticationError()
	o.reset()
	go o.trigger()
}

// IsExperiencingQuotaIssues reports whether automatic retries are
// exhausted or suppressed.
func (o *Orchestrator) IsExperiencingQuotaIssues() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quotaIssuesLocked()
}

// APIStatus returns the current initialization bookkeeping.
func (o *Orchestrator) APIStatus() APIStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := APIStatus{
		Available:               o.state == StateReady,
		Initialized:             o.state == StateReady,
		InitializationAttempted: o.attempted,
		QuotaIssues:             o.quotaIssuesLocked(),
		State:                   o.state,
		Cause:                   o.cause,
		RetryCount:              o.retryCount,
		MaxRetries:              o.cfg.MaxRetries,
		NextAttemptAt:           o.nextAttemptAt,
		LastQuotaIssueAt:        o.lastQuotaIssueAt,
		LastAuthErrorAt:         o.lastAuthErrorAt,
		LastAuthErrorMessage:    o.lastAuthMessage,
	}
	if o.model != nil {
		st.Model = o.model.Name()
	}
	return st
}

func (o *Orchestrator) quotaIssuesLocked() bool {
	return o.state == StateFailedPermanent || o.retryCount >= o.cfg.MaxRetries
}

func (o *Orchestrator) trigger() {
	o.ensureReady(o.ctx, 0)
}

// ensureReady returns the ready model, starting or joining an
// initialization attempt when the guard allows one. wait bounds how long
// the caller blocks; zero waits for the attempt to finish.
func (o *Orchestrator) ensureReady(ctx context.Context, wait time.Duration) genclient.Model {
	o.mu.Lock()
	if o.state == StateReady {
		m := o.model
		o.mu.Unlock()
		return m
	}
	if o.state != StateProbing && !o.canAttemptLocked() {
		o.mu.Unlock()
		return nil
	}
	epoch := o.epoch
	o.mu.Unlock()

	ch := o.group.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		o.attempt(epoch)
		return nil, nil
	})

	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ch:
	case <-timeout:
	case <-ctx.Done():
	}

	return o.readyModel()
}

func (o *Orchestrator) readyModel() genclient.Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateReady {
		return nil
	}
	return o.model
}

// canAttemptLocked is the entry guard for a new attempt.
func (o *Orchestrator) canAttemptLocked() bool {
	switch {
	case o.closed:
		return false
	case o.state == StateReady, o.state == StateProbing, o.state == StateFailedPermanent:
		return false
	case o.retryPending:
		return false
	case o.attempted && o.retryCount >= o.cfg.MaxRetries:
		return false
	}
	return true
}

// attempt performs one initialization sequence for epoch. Results are
// dropped when a reset bumped the epoch meanwhile.
func (o *Orchestrator) attempt(epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch || !o.canAttemptLocked() {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(o.ctx)
	o.attempted = true
	o.state = StateProbing
	o.attemptCancel = cancel
	o.mu.Unlock()

	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.failUnexpected(epoch, fmt.Errorf("panic during initialization: %v", r))
		}
	}()

	st := o.creds.Status(ctx)
	if !st.HasKey || !st.KeyValid {
		o.abortUnconfigured(epoch, st)
		return
	}
	key, ok := o.creds.APIKey(ctx)
	if !ok {
		o.abortUnconfigured(epoch, st)
		return
	}

	if m := o.optimistic(ctx, key); m != nil {
		o.markReady(epoch, m)
		return
	}

	o.log.Info().Msg("no model could be constructed without testing, probing")
	o.probe(ctx, epoch, key)
}

func (o *Orchestrator) optimistic(ctx context.Context, key string) genclient.Model {
	params := genclient.Params{
		Temperature:     o.cfg.Temperature,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	}
	for _, name := range o.cfg.Models {
		m, err := o.factory.NewModel(ctx, key, name, params)
		if err == nil {
			o.log.Info().Str("model", name).Msg("initialized model without testing")
			return m
		}
		if genclient.Classify(err) != genclient.KindNotFound {
			o.log.Warn().Err(err).Str("model", name).Msg("failed to initialize model")
		}
	}
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, epoch uint64, key string) {
	params := genclient.Params{
		Temperature:     o.cfg.Temperature,
		MaxOutputTokens: probeMaxTokens,
	}

	for _, name := range o.cfg.ProbeModels {
		if err := o.sleep(ctx, o.cfg.ProbeDelay); err != nil {
			return
		}

		m, err := o.factory.NewModel(ctx, key, name, params)
		if err == nil {
			_, err = genclient.Call(ctx, m, probePrompt, nil, o.cfg.ProbeTimeout)
		}
		if err == nil {
			o.log.Info().Str("model", name).Msg("probe succeeded")
			o.markReady(epoch, m)
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch genclient.Classify(err) {
		case genclient.KindAuth:
			o.failAuth(epoch, err)
			return
		case genclient.KindQuota:
			o.log.Warn().Str("model", name).Msg("quota or rate limit hit, trying next model after a longer delay")
			if err := o.sleep(ctx, o.cfg.QuotaDelay); err != nil {
				return
			}
		case genclient.KindNotFound:
			o.log.Debug().Str("model", name).Msg("model not found")
		default:
			o.log.Warn().Err(err).Str("model", name).Msg("probe failed")
		}
	}

	o.failAttempt(epoch)
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := o.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

func (o *Orchestrator) abortUnconfigured(epoch uint64, st credential.Status) {
	if !st.HasKey {
		o.log.Error().Msg("no Gemini API key available, add one with 'smartonboard key set'")
	} else {
		o.log.Error().Str("key_source", string(st.Origin)).Msg("invalid Gemini API key format")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch == epoch {
		o.state = StateUninitialized
		o.attemptCancel = nil
	}
}

func (o *Orchestrator) markReady(epoch uint64, m genclient.Model) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch {
		return
	}
	o.state = StateReady
	o.cause = CauseNone
	o.model = m
	o.retryPending = false
	o.nextAttemptAt = time.Time{}
	o.attemptCancel = nil
}

// failAuth stops all automatic retries after the API rejected the key.
func (o *Orchestrator) failAuth(epoch uint64, err error) {
	msg := err.Error()

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	o.state = StateFailedPermanent
	o.cause = CauseAuth
	o.model = nil
	o.attempted = true
	o.retryCount = o.cfg.MaxRetries
	o.retryPending = false
	o.nextAttemptAt = time.Time{}
	o.lastAuthErrorAt = o.clock.Now()
	o.lastAuthMessage = "Authentication failed: " + msg
	o.attemptCancel = nil
	o.mu.Unlock()

	o.registry.RecordAuthenticationError(msg)
	o.log.Error().Err(err).Msg("API key rejected, automatic retries stopped")
}

// failAttempt handles a probe sequence where every candidate failed.
func (o *Orchestrator) failAttempt(epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	o.retryCount++
	o.model = nil
	o.attemptCancel = nil

	if o.retryCount < o.cfg.MaxRetries {
		delay := backoff(o.cfg.ProbeBackoffBase, o.cfg.ProbeBackoffCap, o.retryCount)
		o.state = StateFailedRetryable
		o.retryPending = true
		o.nextAttemptAt = o.clock.Now().Add(delay)
		retry := o.retryCount
		o.mu.Unlock()

		o.log.Warn().
			Int("attempt", retry+1).
			Int("max_retries", o.cfg.MaxRetries).
			Dur("backoff", delay).
			Msg("all model initialization attempts failed, will retry")
		o.after(delay, o.retryFunc(epoch))
		return
	}

	o.state = StateFailedPermanent
	o.cause = CauseQuota
	o.lastQuotaIssueAt = o.clock.Now()
	resurrect := !o.resurrected
	if resurrect {
		o.resurrected = true
		o.retryPending = true
		o.nextAttemptAt = o.clock.Now().Add(o.cfg.ResurrectionDelay)
	} else {
		o.retryPending = false
		o.nextAttemptAt = time.Time{}
	}
	o.mu.Unlock()

	o.registry.RecordQuotaIssue()
	o.log.Warn().Int("max_retries", o.cfg.MaxRetries).Msg("maximum retries reached, using fallbacks")
	if resurrect {
		o.after(o.cfg.ResurrectionDelay, o.resurrectFunc(epoch))
	}
}

// failUnexpected handles a panic during an attempt with the smaller
// error backoff.
func (o *Orchestrator) failUnexpected(epoch uint64, err error) {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	o.retryCount++
	o.model = nil
	o.state = StateFailedRetryable
	o.attemptCancel = nil

	if o.retryCount >= o.cfg.MaxRetries {
		o.retryPending = false
		o.nextAttemptAt = time.Time{}
		o.mu.Unlock()
		o.log.Error().Err(err).Msg("failed to initialize, retries exhausted")
		return
	}

	delay := backoff(o.cfg.ErrorBackoffBase, o.cfg.ErrorBackoffCap, o.retryCount)
	o.retryPending = true
	o.nextAttemptAt = o.clock.Now().Add(delay)
	o.mu.Unlock()

	o.log.Error().Err(err).Dur("backoff", delay).Msg("failed to initialize, will retry")
	o.after(delay, o.retryFunc(epoch))
}

// retryFunc clears the pending flag and re-enters the guarded flow. A
// timer from an older epoch still re-enters the guard, which decides.
func (o *Orchestrator) retryFunc(epoch uint64) func() {
	return func() {
		o.mu.Lock()
		if o.epoch == epoch && o.retryPending {
			o.retryPending = false
			o.attempted = false
			o.nextAttemptAt = time.Time{}
		}
		o.mu.Unlock()
		o.trigger()
	}
}

func (o *Orchestrator) resurrectFunc(epoch uint64) func() {
	return func() {
		o.mu.Lock()
		if o.epoch == epoch && o.state == StateFailedPermanent && o.cause == CauseQuota {
			o.log.Info().Msg("retrying initialization after extended delay")
			o.state = StateUninitialized
			o.cause = CauseNone
			o.retryCount = 0
			o.attempted = false
			o.retryPending = false
			o.nextAttemptAt = time.Time{}
		}
		o.mu.Unlock()
		o.trigger()
	}
}

// reset returns to a pristine state. Pending timers are left to fire; the
// epoch bump makes them harmless.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.epoch++
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	o.state = StateUninitialized
	o.cause = CauseNone
	o.model = nil
	o.attempted = false
	o.retryCount = 0
	o.retryPending = false
	o.resurrected = false
	o.nextAttemptAt = time.Time{}
	o.lastAuthErrorAt = time.Time{}
	o.lastAuthMessage = ""
}

// handleCallError reacts to a failed capability request. The failing call
// itself is never retried.
func (o *Orchestrator) handleCallError(capability string, used genclient.Model, err error) {
	kind := genclient.Classify(err)
	o.log.Warn().Err(err).Str("capability", capability).Str("kind", kind.String()).Msg("generation failed, using fallback")

	if kind == genclient.KindAuth {
		o.mu.Lock()
		epoch := o.epoch
		o.mu.Unlock()
		o.failAuth(epoch, err)
		return
	}

	if !genclient.IsReinitTrigger(err) {
		return
	}

	o.mu.Lock()
	if o.state != StateReady || o.model != used {
		o.mu.Unlock()
		return
	}
	o.state = StateUninitialized
	o.model = nil
	o.attempted = false
	o.mu.Unlock()

	o.after(o.cfg.ReinitDelay, o.trigger)
}

type pendingTimer struct {
	t clockwork.Timer
}

func (o *Orchestrator) after(d time.Duration, fn func()) {
	pt := &pendingTimer{}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.timers[pt] = struct{}{}
	o.mu.Unlock()

	t := o.clock.AfterFunc(d, func() {
		o.mu.Lock()
		closed := o.closed
		if !closed {
			delete(o.timers, pt)
		}
		o.mu.Unlock()
		if !closed {
			fn()
		}
	})

	o.mu.Lock()
	pt.t = t
	if o.closed {
		t.Stop()
	}
	o.mu.Unlock()
}

// backoff returns min(base * 2^n, limit).
func backoff(base, limit time.Duration, n int) time.Duration {
	d := base
	for i := 0; i < n && d < limit; i++ {
		d *= 2
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}
