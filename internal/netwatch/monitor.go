// Package netwatch polls connectivity to the generative API and signals
// when it is regained.
package netwatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Checker reports whether the network target is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// HTTPChecker issues a HEAD request to URL. Any HTTP response counts as
// reachable; only transport failures do not.
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

func (c HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("checking %s: %w", c.URL, err)
	}
	resp.Body.Close()
	return nil
}

// State is the last observed connectivity.
type State int

const (
	StateUnknown State = iota
	StateReachable
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StateReachable:
		return "reachable"
	case StateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Status describes the monitor's last check.
type Status struct {
	State     State
	LastCheck time.Time
	Error     error
}

// Monitor polls a Checker and invokes the regained handlers on every
// unreachable to reachable transition. The first observation only records
// state.
type Monitor struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger

	handlers  []func()
	status    Status
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// New creates a Monitor. Zero interval or timeout use defaults.
func New(checker Checker, interval, timeout time.Duration, clock clockwork.Clock, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		checker:   checker,
		interval:  interval,
		timeout:   timeout,
		clock:     clock,
		log:       log.With().Str("component", "netwatch").Logger(),
		triggerCh: make(chan struct{}, 1),
	}
}

// OnRegained registers fn to run when connectivity comes back. Handlers
// run on the monitor goroutine in registration order.
func (m *Monitor) OnRegained(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Start begins polling with an immediate first check.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.poll(m.stopCh, m.done)
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.done
	m.running = false
	m.mu.Unlock()

	<-done
}

// Trigger requests an immediate check without blocking.
func (m *Monitor) Trigger() {
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
}

// Reachable reports whether the last check succeeded.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.State == StateReachable
}

// Status returns the last check result.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) poll(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(context.Background())

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			m.CheckNow(context.Background())
		case <-m.triggerCh:
			m.CheckNow(context.Background())
		}
	}
}

// CheckNow runs one check synchronously and fires the regained handlers
// on a transition to reachable.
func (m *Monitor) CheckNow(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.checker.Check(ctx)
	next := StateReachable
	if err != nil {
		next = StateUnreachable
	}

	m.mu.Lock()
	prev := m.status.State
	m.status = Status{State: next, LastCheck: m.clock.Now(), Error: err}
	handlers := append([]func(){}, m.handlers...)
	m.mu.Unlock()

	switch {
	case prev == StateUnreachable && next == StateReachable:
		m.log.Info().Msg("network connection restored")
		for _, fn := range handlers {
			fn()
		}
	case prev != StateUnreachable && next == StateUnreachable:
		m.log.Warn().Err(err).Msg("network unreachable")
	}
	return next
}
