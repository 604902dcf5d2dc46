// Package genclienttest provides a scripted genclient.Factory for tests.
package genclienttest

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/smart-onboard/internal/genclient"
)

// Responder produces the reply for one Generate call on a model.
type Responder func(ctx context.Context, model, prompt string) (string, error)

// Reply always answers text.
func Reply(text string) Responder {
	return func(context.Context, string, string) (string, error) { return text, nil }
}

// Fail always returns err.
func Fail(err error) Responder {
	return func(context.Context, string, string) (string, error) { return "", err }
}

// Hang blocks until the request context is cancelled.
func Hang() Responder {
	return func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

// Factory is a genclient.Factory whose models answer from a per-model
// Responder, falling back to Default. It counts creations and calls.
type Factory struct {
	mu         sync.Mutex
	responders map[string]Responder
	createErrs map[string]error
	Default    Responder
	CreateErr  error
	created    []string
	calls      map[string]int
	prompts    []string
	keys       []string
}

// NewFactory creates a Factory whose models all answer with def.
func NewFactory(def Responder) *Factory {
	return &Factory{
		responders: make(map[string]Responder),
		createErrs: make(map[string]error),
		calls:      make(map[string]int),
		Default:    def,
	}
}

// Set scripts the responder for model name.
func (f *Factory) Set(name string, r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[name] = r
}

// FailCreate makes NewModel fail for model name.
func (f *Factory) FailCreate(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErrs[name] = err
}

// SetDefault replaces the fallback responder.
func (f *Factory) SetDefault(r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Default = r
}

func (f *Factory) NewModel(_ context.Context, apiKey, name string, _ genclient.Params) (genclient.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	f.keys = append(f.keys, apiKey)
	if err, ok := f.createErrs[name]; ok {
		return nil, genclient.Wrap(err)
	}
	if f.CreateErr != nil {
		return nil, genclient.Wrap(f.CreateErr)
	}
	return &model{f: f, name: name}, nil
}

// Created returns the model names in creation order.
func (f *Factory) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// Keys returns the API keys passed to NewModel in order.
func (f *Factory) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

// Calls returns how many Generate calls reached model name.
func (f *Factory) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls returns the number of Generate calls across all models.
func (f *Factory) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Prompts returns every prompt sent, in order.
func (f *Factory) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type model struct {
	f    *Factory
	name string
}

func (m *model) Name() string { return m.name }

func (m *model) Generate(ctx context.Context, prompt string, _ *genclient.Params) (string, error) {
	m.f.mu.Lock()
	m.f.calls[m.name]++
	m.f.prompts = append(m.f.prompts, prompt)
	r, ok := m.f.responders[m.name]
	if !ok {
		r = m.f.Default
	}
	m.f.mu.Unlock()

	if r == nil {
		return "", errors.New("genclienttest: no responder for " + m.name)
	}
	text, err := r(ctx, m.name, prompt)
	return text, genclient.Wrap(err)
}
