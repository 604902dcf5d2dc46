// Package genclient is the thin boundary between the orchestrator and the
// generative text API. Everything above it talks to Model and Factory.
package genclient

import (
	"context"
	"fmt"
	"time"
)

// Params tunes a single model handle.
type Params struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Model is a handle to one named generative model.
type Model interface {
	Name() string
	// Generate sends one prompt. A nil params uses the handle's defaults.
	Generate(ctx context.Context, prompt string, params *Params) (string, error)
}

// Factory creates model handles for a given API key.
type Factory interface {
	NewModel(ctx context.Context, apiKey, name string, params Params) (Model, error)
}

type result struct {
	text string
	err  error
}

// Call runs prompt against m and gives up after timeout with ErrTimeout.
// The in-flight request is cancelled and its eventual result discarded.
func Call(ctx context.Context, m Model, prompt string, params *Params, timeout time.Duration) (string, error) {
	if m == nil {
		return "", ErrNotInitialized
	}
	if timeout <= 0 {
		return m.Generate(ctx, prompt, params)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &Error{Kind: KindGeneric, Msg: fmt.Sprintf("model %s panicked: %v", m.Name(), r)}}
			}
		}()
		text, err := m.Generate(ctx, prompt, params)
		done <- result{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.text, r.err
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
