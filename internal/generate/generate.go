// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate is the boundary to external text-generation services.
// The deliberation engine only sees the Service interface; provider
// transports live behind it and their failures are non-fatal to a round.
package generate

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

// Result is one successful generation call.
type Result struct {
	// Content is the generated text.
	Content string

	// Tokens is the provider-reported output token count, or an estimate
	// when the provider does not report usage.
	Tokens int

	// Retries is how many times the transport retried before succeeding.
	Retries int
}

// Service produces text for one participant. Implementations must honor the
// context deadline; a failed call is logged by the caller and simply yields
// no contribution.
type Service interface {
	Generate(ctx context.Context, p types.Participant, prompt string) (Result, error)
}

// Registry routes generation calls to per-provider services. Providers with
// no registered backend fail the call; there is no default backend.
type Registry struct {
	mu       sync.RWMutex
	backends map[types.Provider]Service
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[types.Provider]Service)}
}

// Register installs the backend for a provider, replacing any prior one.
func (r *Registry) Register(p types.Provider, s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[p] = s
}

// Generate dispatches to the participant's provider backend.
func (r *Registry) Generate(ctx context.Context, p types.Participant, prompt string) (Result, error) {
	r.mu.RLock()
	backend, ok := r.backends[p.Provider]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("no backend registered for provider %s", p.Provider)
	}
	return backend.Generate(ctx, p, prompt)
}

// EstimateTokens approximates the token count of text when a provider does
// not report usage. Four characters per token is the usual rough rate.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Static is a canned-response service for dry runs and tests. Responses are
// served round-robin per participant id.
type Static struct {
	mu        sync.Mutex
	Responses []string
	calls     map[string]int
}

// NewStatic builds a Static service from canned responses. With no
// responses configured it echoes a short acknowledgment of the prompt.
func NewStatic(responses ...string) *Static {
	return &Static{Responses: responses, calls: make(map[string]int)}
}

// Generate returns the next canned response for the participant.
func (s *Static) Generate(_ context.Context, p types.Participant, prompt string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var content string
	if len(s.Responses) == 0 {
		content = fmt.Sprintf("[%s/%s] draft response (%d chars of prompt)", p.Provider, p.Model, len(prompt))
	} else {
		content = s.Responses[s.calls[p.ID]%len(s.Responses)]
		s.calls[p.ID]++
	}
	return Result{Content: content, Tokens: EstimateTokens(content)}, nil
}
