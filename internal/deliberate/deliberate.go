// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deliberate drives multi-participant deliberation sessions: it
// validates requests, selects the panel, sequences the rounds, fans out to
// generation backends within each round, enforces session and round
// deadlines, and finalizes one collaborative output per session.
package deliberate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/consensus-engine/internal/generate"
	"github.com/pdiddy/consensus-engine/internal/panel"
	"github.com/pdiddy/consensus-engine/internal/timer"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// MinTimeLimit is the smallest session deadline a request may ask for.
const MinTimeLimit = 10 * time.Second

// Engine defaults, used when neither the request nor the config says
// otherwise. The consensus threshold sits above every round policy's
// default confidence, so a default-config session runs the full round
// sequence; early exits happen only when a caller lowers the threshold or
// sets a quality target.
const (
	defaultMaxRounds          = 4
	defaultTimeLimit          = 5 * time.Minute
	defaultConsensusThreshold = 95.0
	defaultEventBuffer        = 256
)

// warningFraction of the session deadline after which a timeout warning is
// emitted.
const warningFraction = 0.8

// Archiver receives finalized session outputs. Failures are logged and
// never affect session completion.
type Archiver interface {
	AddDocument(ctx context.Context, key, content string, metadata map[string]string) error
}

// Manager owns the session registry and is its sole writer. Sessions run
// fully in parallel; each has a single round driver at a time.
type Manager struct {
	cfg    types.EngineConfig
	gen    generate.Service
	arch   Archiver
	log    *zap.Logger
	timers *timer.Manager

	mu       sync.Mutex
	sessions map[string]*Session

	events chan types.Event
}

// Option configures a Manager.
type Option func(*Manager)

// WithArchiver installs the best-effort persistence collaborator.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.arch = a }
}

// WithLogger installs the logger. Default is zap.NewNop.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager builds a session manager over a generation service.
func NewManager(cfg types.EngineConfig, gen generate.Service, opts ...Option) *Manager {
	if cfg.Session.MaxRounds <= 0 {
		cfg.Session.MaxRounds = defaultMaxRounds
	}
	if cfg.Session.TimeLimit <= 0 {
		cfg.Session.TimeLimit = defaultTimeLimit
	}
	if cfg.Session.ConsensusThreshold <= 0 {
		cfg.Session.ConsensusThreshold = defaultConsensusThreshold
	}
	if cfg.Session.EventBuffer <= 0 {
		cfg.Session.EventBuffer = defaultEventBuffer
	}

	m := &Manager{
		cfg:      cfg,
		gen:      gen,
		log:      zap.NewNop(),
		timers:   timer.NewManager(),
		sessions: make(map[string]*Session),
		events:   make(chan types.Event, cfg.Session.EventBuffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the outbound event channel. The engine never blocks on
// delivery: events that find the buffer full are dropped and logged.
func (m *Manager) Events() <-chan types.Event {
	return m.events
}

// StartSession validates the request, selects the panel, registers the
// session, arms its deadline timers, and (unless the engine is in manual
// mode) starts driving rounds on a background goroutine. The only errors
// are validation failures; no session exists when one is returned.
func (m *Manager) StartSession(ctx context.Context, req types.CollaborationRequest) (*Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	participants, err := panel.Select(m.cfg.Panel, req.PreferredParticipants)
	if err != nil {
		return nil, &ValidationError{Field: "panel", Reason: err.Error()}
	}

	timeLimit := req.TimeLimit
	if timeLimit <= 0 {
		timeLimit = m.cfg.Session.TimeLimit
	}
	threshold := req.ConsensusThreshold
	if threshold <= 0 {
		threshold = m.cfg.Session.ConsensusThreshold
	}

	s := &Session{
		id:                 uuid.NewString(),
		participants:       participants,
		request:            req,
		timeLimit:          timeLimit,
		consensusThreshold: types.Clamp100(threshold),
		status:             types.SessionInitializing,
		startTime:          time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	deadline := m.timers.Arm(timeLimit, func() {
		m.log.Warn("session deadline reached, forcing finalization",
			zap.String("session_id", s.id))
		s.setStatus(types.SessionTimeout)
		m.finalizeSession(context.Background(), s)
	})
	warning := m.timers.Arm(time.Duration(float64(timeLimit)*warningFraction), func() {
		m.emit(types.EventTimeoutWarning, s.id, map[string]any{
			"time_limit": timeLimit.String(),
		})
	})
	s.mu.Lock()
	s.timerHandles = append(s.timerHandles, deadline, warning)
	s.mu.Unlock()

	s.setStatus(types.SessionActive)
	m.emit(types.EventSessionStarted, s.id, map[string]any{
		"prompt_length": len(req.Prompt),
		"participants":  len(participants),
	})

	m.log.Info("session started",
		zap.String("session_id", s.id),
		zap.Int("participants", len(participants)),
		zap.Duration("time_limit", timeLimit))

	if !m.cfg.Session.Manual {
		go func() {
			if err := m.executeRounds(ctx, s); err != nil {
				m.log.Error("round execution aborted",
					zap.String("session_id", s.id), zap.Error(err))
				m.emit(types.EventError, s.id, map[string]any{"error": err.Error()})
			}
		}()
	}

	return s, nil
}

// ExecuteSessionRounds drives a session's rounds synchronously. It is the
// manual trigger for deferred execution; the returned error is a critical
// round failure, after finalization has already run.
func (m *Manager) ExecuteSessionRounds(ctx context.Context, sessionID string) error {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return fmt.Errorf("executing rounds for %s: %w", sessionID, ErrSessionNotFound)
	}
	return m.executeRounds(ctx, s)
}

// CompleteSession returns the session's collaborative output, finalizing it
// first if deliberation has not already been finalized.
func (m *Manager) CompleteSession(ctx context.Context, sessionID string) (types.CollaborativeOutput, error) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return types.CollaborativeOutput{}, fmt.Errorf("completing %s: %w", sessionID, ErrSessionNotFound)
	}
	m.finalizeSession(ctx, s)
	out, _ := s.Output()
	return out, nil
}

// GetSession looks up a session by id.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ActiveSessions returns the sessions still deliberating.
func (m *Manager) ActiveSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		switch s.Status() {
		case types.SessionInitializing, types.SessionActive:
			out = append(out, s)
		}
	}
	return out
}

// Dispose cancels every outstanding timer and clears the registry. Sessions
// already handed to callers remain readable; in-flight rounds finish
// against detached sessions.
func (m *Manager) Dispose() {
	m.timers.CancelAll()

	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}

// emit delivers an event without blocking; a full buffer drops the event.
func (m *Manager) emit(t types.EventType, sessionID string, data map[string]any) {
	e := types.Event{Type: t, SessionID: sessionID, Timestamp: time.Now(), Data: data}
	select {
	case m.events <- e:
	default:
		m.log.Debug("event dropped, buffer full",
			zap.String("type", string(t)), zap.String("session_id", sessionID))
	}
}

// validateRequest enforces the request contract: a non-empty prompt, a
// known priority, and a deadline of at least MinTimeLimit when given.
func validateRequest(req types.CollaborationRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if !req.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", req.Priority)}
	}
	if req.TimeLimit != 0 && req.TimeLimit < MinTimeLimit {
		return &ValidationError{Field: "time_limit", Reason: fmt.Sprintf("must be at least %s", MinTimeLimit)}
	}
	if req.MaxRounds < 0 {
		return &ValidationError{Field: "max_rounds", Reason: "must not be negative"}
	}
	if req.ConsensusThreshold < 0 || req.ConsensusThreshold > 100 {
		return &ValidationError{Field: "consensus_threshold", Reason: "must be within [0, 100]"}
	}
	return nil
}
