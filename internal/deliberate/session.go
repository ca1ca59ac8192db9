// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliberate

import (
	"sync"
	"time"

	"github.com/pdiddy/consensus-engine/internal/round"
	"github.com/pdiddy/consensus-engine/internal/timer"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// Session is one deliberation in progress or finished. All mutation goes
// through the owning Manager; callers observe it through the accessors.
type Session struct {
	mu sync.Mutex

	id                 string
	participants       []types.Participant
	rounds             []*round.Round
	request            types.CollaborationRequest
	timeLimit          time.Duration
	consensusThreshold float64

	status      types.SessionStatus
	termination types.TerminationReason
	startTime   time.Time
	endTime     time.Time
	consensusAt time.Time
	metrics     types.SessionMetrics
	output      *types.CollaborativeOutput

	timerHandles []timer.Handle
	finalized    bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Request returns the originating request.
func (s *Session) Request() types.CollaborationRequest { return s.request }

// TimeLimit returns the session deadline budget.
func (s *Session) TimeLimit() time.Duration { return s.timeLimit }

// ConsensusThreshold returns the agreement percentage that ends
// deliberation early.
func (s *Session) ConsensusThreshold() float64 { return s.consensusThreshold }

// Status returns the session's lifecycle state.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time { return s.startTime }

// EndTime returns when finalization ran (zero before then).
func (s *Session) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Participants returns a copy of the selected panel.
func (s *Session) Participants() []types.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

// Rounds returns the session's rounds in order.
func (s *Session) Rounds() []*round.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*round.Round, len(s.rounds))
	copy(out, s.rounds)
	return out
}

// Metrics returns the session metrics. Meaningful after finalization.
func (s *Session) Metrics() types.SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Output returns the collaborative output; ok is false before finalization.
func (s *Session) Output() (types.CollaborativeOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return types.CollaborativeOutput{}, false
	}
	return *s.output, true
}

// setStatus transitions the lifecycle state unless the session is finalized.
func (s *Session) setStatus(status types.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finalized {
		s.status = status
		if status == types.SessionConsensusReached {
			s.consensusAt = time.Now()
		}
	}
}

// setTermination records why deliberation stopped; the first reason wins.
func (s *Session) setTermination(r types.TerminationReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.termination == "" {
		s.termination = r
	}
}

// running reports whether the round driver should keep going.
func (s *Session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == types.SessionActive
}

// appendRound adds the next round. Round numbers stay contiguous because
// the caller derives them from the current length under this lock.
func (s *Session) appendRound(r *round.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, r)
}

// nextRoundNumber returns the 1-based number the next appended round takes.
func (s *Session) nextRoundNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds) + 1
}

// history snapshots every prior round's contributions, in round order.
func (s *Session) history() round.History {
	s.mu.Lock()
	rounds := make([]*round.Round, len(s.rounds))
	copy(rounds, s.rounds)
	s.mu.Unlock()

	h := round.History{}
	for _, r := range rounds {
		h.Rounds = append(h.Rounds, r.Contributions())
	}
	return h
}

// activeParticipants returns the participants flagged active.
func (s *Session) activeParticipants() []types.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Participant
	for _, p := range s.participants {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}
