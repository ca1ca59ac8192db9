// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package round implements one bounded-time unit of deliberation: a state
// machine over pending, active, completed, and timeout, an append-only
// contribution list guarded against late writes, and the round's aggregate
// output.
package round

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/consensus-engine/internal/consensus"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// digestLimit is how much of each contribution a multi-author digest keeps.
const digestLimit = 200

// restartQualityBar is the validate-round quality below which the
// recommendation is to start over at propose.
const restartQualityBar = 70

// NoContributionsMessage is the synthesized content of an empty round.
const NoContributionsMessage = "no contributions were produced in this round"

// Round is one deliberation step. The status check and contribution append
// share one mutex, so a timer forcing timeout and an in-flight participant
// result can never race into a lost update: after the round leaves active,
// every append fails.
type Round struct {
	mu sync.Mutex

	id        string
	sessionID string
	number    int
	policy    Policy
	timeLimit time.Duration

	status        types.RoundStatus
	startTime     time.Time
	endTime       time.Time
	contributions []types.Contribution
	output        *types.RoundOutput
}

// New creates a pending round at a 1-based position in its session. A
// non-zero timeLimit overrides the policy default.
func New(sessionID string, number int, policy Policy, timeLimit time.Duration) *Round {
	if timeLimit <= 0 {
		timeLimit = policy.TimeLimit
	}
	return &Round{
		id:        uuid.NewString(),
		sessionID: sessionID,
		number:    number,
		policy:    policy,
		timeLimit: timeLimit,
		status:    types.RoundPending,
	}
}

// ID returns the round id.
func (r *Round) ID() string { return r.id }

// SessionID returns the owning session id.
func (r *Round) SessionID() string { return r.sessionID }

// Number returns the 1-based round number.
func (r *Round) Number() int { return r.number }

// Kind returns the round kind.
func (r *Round) Kind() types.RoundKind { return r.policy.Kind }

// Purpose returns the kind-specific purpose string.
func (r *Round) Purpose() string { return r.policy.Purpose }

// Policy returns the round's dispatch policy.
func (r *Round) Policy() Policy { return r.policy }

// TimeLimit returns the round deadline budget.
func (r *Round) TimeLimit() time.Duration { return r.timeLimit }

// Status returns the current lifecycle state.
func (r *Round) Status() types.RoundStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// StartTime returns when the round became active (zero if it has not).
func (r *Round) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startTime
}

// EndTime returns when the round reached a terminal state (zero if it has not).
func (r *Round) EndTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endTime
}

// Start transitions pending→active.
func (r *Round) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != types.RoundPending {
		return fmt.Errorf("starting round %d: status is %s, want %s", r.number, r.status, types.RoundPending)
	}
	r.status = types.RoundActive
	r.startTime = time.Now()
	return nil
}

// AddContribution appends a contribution. It fails, without mutating the
// list, whenever the round is not active — including results arriving after
// a forced timeout.
func (r *Round) AddContribution(c types.Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != types.RoundActive {
		return fmt.Errorf("adding contribution to round %d: status is %s, want %s", r.number, r.status, types.RoundActive)
	}
	r.contributions = append(r.contributions, c)
	return nil
}

// Contributions returns a copy of the contribution list.
func (r *Round) Contributions() []types.Contribution {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Contribution, len(r.contributions))
	copy(out, r.contributions)
	return out
}

// Complete transitions active→completed and computes the round output.
// It reports false when the round was already terminal (the timer won the
// race); the cached output is returned either way.
func (r *Round) Complete() (types.RoundOutput, bool) {
	return r.finish(types.RoundCompleted)
}

// ForceTimeout transitions active→timeout with whatever contributions have
// arrived, computing the round output from them. It reports false when the
// round was already terminal.
func (r *Round) ForceTimeout() (types.RoundOutput, bool) {
	return r.finish(types.RoundTimeout)
}

func (r *Round) finish(terminal types.RoundStatus) (types.RoundOutput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Terminal() {
		if r.output != nil {
			return *r.output, false
		}
		return types.RoundOutput{}, false
	}

	r.status = terminal
	r.endTime = time.Now()
	out := r.generateOutput()
	r.output = &out
	return out, true
}

// Output returns the cached round output; ok is false before the round is
// terminal.
func (r *Round) Output() (types.RoundOutput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.output == nil {
		return types.RoundOutput{}, false
	}
	return *r.output, true
}

// generateOutput computes the round aggregate. Caller holds r.mu.
func (r *Round) generateOutput() types.RoundOutput {
	contribs := r.contributions
	quality := consensus.QualityScore(contribs)

	return types.RoundOutput{
		RoundID:                    r.id,
		Kind:                       r.policy.Kind,
		SynthesizedContent:         synthesizeContent(contribs),
		ParticipatingContributions: contributionIDs(contribs),
		ConsensusLevel:             consensus.Classify(contribs),
		QualityScore:               quality,
		EmergenceIndicators:        consensus.Indicators(contribs),
		NextRoundRecommendation:    nextRecommendation(r.policy.Kind, quality),
	}
}

// synthesizeContent renders a round's contributions: a single contribution
// verbatim, a per-author digest when there are several, or a fixed message
// when there are none.
func synthesizeContent(contribs []types.Contribution) string {
	switch len(contribs) {
	case 0:
		return NoContributionsMessage
	case 1:
		return contribs[0].Content
	}

	var b strings.Builder
	for i, c := range contribs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := c.Content
		if len(content) > digestLimit {
			content = content[:digestLimit] + "..."
		}
		fmt.Fprintf(&b, "[%s/%s] %s", c.Author.Provider, c.Author.Role, content)
	}
	return b.String()
}

// nextRecommendation returns the kind the next round should take: the next
// entry in the fixed sequence, a restart at propose when validation ended
// with low quality, or nothing when the sequence is done.
func nextRecommendation(kind types.RoundKind, quality float64) types.RoundKind {
	for i, k := range Sequence {
		if k != kind {
			continue
		}
		if i+1 < len(Sequence) {
			return Sequence[i+1]
		}
		if quality < restartQualityBar {
			return Sequence[0]
		}
		return ""
	}
	return ""
}
