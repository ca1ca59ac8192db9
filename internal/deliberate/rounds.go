// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliberate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/consensus-engine/internal/consensus"
	"github.com/pdiddy/consensus-engine/internal/generate"
	"github.com/pdiddy/consensus-engine/internal/round"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// executeRounds drives the session's rounds in sequence until consensus,
// the quality target, the round budget, or the session deadline stops it.
// Finalization always runs, even on a critical error.
func (m *Manager) executeRounds(ctx context.Context, s *Session) error {
	defer m.finalizeSession(ctx, s)

	maxRounds := s.Request().MaxRounds
	if maxRounds <= 0 {
		maxRounds = m.cfg.Session.MaxRounds
	}

	for position := 1; position <= maxRounds; position++ {
		if !s.running() {
			return nil
		}

		policy := round.PolicyAt(position)
		history := s.history()

		if policy.Precondition != nil {
			if err := policy.Precondition(history); err != nil {
				var structural *round.StructuralError
				if errors.As(err, &structural) && !structural.Critical {
					m.log.Warn("skipping round, precondition unmet",
						zap.String("session_id", s.id),
						zap.String("kind", string(policy.Kind)),
						zap.String("code", structural.Code))
					continue
				}
				return fmt.Errorf("round %d (%s): %w", position, policy.Kind, err)
			}
		}

		// Round numbers stay contiguous even when a position was skipped.
		r := round.New(s.id, s.nextRoundNumber(), policy, m.cfg.Session.RoundTimeLimits[policy.Kind])
		s.appendRound(r)

		out, err := m.executeRound(ctx, s, r, history)
		if err != nil {
			return fmt.Errorf("round %d (%s): %w", r.Number(), policy.Kind, err)
		}

		if agreement := consensusPercent(r); agreement >= s.consensusThreshold {
			s.setStatus(types.SessionConsensusReached)
			m.emit(types.EventConsensusReached, s.id, map[string]any{
				"round":     r.Number(),
				"agreement": agreement,
			})
			m.log.Info("consensus reached",
				zap.String("session_id", s.id),
				zap.Int("round", r.Number()),
				zap.Float64("agreement", agreement))
			return nil
		}
		if target := m.cfg.Session.QualityTarget; target > 0 && out.QualityScore >= target {
			s.setTermination(types.TerminationQualityTarget)
			m.log.Info("quality target reached",
				zap.String("session_id", s.id),
				zap.Int("round", r.Number()),
				zap.Float64("quality", out.QualityScore))
			return nil
		}
	}
	return nil
}

// executeRound runs one round end to end: fan out to the policy's panelists,
// collect whatever arrives before the round deadline, and complete the
// round. Individual participant failures only shrink the round; the round
// itself fails only on a policy-level selection error.
func (m *Manager) executeRound(ctx context.Context, s *Session, r *round.Round, history round.History) (types.RoundOutput, error) {
	policy := r.Policy()

	panelists, err := policy.Panelists(s.activeParticipants())
	if err != nil {
		return types.RoundOutput{}, err
	}

	if err := r.Start(); err != nil {
		return types.RoundOutput{}, err
	}
	m.emit(types.EventRoundStarted, s.id, map[string]any{
		"round":   r.Number(),
		"kind":    string(policy.Kind),
		"fan_out": len(panelists),
	})

	prompt := policy.BuildPrompt(s.Request(), history)
	var buildUpon, critiques []string
	if policy.Links != nil {
		buildUpon, critiques = policy.Links(history)
	}

	roundCtx, cancel := context.WithTimeout(ctx, r.TimeLimit())
	defer cancel()

	deadline := m.timers.Arm(r.TimeLimit(), func() {
		if _, ok := r.ForceTimeout(); ok {
			m.log.Warn("round deadline reached",
				zap.String("session_id", s.id),
				zap.Int("round", r.Number()),
				zap.String("kind", string(policy.Kind)))
		}
	})
	m.collect(roundCtx, s, r, panelists, prompt, buildUpon, critiques)
	m.timers.Cancel(deadline)

	out, _ := r.Complete()
	return out, nil
}

// collect fans out one generation call per panelist and waits for all of
// them. Results landing after the round's forced timeout are rejected by
// the round and logged, never appended.
func (m *Manager) collect(ctx context.Context, s *Session, r *round.Round, panelists []types.Participant, prompt string, buildUpon, critiques []string) {
	var wg sync.WaitGroup
	for _, p := range panelists {
		wg.Add(1)
		go func(p types.Participant) {
			defer wg.Done()
			m.contribute(ctx, s, r, p, prompt, buildUpon, critiques)
		}(p)
	}
	wg.Wait()
}

// contribute runs one participant's generation call and appends the result.
func (m *Manager) contribute(ctx context.Context, s *Session, r *round.Round, p types.Participant, prompt string, buildUpon, critiques []string) {
	started := time.Now()
	res, err := m.gen.Generate(ctx, p, prompt)
	if err != nil {
		m.log.Warn("participant failed, continuing without it",
			zap.String("session_id", s.id),
			zap.Int("round", r.Number()),
			zap.String("participant", p.ID),
			zap.Error(err))
		return
	}

	tokens := res.Tokens
	if tokens <= 0 {
		tokens = generate.EstimateTokens(res.Content)
	}

	c := types.Contribution{
		ID:         uuid.NewString(),
		RoundID:    r.ID(),
		Author:     p,
		Content:    res.Content,
		Confidence: r.Policy().DefaultConfidence,
		BuildUpon:  buildUpon,
		Critiques:  critiques,
		Timestamp:  time.Now(),
		TokenCount: tokens,
		Meta: types.ContributionMeta{
			ProcessingTime: time.Since(started),
			RetryCount:     res.Retries,
		},
	}
	if err := r.AddContribution(c); err != nil {
		m.log.Warn("dropping late contribution",
			zap.String("session_id", s.id),
			zap.Int("round", r.Number()),
			zap.String("participant", p.ID),
			zap.Error(err))
		return
	}
	m.emit(types.EventContributionReceived, s.id, map[string]any{
		"round":       r.Number(),
		"participant": p.ID,
		"tokens":      tokens,
	})
}

// consensusPercent converts a round's agreement fraction to the 0-100 scale
// the threshold is expressed in.
func consensusPercent(r *round.Round) float64 {
	return consensus.Agreement(r.Contributions()) * 100
}
