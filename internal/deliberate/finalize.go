// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliberate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/consensus-engine/internal/consensus"
	"github.com/pdiddy/consensus-engine/internal/panel"
	"github.com/pdiddy/consensus-engine/internal/round"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// noOutputMessage is the collaborative content of a session that produced
// no contributions at all.
const noOutputMessage = "the session produced no contributions"

// finalizeSession computes the session's collaborative output and metrics
// exactly once, archives the result best-effort, cancels the session's
// timers, and marks the session completed. Safe to call from the round
// driver, the deadline timer, and CompleteSession concurrently.
func (m *Manager) finalizeSession(ctx context.Context, s *Session) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	consensusAchieved := s.status == types.SessionConsensusReached
	// Preserve why deliberation stopped before the status collapses to
	// completed.
	switch {
	case consensusAchieved:
		s.termination = types.TerminationConsensus
	case s.status == types.SessionTimeout:
		s.termination = types.TerminationTimeout
	case s.termination == "":
		s.termination = types.TerminationRoundsExhausted
	}
	termination := s.termination
	s.status = types.SessionCompleted
	s.endTime = time.Now()

	rounds := make([]*round.Round, len(s.rounds))
	copy(rounds, s.rounds)
	participants := make([]types.Participant, len(s.participants))
	copy(participants, s.participants)
	handles := s.timerHandles
	s.timerHandles = nil
	consensusAt := s.consensusAt
	s.mu.Unlock()

	// Terminate any round the driver left active, so its output exists.
	for _, r := range rounds {
		if !r.Status().Terminal() {
			r.ForceTimeout()
		}
	}

	out := m.buildOutput(s, rounds)
	metrics := buildMetrics(s, rounds, participants, consensusAchieved, consensusAt, out)
	metrics.TerminationReason = termination

	s.mu.Lock()
	s.output = &out
	s.metrics = metrics
	s.mu.Unlock()

	for _, h := range handles {
		m.timers.Cancel(h)
	}

	m.archiveSession(ctx, s, out)

	m.emit(types.EventSessionCompleted, s.id, map[string]any{
		"rounds":             metrics.RoundCount,
		"contributions":      metrics.ContributionCount,
		"consensus_achieved": metrics.ConsensusAchieved,
		"termination":        string(termination),
		"quality":            out.QualityScore,
	})
	m.log.Info("session completed",
		zap.String("session_id", s.id),
		zap.Int("rounds", metrics.RoundCount),
		zap.Int("contributions", metrics.ContributionCount),
		zap.Bool("consensus", metrics.ConsensusAchieved),
		zap.String("termination", string(termination)),
		zap.Duration("duration", metrics.TotalDuration))
}

// buildOutput assembles the single collaborative result from the finished
// rounds. The content is the last round's final contribution, falling back
// to a concatenation of everything the session produced; earlier rounds
// survive as sources, per-round outputs, and the synthesis log.
func (m *Manager) buildOutput(s *Session, rounds []*round.Round) types.CollaborativeOutput {
	out := types.CollaborativeOutput{
		SessionID:      s.id,
		Content:        noOutputMessage,
		ConsensusLevel: types.ConsensusForced,
	}

	var lastContent string
	for _, r := range rounds {
		ro, ok := r.Output()
		if !ok {
			continue
		}
		contribs := r.Contributions()
		if len(contribs) > 0 {
			lastContent = contribs[len(contribs)-1].Content
		}
		out.Rounds = append(out.Rounds, ro)
		out.Sources = append(out.Sources, contribs...)
		out.SynthesisLog = append(out.SynthesisLog, fmt.Sprintf(
			"round %d (%s): %d contributions, consensus=%s, quality=%.1f",
			r.Number(), r.Kind(), len(contribs), ro.ConsensusLevel, ro.QualityScore))
	}

	switch {
	case len(out.Rounds) > 0 && lastRoundContributed(rounds):
		out.Content = lastContent
	case len(out.Sources) > 0:
		var parts []string
		for _, c := range out.Sources {
			parts = append(parts, c.Content)
		}
		out.Content = strings.Join(parts, "\n\n")
	}

	if n := len(out.Rounds); n > 0 {
		last := out.Rounds[n-1]
		out.QualityScore = last.QualityScore
		out.ConsensusLevel = last.ConsensusLevel
		out.ImprovementMetrics = append(out.ImprovementMetrics, fmt.Sprintf(
			"quality moved %.1f -> %.1f across %d rounds",
			out.Rounds[0].QualityScore, last.QualityScore, n))
	}
	out.EmergenceIndicators = consensus.Indicators(out.Sources)
	out.TokenUsage = buildTokenUsage(s, rounds, out.QualityScore)
	return out
}

// buildTokenUsage totals the session's token spend and prices it with the
// per-provider cost rates.
func buildTokenUsage(s *Session, rounds []*round.Round, quality float64) types.TokenUsage {
	usage := types.TokenUsage{
		TokensPerParticipant: make(map[string]int),
		TokensPerRound:       make(map[int]int),
	}
	for _, r := range rounds {
		for _, c := range r.Contributions() {
			usage.TotalTokens += c.TokenCount
			usage.TokensPerParticipant[c.Author.ID] += c.TokenCount
			usage.TokensPerRound[r.Number()] += c.TokenCount
			usage.CostEstimate += float64(c.TokenCount) * panel.CostRate(c.Author.Provider) / 1e6
		}
	}
	if usage.TotalTokens > 0 {
		usage.Efficiency = quality / float64(usage.TotalTokens) * 1000
	}
	if budget := s.Request().CostBudget; budget > 0 {
		usage.BudgetUtilization = usage.CostEstimate / budget * 100
	}
	return usage
}

// buildMetrics recomputes the session metrics from the round history.
func buildMetrics(s *Session, rounds []*round.Round, participants []types.Participant, consensusAchieved bool, consensusAt time.Time, out types.CollaborativeOutput) types.SessionMetrics {
	metrics := types.SessionMetrics{
		RoundCount:        len(rounds),
		ConsensusAchieved: consensusAchieved,
		TokenEfficiency:   out.TokenUsage.Efficiency,
	}

	s.mu.Lock()
	metrics.TotalDuration = s.endTime.Sub(s.startTime)
	start := s.startTime
	s.mu.Unlock()
	if consensusAchieved && !consensusAt.IsZero() {
		metrics.ConsensusTime = consensusAt.Sub(start)
	}

	var all []types.Contribution
	contributedRounds := make(map[string]int)
	for _, r := range rounds {
		contribs := r.Contributions()
		all = append(all, contribs...)
		seen := make(map[string]bool)
		for _, c := range contribs {
			if !seen[c.Author.ID] {
				seen[c.Author.ID] = true
				contributedRounds[c.Author.ID]++
			}
		}
	}
	metrics.ContributionCount = len(all)
	metrics.EmergenceScore = consensus.EmergenceScore(all)

	if len(rounds) > 0 {
		metrics.ParticipantUtilization = make(map[string]float64, len(participants))
		for _, p := range participants {
			metrics.ParticipantUtilization[p.ID] = float64(contributedRounds[p.ID]) / float64(len(rounds)) * 100
		}
	}
	if n := len(out.Rounds); n > 1 {
		metrics.QualityImprovement = out.Rounds[n-1].QualityScore - out.Rounds[0].QualityScore
	}
	return metrics
}

// archiveSession persists the finished session. Archive failures never fail
// the session; they are logged and the output stays available in memory.
func (m *Manager) archiveSession(ctx context.Context, s *Session, out types.CollaborativeOutput) {
	if m.arch == nil {
		return
	}

	content, err := yaml.Marshal(out)
	if err != nil {
		m.log.Error("encoding session for archive", zap.String("session_id", s.id), zap.Error(err))
		return
	}

	meta := map[string]string{
		"session_id":      s.id,
		"prompt":          firstLine(s.Request().Prompt),
		"consensus_level": string(out.ConsensusLevel),
		"quality_score":   fmt.Sprintf("%.1f", out.QualityScore),
	}
	key := "session/" + s.id
	if err := m.arch.AddDocument(ctx, key, string(content), meta); err != nil {
		m.log.Warn("archiving session failed",
			zap.String("session_id", s.id), zap.Error(err))
	}
}

// lastRoundContributed reports whether the final round produced at least
// one contribution.
func lastRoundContributed(rounds []*round.Round) bool {
	if len(rounds) == 0 {
		return false
	}
	return len(rounds[len(rounds)-1].Contributions()) > 0
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
