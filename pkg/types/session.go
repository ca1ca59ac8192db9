// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model: participants, contributions,
// rounds, sessions, and the configuration structs consumed by the engine.
package types

import (
	"fmt"
	"time"
)

// Provider identifies a text-generation backend. The set is closed: unknown
// provider strings are a configuration error, never silently mapped to a
// default.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderMistral   Provider = "mistral"
	ProviderLocal     Provider = "local"
)

// ParseProvider validates a raw provider string against the closed set.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderMistral, ProviderLocal:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Role identifies a participant's function within the deliberation panel.
type Role string

const (
	RoleProposer    Role = "proposer"
	RoleCritic      Role = "critic"
	RoleSynthesizer Role = "synthesizer"
	RoleValidator   Role = "validator"
	RoleGeneralist  Role = "generalist"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleProposer, RoleCritic, RoleSynthesizer, RoleValidator, RoleGeneralist:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Priority classifies the urgency of a collaboration request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether the priority is one of the accepted values.
// The empty string is valid: priority is optional on requests.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Participant is one external text-generation identity taking part in a
// session. Created once during selection; the protocol itself never mutates
// a participant after creation.
type Participant struct {
	ID              string   `json:"id" yaml:"id"`
	Provider        Provider `json:"provider" yaml:"provider"`
	Model           string   `json:"model" yaml:"model"`
	Role            Role     `json:"role" yaml:"role"`
	Strengths       []string `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Specializations []string `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	IsActive        bool     `json:"is_active" yaml:"is_active"`
	CurrentLoad     int      `json:"current_load" yaml:"current_load"`
}

// ContributionMeta records per-call bookkeeping for a contribution.
type ContributionMeta struct {
	ProcessingTime time.Duration `json:"processing_time" yaml:"processing_time"`
	RetryCount     int           `json:"retry_count" yaml:"retry_count"`
}

// Contribution is one participant's output within a round. Contributions are
// created only while their round is active and are never mutated or deleted
// afterward.
type Contribution struct {
	ID         string           `json:"id" yaml:"id"`
	RoundID    string           `json:"round_id" yaml:"round_id"`
	Author     Participant      `json:"author" yaml:"author"`
	Content    string           `json:"content" yaml:"content"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	BuildUpon  []string         `json:"build_upon,omitempty" yaml:"build_upon,omitempty"`
	Critiques  []string         `json:"critiques,omitempty" yaml:"critiques,omitempty"`
	Timestamp  time.Time        `json:"timestamp" yaml:"timestamp"`
	TokenCount int              `json:"token_count" yaml:"token_count"`
	Meta       ContributionMeta `json:"meta" yaml:"meta"`
}

// RoundKind selects a round's prompt and aggregation policy.
type RoundKind string

const (
	KindPropose    RoundKind = "propose"
	KindCritique   RoundKind = "critique"
	KindSynthesize RoundKind = "synthesize"
	KindValidate   RoundKind = "validate"
)

// RoundStatus is a round's lifecycle state.
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
	RoundTimeout   RoundStatus = "timeout"
)

// Terminal reports whether the status is one of the two end states.
func (s RoundStatus) Terminal() bool {
	return s == RoundCompleted || s == RoundTimeout
}

// SessionStatus is a session's lifecycle state. Completed is the only
// externally durable terminal state; consensus_reached and timeout record
// why deliberation stopped until finalization runs.
type SessionStatus string

const (
	SessionInitializing     SessionStatus = "initializing"
	SessionActive           SessionStatus = "active"
	SessionConsensusReached SessionStatus = "consensus_reached"
	SessionCompleted        SessionStatus = "completed"
	SessionTimeout          SessionStatus = "timeout"
)

// ConsensusLevel is a coarse agreement classification derived from the
// confidence reported by a round's contributions.
type ConsensusLevel string

const (
	ConsensusUnanimous         ConsensusLevel = "unanimous"
	ConsensusQualifiedMajority ConsensusLevel = "qualified_majority"
	ConsensusSimpleMajority    ConsensusLevel = "simple_majority"
	ConsensusForced            ConsensusLevel = "forced_consensus"
)

// RoundOutput is the aggregate a round produces exactly once, on completion
// or forced timeout.
type RoundOutput struct {
	RoundID                    string         `json:"round_id" yaml:"round_id"`
	Kind                       RoundKind      `json:"kind" yaml:"kind"`
	SynthesizedContent         string         `json:"synthesized_content" yaml:"synthesized_content"`
	ParticipatingContributions []string       `json:"participating_contributions,omitempty" yaml:"participating_contributions,omitempty"`
	ConsensusLevel             ConsensusLevel `json:"consensus_level" yaml:"consensus_level"`
	QualityScore               float64        `json:"quality_score" yaml:"quality_score"`
	EmergenceIndicators        []string       `json:"emergence_indicators,omitempty" yaml:"emergence_indicators,omitempty"`

	// NextRoundRecommendation is empty when no further round is recommended.
	NextRoundRecommendation RoundKind `json:"next_round_recommendation,omitempty" yaml:"next_round_recommendation,omitempty"`
}

// TerminationReason records why deliberation stopped, preserved across
// finalization after the session status moves to completed.
type TerminationReason string

const (
	TerminationRoundsExhausted TerminationReason = "rounds_exhausted"
	TerminationConsensus       TerminationReason = "consensus"
	TerminationQualityTarget   TerminationReason = "quality_target"
	TerminationTimeout         TerminationReason = "timeout"
)

// SessionMetrics is recomputed at finalization from the round and
// contribution history.
type SessionMetrics struct {
	TotalDuration          time.Duration      `json:"total_duration" yaml:"total_duration"`
	RoundCount             int                `json:"round_count" yaml:"round_count"`
	ContributionCount      int                `json:"contribution_count" yaml:"contribution_count"`
	ConsensusAchieved      bool               `json:"consensus_achieved" yaml:"consensus_achieved"`
	TerminationReason      TerminationReason  `json:"termination_reason" yaml:"termination_reason"`
	ConsensusTime          time.Duration      `json:"consensus_time,omitempty" yaml:"consensus_time,omitempty"`
	QualityImprovement     float64            `json:"quality_improvement" yaml:"quality_improvement"`
	TokenEfficiency        float64            `json:"token_efficiency" yaml:"token_efficiency"`
	ParticipantUtilization map[string]float64 `json:"participant_utilization,omitempty" yaml:"participant_utilization,omitempty"`
	EmergenceScore         float64            `json:"emergence_score" yaml:"emergence_score"`
}

// TokenUsage summarizes token spend across a finished session.
type TokenUsage struct {
	TotalTokens          int            `json:"total_tokens" yaml:"total_tokens"`
	TokensPerParticipant map[string]int `json:"tokens_per_participant,omitempty" yaml:"tokens_per_participant,omitempty"`
	TokensPerRound       map[int]int    `json:"tokens_per_round,omitempty" yaml:"tokens_per_round,omitempty"`
	Efficiency           float64        `json:"efficiency" yaml:"efficiency"`
	BudgetUtilization    float64        `json:"budget_utilization" yaml:"budget_utilization"`
	CostEstimate         float64        `json:"cost_estimate" yaml:"cost_estimate"`
}

// CollaborativeOutput is the single synthesized result of a session,
// computed once at finalization.
type CollaborativeOutput struct {
	SessionID           string         `json:"session_id" yaml:"session_id"`
	Content             string         `json:"content" yaml:"content"`
	Sources             []Contribution `json:"sources,omitempty" yaml:"sources,omitempty"`
	Rounds              []RoundOutput  `json:"rounds,omitempty" yaml:"rounds,omitempty"`
	EmergenceIndicators []string       `json:"emergence_indicators,omitempty" yaml:"emergence_indicators,omitempty"`
	QualityScore        float64        `json:"quality_score" yaml:"quality_score"`
	ConsensusLevel      ConsensusLevel `json:"consensus_level" yaml:"consensus_level"`
	SynthesisLog        []string       `json:"synthesis_log,omitempty" yaml:"synthesis_log,omitempty"`
	ImprovementMetrics  []string       `json:"improvement_metrics,omitempty" yaml:"improvement_metrics,omitempty"`
	TokenUsage          TokenUsage     `json:"token_usage" yaml:"token_usage"`
}

// CollaborationRequest is the inbound request that starts a session.
// Zero values mean "use the engine default".
type CollaborationRequest struct {
	Prompt                string        `json:"prompt" yaml:"prompt"`
	Priority              Priority      `json:"priority,omitempty" yaml:"priority,omitempty"`
	TimeLimit             time.Duration `json:"time_limit,omitempty" yaml:"time_limit,omitempty"`
	MaxRounds             int           `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`
	ConsensusThreshold    float64       `json:"consensus_threshold,omitempty" yaml:"consensus_threshold,omitempty"`
	PreferredParticipants []string      `json:"preferred_participants,omitempty" yaml:"preferred_participants,omitempty"`
	CostBudget            float64       `json:"cost_budget,omitempty" yaml:"cost_budget,omitempty"`
}

// Clamp100 bounds a confidence, quality, or threshold value to [0, 100].
func Clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
