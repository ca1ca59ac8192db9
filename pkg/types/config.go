// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for generation backends.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "consensus-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GenerationConfig holds settings for calls to generation backends.
type GenerationConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRetries is the number of retry attempts for rate-limited calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTokens caps the response length requested from each backend (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// PanelEntry configures one participant slot on the deliberation panel.
type PanelEntry struct {
	// Provider is the generation backend identifier (see ParseProvider).
	Provider string `json:"provider" yaml:"provider"`

	// Model is the provider-specific model identifier.
	Model string `json:"model" yaml:"model"`

	// Key names the secret holding the provider API key (e.g. "anthropic-api-key").
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Role is the participant's function on the panel (see ParseRole).
	Role string `json:"role" yaml:"role"`
}

// PanelConfig holds the configured deliberation panel.
type PanelConfig struct {
	// Entries lists the panel slots. Empty means use the built-in default panel.
	Entries []PanelEntry `json:"entries,omitempty" yaml:"entries,omitempty"`

	// MaxParticipants caps the panel size (default 5).
	MaxParticipants int `json:"max_participants" yaml:"max_participants"`
}

// SessionConfig holds settings for session and round execution.
type SessionConfig struct {
	// MaxRounds is the default number of deliberation rounds (default 4).
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`

	// TimeLimit is the default session deadline (default 5m, minimum 10s).
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit"`

	// ConsensusThreshold is the default agreement percentage that ends
	// deliberation early (default 95, above every round's default
	// confidence so default-config sessions run the full sequence).
	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold"`

	// QualityTarget is the round quality score that ends deliberation early
	// without declaring consensus. Zero disables the quality early exit.
	QualityTarget float64 `json:"quality_target" yaml:"quality_target"`

	// RoundTimeLimits overrides the per-kind round deadlines.
	RoundTimeLimits map[RoundKind]time.Duration `json:"round_time_limits,omitempty" yaml:"round_time_limits,omitempty"`

	// Manual defers round execution until ExecuteSessionRounds is called.
	// Used by tests and callers that drive rounds themselves.
	Manual bool `json:"manual" yaml:"manual"`

	// EventBuffer is the outbound event channel capacity (default 256).
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`
}

// ArchiveConfig holds settings for the session archive.
type ArchiveConfig struct {
	// ArchiveDir is the base directory for the archive database (contains index/).
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// EngineConfig groups all engine configuration.
type EngineConfig struct {
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Panel      PanelConfig      `json:"panel" yaml:"panel"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive"`
}
