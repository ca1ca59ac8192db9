// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EventType identifies an engine event delivered on the outbound channel.
type EventType string

const (
	EventSessionStarted       EventType = "session_started"
	EventRoundStarted         EventType = "round_started"
	EventContributionReceived EventType = "contribution_received"
	EventTimeoutWarning       EventType = "timeout_warning"
	EventSessionCompleted     EventType = "session_completed"
	EventError                EventType = "error"
	EventConsensusReached     EventType = "consensus_reached"
)

// Event is a typed notification emitted by the engine. External subscribers
// drain these from the manager's Events channel; the engine never blocks on
// delivery.
type Event struct {
	Type      EventType      `json:"type" yaml:"type"`
	SessionID string         `json:"session_id" yaml:"session_id"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Data      map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}
