// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package panel resolves a configured deliberation panel into typed
// participants. Provider and role strings are validated against closed
// enumerations; a typo is a configuration error, never a silent fallback.
package panel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

// DefaultMaxParticipants caps the panel size when the config does not.
const DefaultMaxParticipants = 5

// traits describes what a provider is good at. The table is total over the
// closed Provider enumeration.
type traits struct {
	strengths       []string
	specializations []string
}

var providerTraits = map[types.Provider]traits{
	types.ProviderAnthropic: {
		strengths:       []string{"reasoning", "synthesis", "nuance"},
		specializations: []string{"long-form-analysis", "code-review"},
	},
	types.ProviderOpenAI: {
		strengths:       []string{"breadth", "structured-output"},
		specializations: []string{"brainstorming", "tool-use"},
	},
	types.ProviderGemini: {
		strengths:       []string{"factual-recall", "multimodal"},
		specializations: []string{"research", "summarization"},
	},
	types.ProviderMistral: {
		strengths:       []string{"speed", "conciseness"},
		specializations: []string{"classification", "drafting"},
	},
	types.ProviderLocal: {
		strengths:       []string{"privacy", "availability"},
		specializations: []string{"offline-drafting"},
	},
}

// costPerMegaToken estimates USD cost per million tokens by provider.
// Rough blended input/output rates, used only for the output cost estimate.
var costPerMegaToken = map[types.Provider]float64{
	types.ProviderAnthropic: 9.0,
	types.ProviderOpenAI:    7.5,
	types.ProviderGemini:    5.0,
	types.ProviderMistral:   3.0,
	types.ProviderLocal:     0.0,
}

// CostRate returns the estimated USD cost per million tokens for a provider.
func CostRate(p types.Provider) float64 {
	return costPerMegaToken[p]
}

// defaultEntries is the built-in panel used when no panel is configured.
var defaultEntries = []types.PanelEntry{
	{Provider: "anthropic", Model: "claude-sonnet-4-5", Key: "anthropic-api-key", Role: "synthesizer"},
	{Provider: "openai", Model: "gpt-4o", Key: "openai-api-key", Role: "critic"},
	{Provider: "gemini", Model: "gemini-2.5-pro", Key: "gemini-api-key", Role: "proposer"},
}

// Select resolves the configured panel (or the built-in default) into
// participants. The preferred filter keeps only participants whose provider
// appears in preferred, unless that would empty the panel, in which case the
// full panel stands. The result is truncated to the configured maximum.
func Select(cfg types.PanelConfig, preferred []string) ([]types.Participant, error) {
	entries := cfg.Entries
	if len(entries) == 0 {
		entries = defaultEntries
	}

	participants := make([]types.Participant, 0, len(entries))
	for _, e := range entries {
		p, err := fromEntry(e)
		if err != nil {
			return nil, fmt.Errorf("panel entry %q: %w", e.Provider, err)
		}
		participants = append(participants, p)
	}

	if filtered := filterPreferred(participants, preferred); len(filtered) > 0 {
		participants = filtered
	}

	max := cfg.MaxParticipants
	if max <= 0 {
		max = DefaultMaxParticipants
	}
	if len(participants) > max {
		participants = participants[:max]
	}

	return participants, nil
}

// fromEntry builds one participant from a panel slot, validating the
// provider and role strings against their closed enumerations.
func fromEntry(e types.PanelEntry) (types.Participant, error) {
	provider, err := types.ParseProvider(e.Provider)
	if err != nil {
		return types.Participant{}, err
	}
	role, err := types.ParseRole(e.Role)
	if err != nil {
		return types.Participant{}, err
	}

	tr := providerTraits[provider]
	return types.Participant{
		ID:              uuid.NewString(),
		Provider:        provider,
		Model:           e.Model,
		Role:            role,
		Strengths:       tr.strengths,
		Specializations: tr.specializations,
		IsActive:        true,
	}, nil
}

func filterPreferred(participants []types.Participant, preferred []string) []types.Participant {
	if len(preferred) == 0 {
		return nil
	}
	want := make(map[string]bool, len(preferred))
	for _, p := range preferred {
		want[p] = true
	}
	var out []types.Participant
	for _, p := range participants {
		if want[string(p.Provider)] {
			out = append(out, p)
		}
	}
	return out
}

// Synthesizer picks the participant that executes a synthesis round:
// the first with the synthesizer role, else the first participant.
func Synthesizer(participants []types.Participant) (types.Participant, error) {
	if len(participants) == 0 {
		return types.Participant{}, fmt.Errorf("empty panel")
	}
	for _, p := range participants {
		if p.Role == types.RoleSynthesizer {
			return p, nil
		}
	}
	return participants[0], nil
}
