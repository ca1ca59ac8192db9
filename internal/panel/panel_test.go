// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package panel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

func TestSelectDefaults(t *testing.T) {
	participants, err := Select(types.PanelConfig{}, nil)
	require.NoError(t, err)
	require.Len(t, participants, len(defaultEntries))

	seen := make(map[string]bool)
	for _, p := range participants {
		assert.True(t, p.IsActive)
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Strengths)
		assert.False(t, seen[p.ID], "duplicate participant id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestSelectConfiguredPanel(t *testing.T) {
	cfg := types.PanelConfig{
		Entries: []types.PanelEntry{
			{Provider: "mistral", Model: "mistral-large", Role: "proposer"},
			{Provider: "local", Model: "llama-3.3-70b", Role: "validator"},
		},
	}
	participants, err := Select(cfg, nil)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, types.ProviderMistral, participants[0].Provider)
	assert.Equal(t, types.RoleValidator, participants[1].Role)
}

func TestSelectRejectsUnknownProvider(t *testing.T) {
	cfg := types.PanelConfig{
		Entries: []types.PanelEntry{{Provider: "claud", Model: "m", Role: "critic"}},
	}
	_, err := Select(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestSelectRejectsUnknownRole(t *testing.T) {
	cfg := types.PanelConfig{
		Entries: []types.PanelEntry{{Provider: "anthropic", Model: "m", Role: "boss"}},
	}
	_, err := Select(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestSelectPreferredFilter(t *testing.T) {
	participants, err := Select(types.PanelConfig{}, []string{"openai"})
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, types.ProviderOpenAI, participants[0].Provider)
}

func TestSelectPreferredFilterEmptySubsetKeepsPanel(t *testing.T) {
	// No default entry uses mistral; the filter would empty the panel, so
	// the full panel stands.
	participants, err := Select(types.PanelConfig{}, []string{"mistral"})
	require.NoError(t, err)
	assert.Len(t, participants, len(defaultEntries))
}

func TestSelectCapsParticipants(t *testing.T) {
	var entries []types.PanelEntry
	for i := 0; i < 8; i++ {
		entries = append(entries, types.PanelEntry{Provider: "local", Model: "m", Role: "generalist"})
	}
	participants, err := Select(types.PanelConfig{Entries: entries}, nil)
	require.NoError(t, err)
	assert.Len(t, participants, DefaultMaxParticipants)
}

func TestSynthesizerPrefersRole(t *testing.T) {
	participants := []types.Participant{
		{ID: "a", Role: types.RoleCritic},
		{ID: "b", Role: types.RoleSynthesizer},
	}
	p, err := Synthesizer(participants)
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)
}

func TestSynthesizerFallsBackToFirst(t *testing.T) {
	participants := []types.Participant{
		{ID: "a", Role: types.RoleCritic},
		{ID: "b", Role: types.RoleValidator},
	}
	p, err := Synthesizer(participants)
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)
}

func TestSynthesizerEmptyPanel(t *testing.T) {
	_, err := Synthesizer(nil)
	assert.Error(t, err)
}

func TestCostRateTotalOverProviders(t *testing.T) {
	for _, p := range []types.Provider{
		types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderGemini,
		types.ProviderMistral, types.ProviderLocal,
	} {
		assert.GreaterOrEqual(t, CostRate(p), 0.0)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.yaml")
	content := `panel:
  - provider: anthropic
    model: claude-sonnet-4-5
    key: anthropic-api-key
    role: synthesizer
  - provider: openai
    model: gpt-4o
    role: critic
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "anthropic", entries[0].Provider)
	assert.Equal(t, "critic", entries[1].Role)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panel: []\n"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}
