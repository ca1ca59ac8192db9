// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package round

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

func contrib(id string, provider types.Provider, confidence float64, content string) types.Contribution {
	return types.Contribution{
		ID:         id,
		Author:     types.Participant{ID: "author-" + id, Provider: provider, Role: types.RoleGeneralist},
		Confidence: confidence,
		Content:    content,
	}
}

func activeRound(t *testing.T, kind types.RoundKind) *Round {
	t.Helper()
	p, ok := PolicyFor(kind)
	require.True(t, ok)
	r := New("s1", 1, p, 0)
	require.NoError(t, r.Start())
	return r
}

func TestNewRoundDefaults(t *testing.T) {
	p, _ := PolicyFor(types.KindPropose)
	r := New("s1", 3, p, 0)

	assert.NotEmpty(t, r.ID())
	assert.Equal(t, "s1", r.SessionID())
	assert.Equal(t, 3, r.Number())
	assert.Equal(t, types.KindPropose, r.Kind())
	assert.Equal(t, 60*time.Second, r.TimeLimit())
	assert.Equal(t, types.RoundPending, r.Status())
}

func TestTimeLimitOverride(t *testing.T) {
	p, _ := PolicyFor(types.KindPropose)
	r := New("s1", 1, p, 5*time.Second)
	assert.Equal(t, 5*time.Second, r.TimeLimit())
}

func TestStartOnlyFromPending(t *testing.T) {
	r := activeRound(t, types.KindPropose)
	assert.Error(t, r.Start())
}

func TestAddContributionRequiresActive(t *testing.T) {
	p, _ := PolicyFor(types.KindPropose)
	r := New("s1", 1, p, 0)

	err := r.AddContribution(contrib("c1", types.ProviderAnthropic, 80, "x"))
	require.Error(t, err)
	assert.Empty(t, r.Contributions())

	require.NoError(t, r.Start())
	require.NoError(t, r.AddContribution(contrib("c1", types.ProviderAnthropic, 80, "x")))
	assert.Len(t, r.Contributions(), 1)
}

func TestAddContributionAfterTimeoutRejected(t *testing.T) {
	r := activeRound(t, types.KindPropose)
	require.NoError(t, r.AddContribution(contrib("c1", types.ProviderAnthropic, 80, "early")))

	_, ok := r.ForceTimeout()
	require.True(t, ok)

	// A late in-flight result must be rejected without mutating the list.
	err := r.AddContribution(contrib("c2", types.ProviderOpenAI, 90, "late"))
	require.Error(t, err)
	assert.Len(t, r.Contributions(), 1)

	out, ok := r.Output()
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, out.ParticipatingContributions)
}

func TestCompleteComputesOutputOnce(t *testing.T) {
	r := activeRound(t, types.KindPropose)
	require.NoError(t, r.AddContribution(contrib("c1", types.ProviderAnthropic, 95, "only answer")))

	out, ok := r.Complete()
	require.True(t, ok)
	assert.Equal(t, types.RoundCompleted, r.Status())
	assert.Equal(t, "only answer", out.SynthesizedContent)
	assert.False(t, r.EndTime().IsZero())

	// A second terminal transition loses the race and returns the cache.
	again, ok := r.ForceTimeout()
	assert.False(t, ok)
	assert.Equal(t, out, again)
	assert.Equal(t, types.RoundCompleted, r.Status())
}

func TestEmptyRoundOutput(t *testing.T) {
	r := activeRound(t, types.KindPropose)

	out, ok := r.ForceTimeout()
	require.True(t, ok)
	assert.Equal(t, types.RoundTimeout, r.Status())
	assert.Equal(t, NoContributionsMessage, out.SynthesizedContent)
	assert.Equal(t, types.ConsensusForced, out.ConsensusLevel)
	assert.Zero(t, out.QualityScore)
}

func TestMultiContributionDigest(t *testing.T) {
	r := activeRound(t, types.KindPropose)
	long := strings.Repeat("a", 300)
	require.NoError(t, r.AddContribution(contrib("c1", types.ProviderAnthropic, 80, long)))
	require.NoError(t, r.AddContribution(contrib("c2", types.ProviderOpenAI, 85, "short take")))

	out, _ := r.Complete()
	assert.Contains(t, out.SynthesizedContent, strings.Repeat("a", digestLimit)+"...")
	assert.Contains(t, out.SynthesizedContent, "short take")
	assert.Contains(t, out.SynthesizedContent, "[anthropic/generalist]")
	assert.NotContains(t, out.SynthesizedContent, strings.Repeat("a", digestLimit+1))
}

func TestNextRecommendation(t *testing.T) {
	tests := []struct {
		name    string
		kind    types.RoundKind
		quality float64
		want    types.RoundKind
	}{
		{"propose to critique", types.KindPropose, 10, types.KindCritique},
		{"critique to synthesize", types.KindCritique, 99, types.KindSynthesize},
		{"synthesize to validate", types.KindSynthesize, 50, types.KindValidate},
		{"validate low quality restarts", types.KindValidate, 69, types.KindPropose},
		{"validate good quality ends", types.KindValidate, 70, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextRecommendation(tt.kind, tt.quality); got != tt.want {
				t.Errorf("nextRecommendation(%s, %f) = %q, want %q", tt.kind, tt.quality, got, tt.want)
			}
		})
	}
}

func TestConcurrentAppendsDuringTimeout(t *testing.T) {
	r := activeRound(t, types.KindPropose)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.AddContribution(contrib("c", types.ProviderAnthropic, 80, "x"))
		}
	}()
	r.ForceTimeout()
	<-done

	// Whatever landed before the timeout is frozen in the output.
	out, ok := r.Output()
	require.True(t, ok)
	assert.Len(t, out.ParticipatingContributions, len(r.Contributions()))
}
