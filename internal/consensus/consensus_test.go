// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consensus

import (
	"fmt"
	"math"
	"testing"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

func contrib(provider types.Provider, confidence float64) types.Contribution {
	return types.Contribution{
		Author:     types.Participant{Provider: provider},
		Confidence: confidence,
	}
}

func TestAgreement(t *testing.T) {
	tests := []struct {
		name     string
		contribs []types.Contribution
		want     float64
	}{
		{"empty", nil, 0},
		{"single", []types.Contribution{contrib(types.ProviderAnthropic, 80)}, 0.80},
		{"average", []types.Contribution{
			contrib(types.ProviderAnthropic, 90),
			contrib(types.ProviderOpenAI, 70),
		}, 0.80},
		{"clamped above 100", []types.Contribution{contrib(types.ProviderAnthropic, 150)}, 1.0},
		{"clamped below 0", []types.Contribution{contrib(types.ProviderAnthropic, -10)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Agreement(tt.contribs); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Agreement() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		confidence []float64
		want       types.ConsensusLevel
	}{
		{"empty is forced", nil, types.ConsensusForced},
		{"unanimous at 90", []float64{90}, types.ConsensusUnanimous},
		{"unanimous above", []float64{95, 100}, types.ConsensusUnanimous},
		{"qualified at 66", []float64{66}, types.ConsensusQualifiedMajority},
		{"qualified below 90", []float64{89}, types.ConsensusQualifiedMajority},
		{"simple at 51", []float64{51}, types.ConsensusSimpleMajority},
		{"forced below 51", []float64{50}, types.ConsensusForced},
		{"mixed averages", []float64{100, 40}, types.ConsensusQualifiedMajority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var contribs []types.Contribution
			for _, c := range tt.confidence {
				contribs = append(contribs, contrib(types.ProviderAnthropic, c))
			}
			if got := Classify(contribs); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQualityScoreEmpty(t *testing.T) {
	if got := QualityScore(nil); got != 0 {
		t.Errorf("QualityScore(nil) = %f, want 0", got)
	}
}

func TestQualityScoreComposition(t *testing.T) {
	// One contribution, one provider: 50 + 10 + 5 = 65.
	contribs := []types.Contribution{contrib(types.ProviderAnthropic, 50)}
	if got := QualityScore(contribs); math.Abs(got-65) > 1e-9 {
		t.Errorf("QualityScore = %f, want 65", got)
	}
}

func TestQualityScoreVolumeCap(t *testing.T) {
	// Five contributions from one provider at confidence 10:
	// 10 + min(50, 30) + 5 = 45.
	var contribs []types.Contribution
	for i := 0; i < 5; i++ {
		contribs = append(contribs, contrib(types.ProviderAnthropic, 10))
	}
	if got := QualityScore(contribs); math.Abs(got-45) > 1e-9 {
		t.Errorf("QualityScore = %f, want 45", got)
	}
}

func TestQualityScoreCappedAt100(t *testing.T) {
	contribs := []types.Contribution{
		contrib(types.ProviderAnthropic, 100),
		contrib(types.ProviderOpenAI, 100),
		contrib(types.ProviderGemini, 100),
	}
	if got := QualityScore(contribs); got != 100 {
		t.Errorf("QualityScore = %f, want 100", got)
	}
}

// Holding confidence fixed, quality never decreases as provider diversity grows.
func TestQualityScoreMonotonicInProviders(t *testing.T) {
	providers := []types.Provider{
		types.ProviderAnthropic,
		types.ProviderOpenAI,
		types.ProviderGemini,
		types.ProviderMistral,
	}

	prev := 0.0
	for n := 1; n <= len(providers); n++ {
		var contribs []types.Contribution
		for i := 0; i < n; i++ {
			contribs = append(contribs, contrib(providers[i], 40))
		}
		got := QualityScore(contribs)
		if got < prev {
			t.Errorf("quality decreased with %d providers: %f < %f", n, got, prev)
		}
		prev = got
	}
}

func TestUniqueProviders(t *testing.T) {
	contribs := []types.Contribution{
		contrib(types.ProviderAnthropic, 80),
		contrib(types.ProviderAnthropic, 70),
		contrib(types.ProviderOpenAI, 60),
	}
	if got := UniqueProviders(contribs); got != 2 {
		t.Errorf("UniqueProviders = %d, want 2", got)
	}
}

func TestIndicators(t *testing.T) {
	tests := []struct {
		name     string
		contribs []types.Contribution
		want     []string
	}{
		{"empty", nil, nil},
		{
			"high alignment needs two contributors",
			[]types.Contribution{contrib(types.ProviderAnthropic, 95)},
			nil,
		},
		{
			"alignment and diversity",
			[]types.Contribution{
				contrib(types.ProviderAnthropic, 90),
				contrib(types.ProviderOpenAI, 85),
				contrib(types.ProviderGemini, 95),
			},
			[]string{IndicatorHighAlignment, IndicatorProviderDiversity},
		},
		{
			"cross building and review",
			[]types.Contribution{
				{Author: types.Participant{Provider: types.ProviderAnthropic}, Confidence: 50, BuildUpon: []string{"c1"}, Critiques: []string{"c1"}},
			},
			[]string{IndicatorCrossBuilding, IndicatorCriticalReview},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Indicators(tt.contribs)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Indicators() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmergenceScoreRange(t *testing.T) {
	contribs := []types.Contribution{
		{Author: types.Participant{Provider: types.ProviderAnthropic}, Confidence: 90, BuildUpon: []string{"a"}, Critiques: []string{"a"}},
		{Author: types.Participant{Provider: types.ProviderOpenAI}, Confidence: 85},
		{Author: types.Participant{Provider: types.ProviderGemini}, Confidence: 88},
	}
	if got := EmergenceScore(contribs); got != 100 {
		t.Errorf("EmergenceScore = %f, want 100", got)
	}
	if got := EmergenceScore(nil); got != 0 {
		t.Errorf("EmergenceScore(nil) = %f, want 0", got)
	}
}
