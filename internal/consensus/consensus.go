// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consensus scores a round's contributions: an agreement
// classification, a 0-100 quality heuristic, and emergence indicators.
//
// Agreement is derived purely from each participant's self-reported
// confidence. No semantic comparison of contribution content is performed;
// the number is a proxy for agreement, not verified agreement.
package consensus

import "github.com/pdiddy/consensus-engine/pkg/types"

// Classification bands over the agreement score.
const (
	unanimousBand         = 0.90
	qualifiedMajorityBand = 0.66
	simpleMajorityBand    = 0.51
)

// Emergence indicator names.
const (
	IndicatorCrossBuilding     = "cross_building"
	IndicatorCriticalReview    = "critical_review"
	IndicatorHighAlignment     = "high_confidence_alignment"
	IndicatorProviderDiversity = "provider_diversity"
)

// indicatorCount is the number of distinct indicators EmergenceScore scales over.
const indicatorCount = 4

// Agreement returns the mean contribution confidence normalized to [0, 1].
// An empty round scores 0.
func Agreement(contribs []types.Contribution) float64 {
	if len(contribs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range contribs {
		sum += types.Clamp100(c.Confidence)
	}
	return sum / float64(len(contribs)) / 100
}

// Classify maps a round's contributions to a consensus level. A round with
// zero contributions is forced consensus.
func Classify(contribs []types.Contribution) types.ConsensusLevel {
	if len(contribs) == 0 {
		return types.ConsensusForced
	}
	switch score := Agreement(contribs); {
	case score >= unanimousBand:
		return types.ConsensusUnanimous
	case score >= qualifiedMajorityBand:
		return types.ConsensusQualifiedMajority
	case score >= simpleMajorityBand:
		return types.ConsensusSimpleMajority
	default:
		return types.ConsensusForced
	}
}

// QualityScore combines mean confidence, participation volume, and provider
// diversity into a 0-100 heuristic: avg + min(10*count, 30) + 5*providers,
// capped at 100. Zero contributions score 0.
func QualityScore(contribs []types.Contribution) float64 {
	if len(contribs) == 0 {
		return 0
	}

	volume := float64(len(contribs)) * 10
	if volume > 30 {
		volume = 30
	}
	diversity := float64(UniqueProviders(contribs)) * 5

	score := Agreement(contribs)*100 + volume + diversity
	if score > 100 {
		score = 100
	}
	return score
}

// UniqueProviders counts the distinct providers among the contributors.
func UniqueProviders(contribs []types.Contribution) int {
	seen := make(map[types.Provider]bool, len(contribs))
	for _, c := range contribs {
		seen[c.Author.Provider] = true
	}
	return len(seen)
}

// Indicators reports qualitative signals of emergent collaboration in a set
// of contributions: participants building on each other, critical review
// taking place, tight high-confidence alignment, and provider diversity.
func Indicators(contribs []types.Contribution) []string {
	if len(contribs) == 0 {
		return nil
	}

	var out []string

	for _, c := range contribs {
		if len(c.BuildUpon) > 0 {
			out = append(out, IndicatorCrossBuilding)
			break
		}
	}
	for _, c := range contribs {
		if len(c.Critiques) > 0 {
			out = append(out, IndicatorCriticalReview)
			break
		}
	}

	if len(contribs) >= 2 {
		aligned := true
		for _, c := range contribs {
			if types.Clamp100(c.Confidence) < 80 {
				aligned = false
				break
			}
		}
		if aligned {
			out = append(out, IndicatorHighAlignment)
		}
	}

	if UniqueProviders(contribs) >= 3 {
		out = append(out, IndicatorProviderDiversity)
	}

	return out
}

// EmergenceScore maps the fraction of present indicators to [0, 100].
func EmergenceScore(contribs []types.Contribution) float64 {
	return float64(len(Indicators(contribs))) / indicatorCount * 100
}
