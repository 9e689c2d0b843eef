package blueprint

import "github.com/proxikal/cerberus/internal/config"

// StabilityScore is the weighted composite safety signal of spec.md
// §4.8, grounded on stability_scorer.py and schemas.py's StabilityScore.
type StabilityScore struct {
	Score   float64            `json:"score"`
	Level   string             `json:"level"` // "🟢 SAFE", "🟡 MEDIUM", "🔴 HIGH RISK"
	Factors map[string]float64 `json:"factors"`
	Method  string             `json:"method"` // always "heuristic"
}

// CalculateStability combines whichever of complexity/churn/coverage are
// available (at least two are required, matching stability_scorer.py's
// minimum-signal gate) plus the dependency count into a single weighted
// score. Returns nil when fewer than two factors are available.
func CalculateStability(complexity *ComplexityMetrics, churn *ChurnMetrics, coverage *CoverageMetrics, deps []DependencyInfo, weights config.StabilityWeights) *StabilityScore {
	available := 0
	if complexity != nil {
		available++
	}
	if churn != nil {
		available++
	}
	if coverage != nil {
		available++
	}
	if available < 2 {
		return nil
	}

	factors := make(map[string]float64, 4)

	complexityFactor := 1 - normalizeComplexityLevel(complexity)
	factors["complexity"] = complexityFactor

	churnFactor := 1.0
	if churn != nil {
		freq := float64(churn.EditFrequency) / 10.0
		if freq > 1 {
			freq = 1
		}
		churnFactor = 1 - freq
	}
	factors["churn"] = churnFactor

	coverageFactor := 0.5
	if coverage != nil {
		coverageFactor = coverage.Percent / 100.0
	}
	factors["coverage"] = coverageFactor

	depFactor := 0.7
	if deps != nil {
		ratio := float64(len(deps)) / 10.0
		if ratio > 1 {
			ratio = 1
		}
		depFactor = 1 - ratio
	}
	factors["deps"] = depFactor

	score := weights.Coverage*coverageFactor +
		weights.Complexity*complexityFactor +
		weights.Churn*churnFactor +
		weights.Deps*depFactor

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return &StabilityScore{
		Score:   score,
		Level:   stabilityLevel(score),
		Factors: factors,
		Method:  "heuristic",
	}
}

// normalizeComplexityLevel maps a ComplexityMetrics level to the
// normalized [0,1] weight stability_scorer.py uses: Low=0.2,
// Medium=0.5, High=0.9. A nil complexity defaults to Medium (0.5).
func normalizeComplexityLevel(complexity *ComplexityMetrics) float64 {
	if complexity == nil {
		return 0.5
	}
	switch complexity.Level {
	case "Low":
		return 0.2
	case "High":
		return 0.9
	default:
		return 0.5
	}
}

// stabilityLevel applies schemas.py's StabilityScore.calculate_level
// thresholds: SAFE above 0.75, MEDIUM from 0.50 to 0.75, HIGH RISK below.
func stabilityLevel(score float64) string {
	switch {
	case score > 0.75:
		return "🟢 SAFE"
	case score >= 0.50:
		return "🟡 MEDIUM"
	default:
		return "🔴 HIGH RISK"
	}
}
