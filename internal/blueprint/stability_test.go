package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxikal/cerberus/internal/config"
)

func defaultWeights() config.StabilityWeights {
	return config.StabilityWeights{Complexity: 0.4, Churn: 0.3, Coverage: 0.2, Deps: 0.1}
}

func TestCalculateStabilityNilWithFewerThanTwoFactors(t *testing.T) {
	require.Nil(t, CalculateStability(&ComplexityMetrics{Level: "Low"}, nil, nil, nil, defaultWeights()))
}

func TestCalculateStabilityLowComplexityHighCoverageIsSafe(t *testing.T) {
	score := CalculateStability(
		&ComplexityMetrics{Level: "Low"},
		&ChurnMetrics{EditFrequency: 0},
		&CoverageMetrics{Percent: 95},
		nil,
		defaultWeights(),
	)
	require.NotNil(t, score)
	require.Equal(t, "🟢 SAFE", score.Level)
}

func TestCalculateStabilityHighComplexityFrequentChurnIsHighRisk(t *testing.T) {
	score := CalculateStability(
		&ComplexityMetrics{Level: "High"},
		&ChurnMetrics{EditFrequency: 10},
		&CoverageMetrics{Percent: 5},
		make([]DependencyInfo, 12),
		defaultWeights(),
	)
	require.NotNil(t, score)
	require.Equal(t, "🔴 HIGH RISK", score.Level)
}

func TestStabilityLevelBoundaries(t *testing.T) {
	require.Equal(t, "🟢 SAFE", stabilityLevel(0.76))
	require.Equal(t, "🟡 MEDIUM", stabilityLevel(0.6))
	require.Equal(t, "🔴 HIGH RISK", stabilityLevel(0.49))
}
