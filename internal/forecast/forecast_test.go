package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func record(weeksAgo int, estimated, completed float64) domain.HistoricalSprintRecord {
	return domain.HistoricalSprintRecord{
		ID:             "r",
		Project:        "DEMO",
		EstimatedHours: estimated,
		CompletedHours: completed,
		DurationDays:   7,
		EndedAt:        now.AddDate(0, 0, -7*weeksAgo),
	}
}

func baseInput(records ...domain.HistoricalSprintRecord) Input {
	return Input{
		Project:        "DEMO",
		Records:        records,
		RemainingHours: 40,
		Deadline:       now.AddDate(0, 0, 14),
		Now:            now,
	}
}

func TestForecastUnavailableWithSingleRecord(t *testing.T) {
	forecast := Compute(baseInput(record(1, 40, 40)))
	assert.False(t, forecast.Available)
	assert.Equal(t, "insufficient sprint history", forecast.Reason)
	assert.Equal(t, 1, forecast.RecordsUsed)
}

func TestForecastUnavailableWithZeroVelocity(t *testing.T) {
	forecast := Compute(baseInput(record(2, 40, 0), record(1, 40, 0)))
	assert.False(t, forecast.Available)
	assert.Equal(t, "historical velocity is zero", forecast.Reason)
}

func TestVelocityWeightsRecentSprintsHigher(t *testing.T) {
	// Older sprint completed 10h/week, newer 30h/week; weighted mean
	// (1*10 + 2*30) / 3 leans toward the newer one.
	forecast := Compute(baseInput(record(2, 40, 10), record(1, 40, 30)))
	require.True(t, forecast.Available)
	assert.InDelta(t, 23.333, forecast.VelocityPerWeek, 0.01)
}

func TestHistorySizeLimitsRecordsUsed(t *testing.T) {
	var records []domain.HistoricalSprintRecord
	for i := 1; i <= 10; i++ {
		records = append(records, record(i, 40, 40))
	}
	in := baseInput(records...)
	in.HistorySize = 6

	forecast := Compute(in)
	require.True(t, forecast.Available)
	assert.Equal(t, 6, forecast.RecordsUsed)
}

func TestEstimateAccuracyRatio(t *testing.T) {
	// 80 estimated, 60 completed across history.
	forecast := Compute(baseInput(record(2, 40, 20), record(1, 40, 40)))
	require.True(t, forecast.Available)
	assert.InDelta(t, 0.75, forecast.EstimateAccuracy, 0.001)
}

func TestExpectedWeeksNeeded(t *testing.T) {
	// Steady 20h/week against 40h remaining.
	forecast := Compute(baseInput(record(2, 20, 20), record(1, 20, 20)))
	require.True(t, forecast.Available)
	assert.InDelta(t, 2, forecast.ExpectedWeeksNeeded, 0.001)
}

func TestCompletionProbabilityAtExactFit(t *testing.T) {
	// 40h at 20h/week needs 2 weeks; deadline is exactly 2 weeks out.
	forecast := Compute(baseInput(record(2, 20, 20), record(1, 20, 20)))
	require.True(t, forecast.Available)
	assert.InDelta(t, 0.5, forecast.CompletionProbability, 0.001)
}

func TestCompletionProbabilityIsMonotonicAndClamped(t *testing.T) {
	prev := 1.0
	for weeksNeeded := 0.0; weeksNeeded <= 10; weeksNeeded += 0.5 {
		p := completionProbability(weeksNeeded, 2)
		assert.LessOrEqual(t, p, prev, "probability must not rise as work grows")
		assert.GreaterOrEqual(t, p, 0.05)
		assert.LessOrEqual(t, p, 0.95)
		prev = p
	}
}

func TestRiskLevels(t *testing.T) {
	tests := []struct {
		name    string
		overrun float64
		want    domain.RiskLevel
	}{
		{"ahead of schedule", -2, domain.RiskLow},
		{"under a week over", 0.5, domain.RiskLow},
		{"one to two weeks over", 1.5, domain.RiskMedium},
		{"more than two weeks over", 3, domain.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, riskLevel(tt.overrun))
		})
	}
}

func TestRiskMatchesExpectedOverrun(t *testing.T) {
	// 80h at 10h/week needs 8 weeks against a 2 week deadline.
	in := baseInput(record(2, 10, 10), record(1, 10, 10))
	in.RemainingHours = 80

	forecast := Compute(in)
	require.True(t, forecast.Available)
	assert.Equal(t, domain.RiskHigh, forecast.Risk)
	assert.InDelta(t, 0.05, forecast.CompletionProbability, 0.001)
}
