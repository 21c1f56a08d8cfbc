package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

// DefaultHistorySize is how many recent sprint records feed the forecast
// when the caller does not say otherwise.
const DefaultHistorySize = 6

// MinRecords is the floor below which no forecast is produced.
const MinRecords = 2

// Input is everything one forecast needs. The engine is pure.
type Input struct {
	Project        string
	Records        []domain.HistoricalSprintRecord
	RemainingHours float64
	Deadline       time.Time
	HistorySize    int
	Now            time.Time
}

// Compute produces a completion forecast from sprint history. With fewer
// than MinRecords usable records the forecast is marked unavailable rather
// than extrapolated from noise.
func Compute(in Input) *domain.Forecast {
	forecast := &domain.Forecast{
		Project:   in.Project,
		CreatedAt: in.Now,
	}

	records := recentRecords(in.Records, historySize(in.HistorySize))
	forecast.RecordsUsed = len(records)
	if len(records) < MinRecords {
		forecast.Reason = "insufficient sprint history"
		return forecast
	}

	velocity := weightedVelocity(records)
	if velocity <= 0 {
		forecast.Reason = "historical velocity is zero"
		return forecast
	}

	forecast.Available = true
	forecast.VelocityPerWeek = velocity
	forecast.EstimateAccuracy = estimateAccuracy(records)
	forecast.RemainingHours = in.RemainingHours
	forecast.ExpectedWeeksNeeded = in.RemainingHours / velocity
	forecast.WeeksRemaining = in.Deadline.Sub(in.Now).Hours() / 24 / 7
	forecast.CompletionProbability = completionProbability(forecast.ExpectedWeeksNeeded, forecast.WeeksRemaining)
	forecast.Risk = riskLevel(forecast.ExpectedWeeksNeeded - forecast.WeeksRemaining)
	return forecast
}

func historySize(n int) int {
	if n <= 0 {
		return DefaultHistorySize
	}
	return n
}

// recentRecords returns up to n records ordered oldest to newest.
func recentRecords(records []domain.HistoricalSprintRecord, n int) []domain.HistoricalSprintRecord {
	sorted := make([]domain.HistoricalSprintRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EndedAt.Before(sorted[j].EndedAt)
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// weightedVelocity averages per-week velocities with linear recency weights:
// the oldest record weighs 1, the newest weighs len(records).
func weightedVelocity(records []domain.HistoricalSprintRecord) float64 {
	var weightedSum, weightTotal float64
	for i := range records {
		weight := float64(i + 1)
		weightedSum += weight * records[i].VelocityPerWeek()
		weightTotal += weight
	}
	return weightedSum / weightTotal
}

// estimateAccuracy is completed over estimated across the used records.
// Above 1 means the team delivers more than it estimates.
func estimateAccuracy(records []domain.HistoricalSprintRecord) float64 {
	var estimated, completed float64
	for i := range records {
		estimated += records[i].EstimatedHours
		completed += records[i].CompletedHours
	}
	if estimated <= 0 {
		return 1
	}
	return completed / estimated
}

// completionProbability maps the overrun to a logistic curve: 0.5 when the
// work exactly fits the time left, falling as the gap widens. Clamped so a
// forecast never claims certainty either way.
func completionProbability(weeksNeeded, weeksRemaining float64) float64 {
	p := 1 / (1 + math.Exp(1.5*(weeksNeeded-weeksRemaining)))
	if p < 0.05 {
		return 0.05
	}
	if p > 0.95 {
		return 0.95
	}
	return p
}

func riskLevel(overrunWeeks float64) domain.RiskLevel {
	switch {
	case overrunWeeks < 1:
		return domain.RiskLow
	case overrunWeeks <= 2:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}
