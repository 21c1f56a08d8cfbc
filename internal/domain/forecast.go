package domain

import "time"

// HistoricalSprintRecord is one completed sprint's outcome, the unit the
// forecast is trained on.
type HistoricalSprintRecord struct {
	ID             string    `json:"id"`
	Project        string    `json:"project"`
	SprintName     string    `json:"sprint_name"`
	EstimatedHours float64   `json:"estimated_hours"`
	CompletedHours float64   `json:"completed_hours"`
	DurationDays   float64   `json:"duration_days"`
	EndedAt        time.Time `json:"ended_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// VelocityPerWeek converts the record's completed work to a weekly rate.
func (r *HistoricalSprintRecord) VelocityPerWeek() float64 {
	days := r.DurationDays
	if days < 1 {
		days = 1
	}
	return r.CompletedHours / (days / 7)
}

// RiskLevel classifies forecast risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Forecast is the ForecastEngine output for one project.
// Available is false when history is too thin to forecast from; the other
// fields are zero in that case.
type Forecast struct {
	Project   string `json:"project"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`

	VelocityPerWeek       float64   `json:"velocity_per_week"`
	EstimateAccuracy      float64   `json:"estimate_accuracy"`
	RemainingHours        float64   `json:"remaining_hours"`
	ExpectedWeeksNeeded   float64   `json:"expected_weeks_needed"`
	WeeksRemaining        float64   `json:"weeks_remaining"`
	CompletionProbability float64   `json:"completion_probability"`
	Risk                  RiskLevel `json:"risk"`
	RecordsUsed           int       `json:"records_used"`
	CreatedAt             time.Time `json:"created_at"`
}
