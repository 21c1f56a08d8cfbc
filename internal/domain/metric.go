package domain

import "time"

// TimeRange represents the analysis window for a snapshot.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in calendar days, never below 1.
func (r TimeRange) Days() float64 {
	days := r.End.Sub(r.Start).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// Weeks returns the window length in weeks, floored at one day (1/7 week).
func (r TimeRange) Weeks() float64 {
	return r.Days() / 7
}

// ThroughputStats describes resolution rate over the window.
type ThroughputStats struct {
	ResolvedCount int     `json:"resolved_count"`
	PerWeek       float64 `json:"per_week"`
	// StdDev of per-week resolved counts; zero when the window spans
	// fewer than two weeks.
	StdDev      float64 `json:"std_dev"`
	WeeklyCount []int   `json:"weekly_counts,omitempty"`
}

// DurationStats summarizes a set of durations, reported in days.
type DurationStats struct {
	Count      int     `json:"count"`
	MeanDays   float64 `json:"mean_days"`
	MedianDays float64 `json:"median_days"`
	P85Days    float64 `json:"p85_days"`
	P95Days    float64 `json:"p95_days"`
	MinDays    float64 `json:"min_days"`
	MaxDays    float64 `json:"max_days"`
}

// ExclusionReason explains why an issue was left out of a metric.
type ExclusionReason string

const (
	ExclusionTimelineUnavailable ExclusionReason = "timeline_unavailable"
	ExclusionNoInProgress        ExclusionReason = "never_in_progress"
	ExclusionNoResolution        ExclusionReason = "no_resolution_date"
)

// Exclusion records one issue excluded from one metric, for auditability.
type Exclusion struct {
	IssueKey string          `json:"issue_key"`
	Metric   string          `json:"metric"`
	Reason   ExclusionReason `json:"reason"`
}

// MetricsSnapshot is the full set of flow metrics for one project window.
type MetricsSnapshot struct {
	ID      string    `json:"id"`
	Project string    `json:"project"`
	Window  TimeRange `json:"window"`

	WIPCount       int                `json:"wip_count"`
	StatusCounts   map[string]int     `json:"status_counts"`
	Throughput     ThroughputStats    `json:"throughput"`
	CycleTime      DurationStats      `json:"cycle_time"`
	LeadTime       DurationStats      `json:"lead_time"`
	WorkItemAge    DurationStats      `json:"work_item_age"`
	StatusDuration map[string]float64 `json:"status_duration_days"`

	TotalIssues      int         `json:"total_issues"`
	UnestimatedCount int         `json:"unestimated_count"`
	RemainingHours   float64     `json:"remaining_hours"`
	Exclusions       []Exclusion `json:"exclusions,omitempty"`

	SessionState SessionState `json:"session_state"`
	CreatedAt    time.Time    `json:"created_at"`
}
