package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

// Input is everything one metrics computation needs. The engine is pure:
// no clock, no I/O, same input always yields the same snapshot.
type Input struct {
	Project      string
	Window       domain.TimeRange
	Issues       []*domain.Issue
	Timelines    map[string]*domain.Timeline
	Unavailable  []string
	InProgress   domain.StatusSet
	Completed    domain.StatusSet
	SessionState domain.SessionState
	Now          time.Time
}

// ComputeSnapshot derives the full set of flow metrics for one window.
func ComputeSnapshot(in Input) *domain.MetricsSnapshot {
	snapshot := &domain.MetricsSnapshot{
		ID:           uuid.New().String(),
		Project:      in.Project,
		Window:       in.Window,
		StatusCounts: make(map[string]int),
		TotalIssues:  len(in.Issues),
		SessionState: in.SessionState,
		CreatedAt:    in.Now,
	}

	unavailable := make(map[string]bool, len(in.Unavailable))
	for _, key := range in.Unavailable {
		unavailable[key] = true
	}

	var cycleTimes, leadTimes, ages []time.Duration
	statusTotals := make(map[string]time.Duration)
	timelineCount := 0

	for _, issue := range in.Issues {
		snapshot.StatusCounts[issue.Status]++
		if issue.EstimateHours == nil {
			snapshot.UnestimatedCount++
		}

		wip := in.InProgress.Contains(issue.Status) && !resolvedBy(issue, in.Window.End)
		if wip {
			snapshot.WIPCount++
		}
		if !issue.Resolved() && issue.EstimateHours != nil {
			snapshot.RemainingHours += *issue.EstimateHours
		}

		timeline := in.Timelines[issue.Key]
		if timeline == nil {
			if unavailable[issue.Key] {
				if wip {
					snapshot.Exclusions = append(snapshot.Exclusions, domain.Exclusion{
						IssueKey: issue.Key, Metric: "work_item_age", Reason: domain.ExclusionTimelineUnavailable,
					})
				}
				if issue.ResolvedIn(in.Window.Start, in.Window.End) {
					snapshot.Exclusions = append(snapshot.Exclusions, domain.Exclusion{
						IssueKey: issue.Key, Metric: "cycle_time", Reason: domain.ExclusionTimelineUnavailable,
					})
				}
			}
			continue
		}

		timelineCount++
		for status, d := range timeline.StatusDurations(issue.CreatedAt, in.Window.End) {
			statusTotals[status] += d
		}

		started := timeline.FirstInProgressAt
		if wip {
			if started != nil {
				ages = append(ages, in.Window.End.Sub(*started))
			} else {
				snapshot.Exclusions = append(snapshot.Exclusions, domain.Exclusion{
					IssueKey: issue.Key, Metric: "work_item_age", Reason: domain.ExclusionNoInProgress,
				})
			}
		}

		if issue.ResolvedIn(in.Window.Start, in.Window.End) {
			if started != nil {
				cycleTimes = append(cycleTimes, issue.ResolvedAt.Sub(*started))
			} else {
				snapshot.Exclusions = append(snapshot.Exclusions, domain.Exclusion{
					IssueKey: issue.Key, Metric: "cycle_time", Reason: domain.ExclusionNoInProgress,
				})
			}
			if started != nil && timeline.LastDoneAt != nil {
				leadTimes = append(leadTimes, timeline.LastDoneAt.Sub(*started))
			}
		}
	}

	snapshot.Throughput = computeThroughput(in.Issues, in.Window)
	snapshot.CycleTime = summarize(cycleTimes)
	snapshot.LeadTime = summarize(leadTimes)
	snapshot.WorkItemAge = summarize(ages)

	snapshot.StatusDuration = make(map[string]float64, len(statusTotals))
	for status, total := range statusTotals {
		if timelineCount > 0 {
			snapshot.StatusDuration[status] = days(total) / float64(timelineCount)
		}
	}

	return snapshot
}

// computeThroughput counts resolutions inside the window and derives the
// weekly rate with its variance band.
func computeThroughput(issues []*domain.Issue, window domain.TimeRange) domain.ThroughputStats {
	weekly := make(map[time.Time]int)
	resolved := 0
	for _, issue := range issues {
		if !issue.ResolvedIn(window.Start, window.End) {
			continue
		}
		resolved++
		weekly[weekStart(*issue.ResolvedAt)]++
	}

	stats := domain.ThroughputStats{
		ResolvedCount: resolved,
		PerWeek:       float64(resolved) / window.Weeks(),
	}

	// Variance needs at least two whole weeks of buckets, including empty ones.
	if window.Weeks() >= 2 {
		var counts []int
		for w := weekStart(window.Start); w.Before(window.End); w = w.AddDate(0, 0, 7) {
			counts = append(counts, weekly[w])
		}
		stats.WeeklyCount = counts
		stats.StdDev = stdDev(counts)
	}
	return stats
}

// summarize reduces a set of durations to day-denominated summary stats.
func summarize(durations []time.Duration) domain.DurationStats {
	if len(durations) == 0 {
		return domain.DurationStats{}
	}
	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = days(d)
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return domain.DurationStats{
		Count:      len(values),
		MeanDays:   sum / float64(len(values)),
		MedianDays: percentile(values, 50),
		P85Days:    percentile(values, 85),
		P95Days:    percentile(values, 95),
		MinDays:    values[0],
		MaxDays:    values[len(values)-1],
	}
}

// percentile interpolates over sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	low := int(math.Floor(rank))
	high := int(math.Ceil(rank))
	if low == high {
		return sorted[low]
	}
	frac := rank - float64(low)
	return sorted[low]*(1-frac) + sorted[high]*frac
}

func stdDev(counts []int) float64 {
	if len(counts) < 2 {
		return 0
	}
	mean := 0.0
	for _, c := range counts {
		mean += float64(c)
	}
	mean /= float64(len(counts))

	variance := 0.0
	for _, c := range counts {
		diff := float64(c) - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(counts)))
}

func resolvedBy(issue *domain.Issue, t time.Time) bool {
	return issue.ResolvedAt != nil && !issue.ResolvedAt.After(t)
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}

// weekStart truncates to the Monday of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-weekday+1, 0, 0, 0, 0, time.UTC)
}
