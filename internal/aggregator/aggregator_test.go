package aggregator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

var (
	inProgressSet = domain.NewStatusSet([]string{"In Progress", "In Review"})
	completedSet  = domain.NewStatusSet([]string{"Done", "Closed"})
)

func day(d int) time.Time {
	return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
}

func resolvedIssue(key string, resolvedAt time.Time) *domain.Issue {
	return &domain.Issue{
		Key:        key,
		Status:     "Done",
		CreatedAt:  day(1),
		ResolvedAt: &resolvedAt,
	}
}

func wipIssue(key string) *domain.Issue {
	return &domain.Issue{
		Key:       key,
		Status:    "In Progress",
		CreatedAt: day(1),
	}
}

func timelineStarting(key string, startedAt time.Time) *domain.Timeline {
	return &domain.Timeline{
		IssueKey: key,
		Transitions: []domain.StatusTransition{
			{From: "To Do", To: "In Progress", At: startedAt},
		},
		FirstInProgressAt: &startedAt,
	}
}

func baseInput(window domain.TimeRange) Input {
	return Input{
		Project:      "DEMO",
		Window:       window,
		Timelines:    map[string]*domain.Timeline{},
		InProgress:   inProgressSet,
		Completed:    completedSet,
		SessionState: domain.SessionComplete,
		Now:          window.End,
	}
}

func TestThroughputSevenIssuesOverTwoWeeks(t *testing.T) {
	window := domain.TimeRange{Start: day(5), End: day(19)} // 14 days

	in := baseInput(window)
	for i := 0; i < 7; i++ {
		in.Issues = append(in.Issues, resolvedIssue(fmt.Sprintf("DEMO-%d", i), day(6+i)))
	}

	snapshot := ComputeSnapshot(in)
	assert.Equal(t, 7, snapshot.Throughput.ResolvedCount)
	assert.InDelta(t, 3.5, snapshot.Throughput.PerWeek, 0.001)
}

func TestThroughputIgnoresResolutionsOutsideWindow(t *testing.T) {
	window := domain.TimeRange{Start: day(5), End: day(19)}

	in := baseInput(window)
	in.Issues = []*domain.Issue{
		resolvedIssue("DEMO-1", day(6)),
		resolvedIssue("DEMO-2", day(2)),  // before window
		resolvedIssue("DEMO-3", day(25)), // after window
	}

	snapshot := ComputeSnapshot(in)
	assert.Equal(t, 1, snapshot.Throughput.ResolvedCount)
}

func TestThroughputVarianceBandOverWeeklyBuckets(t *testing.T) {
	window := domain.TimeRange{Start: day(5), End: day(19)}

	in := baseInput(window)
	// Four resolutions in week one, none in week two.
	for i := 0; i < 4; i++ {
		in.Issues = append(in.Issues, resolvedIssue(fmt.Sprintf("DEMO-%d", i), day(6)))
	}

	snapshot := ComputeSnapshot(in)
	assert.Greater(t, snapshot.Throughput.StdDev, 0.0)
	assert.Equal(t, []int{4, 0}, snapshot.Throughput.WeeklyCount)
}

func TestCycleTimeAndWorkItemAge(t *testing.T) {
	window := domain.TimeRange{Start: day(1), End: day(31)}

	resolved := resolvedIssue("DEMO-1", day(21))
	wip := wipIssue("DEMO-2")

	in := baseInput(window)
	in.Issues = []*domain.Issue{resolved, wip}
	in.Timelines = map[string]*domain.Timeline{
		// Started day 11, resolved day 21: cycle time 10 days.
		"DEMO-1": timelineStarting("DEMO-1", day(11)),
		// Started day 11, window ends day 31: age 20 days.
		"DEMO-2": timelineStarting("DEMO-2", day(11)),
	}

	snapshot := ComputeSnapshot(in)
	assert.Equal(t, 1, snapshot.WIPCount)
	require.Equal(t, 1, snapshot.CycleTime.Count)
	assert.InDelta(t, 10, snapshot.CycleTime.MeanDays, 0.001)
	require.Equal(t, 1, snapshot.WorkItemAge.Count)
	assert.InDelta(t, 20, snapshot.WorkItemAge.MeanDays, 0.001)
}

func TestWIPCountsUnresolvedAndLateResolvedIssues(t *testing.T) {
	window := domain.TimeRange{Start: day(1), End: day(15)}
	lateResolved := day(20) // after window end, still WIP at window end

	issueLate := &domain.Issue{Key: "DEMO-1", Status: "In Progress", CreatedAt: day(1), ResolvedAt: &lateResolved}
	issueOpen := wipIssue("DEMO-2")
	issueDone := resolvedIssue("DEMO-3", day(10))

	in := baseInput(window)
	in.Issues = []*domain.Issue{issueLate, issueOpen, issueDone}

	snapshot := ComputeSnapshot(in)
	assert.Equal(t, 2, snapshot.WIPCount)
}

func TestUnavailableTimelineExcludedButStillCounted(t *testing.T) {
	window := domain.TimeRange{Start: day(1), End: day(15)}

	wip := wipIssue("DEMO-1")
	resolved := resolvedIssue("DEMO-2", day(10))

	in := baseInput(window)
	in.Issues = []*domain.Issue{wip, resolved}
	in.Unavailable = []string{"DEMO-1", "DEMO-2"}

	snapshot := ComputeSnapshot(in)

	// Both issues still count for WIP and throughput.
	assert.Equal(t, 1, snapshot.WIPCount)
	assert.Equal(t, 1, snapshot.Throughput.ResolvedCount)

	// But both are excluded from the duration metrics, auditable.
	assert.Equal(t, 0, snapshot.CycleTime.Count)
	assert.Equal(t, 0, snapshot.WorkItemAge.Count)
	require.Len(t, snapshot.Exclusions, 2)
	reasons := map[string]domain.ExclusionReason{}
	for _, e := range snapshot.Exclusions {
		reasons[e.IssueKey] = e.Reason
	}
	assert.Equal(t, domain.ExclusionTimelineUnavailable, reasons["DEMO-1"])
	assert.Equal(t, domain.ExclusionTimelineUnavailable, reasons["DEMO-2"])
}

func TestNeverInProgressResolvedIssueIsExcludedFromCycleTime(t *testing.T) {
	window := domain.TimeRange{Start: day(1), End: day(15)}

	resolved := resolvedIssue("DEMO-1", day(10))

	in := baseInput(window)
	in.Issues = []*domain.Issue{resolved}
	in.Timelines = map[string]*domain.Timeline{
		"DEMO-1": {
			IssueKey: "DEMO-1",
			Transitions: []domain.StatusTransition{
				{From: "To Do", To: "Done", At: day(10)},
			},
		},
	}

	snapshot := ComputeSnapshot(in)
	assert.Equal(t, 0, snapshot.CycleTime.Count)
	require.Len(t, snapshot.Exclusions, 1)
	assert.Equal(t, domain.ExclusionNoInProgress, snapshot.Exclusions[0].Reason)
}

func TestRemainingHoursAndEstimateCoverage(t *testing.T) {
	window := domain.TimeRange{Start: day(1), End: day(15)}
	eight, four := 8.0, 4.0

	open := wipIssue("DEMO-1")
	open.EstimateHours = &eight
	done := resolvedIssue("DEMO-2", day(10))
	done.EstimateHours = &four
	unestimated := wipIssue("DEMO-3")

	in := baseInput(window)
	in.Issues = []*domain.Issue{open, done, unestimated}

	snapshot := ComputeSnapshot(in)
	assert.InDelta(t, 8, snapshot.RemainingHours, 0.001)
	assert.Equal(t, 1, snapshot.UnestimatedCount)
}

func TestSummaryPercentiles(t *testing.T) {
	durations := make([]time.Duration, 0, 10)
	for i := 1; i <= 10; i++ {
		durations = append(durations, time.Duration(i)*24*time.Hour)
	}

	stats := summarize(durations)
	assert.Equal(t, 10, stats.Count)
	assert.InDelta(t, 5.5, stats.MeanDays, 0.001)
	assert.InDelta(t, 5.5, stats.MedianDays, 0.001)
	assert.InDelta(t, 1, stats.MinDays, 0.001)
	assert.InDelta(t, 10, stats.MaxDays, 0.001)
	assert.InDelta(t, 8.65, stats.P85Days, 0.001)
}
