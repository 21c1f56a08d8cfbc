package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusDurations(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC)
	}

	timeline := &Timeline{
		IssueKey: "DEMO-1",
		Transitions: []StatusTransition{
			{From: "To Do", To: "In Progress", At: day(3)},
			{From: "In Progress", To: "Done", At: day(8)},
		},
	}

	durations := timeline.StatusDurations(day(1), day(10))
	assert.Equal(t, 2*24*time.Hour, durations["To Do"])
	assert.Equal(t, 5*24*time.Hour, durations["In Progress"])
	assert.Equal(t, 2*24*time.Hour, durations["Done"])
}

func TestStatusDurationsEmptyTimeline(t *testing.T) {
	timeline := &Timeline{IssueKey: "DEMO-1"}
	durations := timeline.StatusDurations(time.Now(), time.Now().Add(time.Hour))
	assert.Empty(t, durations)
}

func TestStatusSetNormalizes(t *testing.T) {
	set := NewStatusSet([]string{" In Progress ", "DOING", ""})
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("in progress"))
	assert.True(t, set.Contains("Doing"))
	assert.False(t, set.Contains("Done"))
}

func TestResolvedIn(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC)
	}
	resolved := day(5)
	issue := &Issue{Key: "DEMO-1", ResolvedAt: &resolved}

	assert.True(t, issue.ResolvedIn(day(1), day(10)))
	assert.True(t, issue.ResolvedIn(day(5), day(5)))
	assert.False(t, issue.ResolvedIn(day(6), day(10)))
	assert.False(t, (&Issue{}).ResolvedIn(day(1), day(10)))
}
