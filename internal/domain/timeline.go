package domain

import "time"

// StatusTransition represents a single status change from an issue changelog.
type StatusTransition struct {
	From string
	To   string
	At   time.Time
}

// Timeline is the ordered status history of one issue.
// Transitions are sorted ascending by time; FirstInProgressAt is fixed at the
// first entry into the in-progress set and never moves on later re-entries.
type Timeline struct {
	IssueKey          string
	Transitions       []StatusTransition
	FirstInProgressAt *time.Time
	LastDoneAt        *time.Time
}

// StatusDurations walks the ordered transitions and accumulates the time an
// issue spent in each status, closing the final open interval at asOf.
func (t *Timeline) StatusDurations(createdAt, asOf time.Time) map[string]time.Duration {
	durations := make(map[string]time.Duration)
	if len(t.Transitions) == 0 {
		return durations
	}
	prev := createdAt
	prevStatus := t.Transitions[0].From
	for _, tr := range t.Transitions {
		if tr.At.After(prev) {
			durations[prevStatus] += tr.At.Sub(prev)
			prev = tr.At
		}
		prevStatus = tr.To
	}
	if asOf.After(prev) {
		durations[prevStatus] += asOf.Sub(prev)
	}
	return durations
}
