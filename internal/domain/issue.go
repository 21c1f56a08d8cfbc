package domain

import "time"

// Issue represents a Jira issue as returned by the search API.
// Optional timestamps are nil when Jira has no value for them.
type Issue struct {
	Key           string
	Summary       string
	Project       string
	Type          string
	Priority      string
	Assignee      string
	Status        string
	EstimateHours *float64
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	UpdatedAt     *time.Time
}

// Resolved reports whether the issue has a resolution date.
func (i *Issue) Resolved() bool {
	return i.ResolvedAt != nil
}

// ResolvedIn reports whether the issue was resolved inside [start, end].
func (i *Issue) ResolvedIn(start, end time.Time) bool {
	if i.ResolvedAt == nil {
		return false
	}
	t := *i.ResolvedAt
	return !t.Before(start) && !t.After(end)
}
