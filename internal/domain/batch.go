package domain

import "time"

// BatchOutcome is the terminal outcome of one batch request.
type BatchOutcome string

const (
	BatchOutcomePending   BatchOutcome = "pending"
	BatchOutcomeSucceeded BatchOutcome = "succeeded"
	BatchOutcomeSkipped   BatchOutcome = "skipped"
	BatchOutcomeFailed    BatchOutcome = "failed"
)

// BatchRequestState tracks one batch request across its retry attempts.
// It is owned by a single fetch session goroutine and never shared.
type BatchRequestState struct {
	ID          string
	Offset      int
	Size        int
	Attempt     int
	Outcome     BatchOutcome
	LastErrCode string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// SessionState is the terminal state of a fetch session.
type SessionState string

const (
	// SessionComplete means the full result set was retrieved.
	SessionComplete SessionState = "complete"
	// SessionPartial means a safety limit stopped the session with a usable
	// subset of results.
	SessionPartial SessionState = "partial"
	// SessionAborted means a fatal error stopped the session.
	SessionAborted SessionState = "aborted"
)

// FetchResult is what a fetch session hands back to its caller.
type FetchResult struct {
	SessionID     string
	State         SessionState
	Issues        []*Issue
	Total         int
	Batches       []*BatchRequestState
	SkippedRanges []SkippedRange
	Duplicates    int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// SkippedRange records an offset range abandoned after its retry budget was
// exhausted at the minimum batch size.
type SkippedRange struct {
	Offset int
	Size   int
	Reason string
}
