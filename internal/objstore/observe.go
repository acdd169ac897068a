package objstore

import "time"

// Observer receives operation outcomes. internal/metrics provides the
// Prometheus implementation.
type Observer interface {
	// ObserveOperation records one completed store call.
	ObserveOperation(backend, op string, err error, elapsed time.Duration)

	// AddItems counts items by outcome (new, updated, ignored, failed,
	// deleted, processed).
	AddItems(backend, op, outcome string, n int)
}

// Item outcomes reported to Observer.AddItems.
const (
	OutcomeNew       = "new"
	OutcomeUpdated   = "updated"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
	OutcomeDeleted   = "deleted"
	OutcomeProcessed = "processed"
)

// Operation names reported to Observer.
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpBulkUpsert = "bulkUpsert"
	OpBulkUpdate = "bulkUpdate"
	OpBulkDelete = "bulkDelete"
	OpCleanup    = "cleanupDeletedObjs"
	OpUpsertFlds = "upsertFields"
	OpReadFields = "readFields"
)

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, error, time.Duration) {}
func (nopObserver) AddItems(string, string, string, int)                  {}
