package ledger

import (
	"context"
	"time"

	"github.com/septivank/running-hours-ledger/internal/utilization"
)

// Store is the persistence collaborator of the ledger
type Store interface {
	// FetchComponentRunningHours returns the current record or ErrComponentNotFound
	FetchComponentRunningHours(ctx context.Context, componentID string) (Record, error)
	// PersistRunningHoursUpdate appends audit and stores newCumulative. Retrying
	// with the same audit.ID must not apply the update twice. A record whose
	// version is no longer audit.Version-1 yields ErrVersionConflict.
	PersistRunningHoursUpdate(ctx context.Context, audit Audit, newCumulative float64) error
	// FetchRunningHoursHistory returns accepted cumulative values since the given instant
	FetchRunningHoursHistory(ctx context.Context, componentID string, since time.Time) ([]utilization.Sample, error)
}
