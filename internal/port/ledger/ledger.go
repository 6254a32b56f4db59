// Package ledger defines the port for the append-only cost ledger.
package ledger

import (
	"context"
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain/cost"
)

// Ledger stores cost records and serves rolling aggregates. Appends are
// short atomic in-memory mutations; totals are approximate under
// concurrency.
type Ledger interface {
	// Append adds one immutable record.
	Append(ctx context.Context, rec cost.Record) error

	// TotalsByUser returns aggregates for a user since the given time.
	TotalsByUser(ctx context.Context, userID string, since time.Time) (cost.Totals, error)

	// TotalsByProvider returns aggregates for a provider since the given time.
	TotalsByProvider(ctx context.Context, provider string, since time.Time) (cost.Totals, error)

	// Count returns the number of records appended so far.
	Count(ctx context.Context) (int, error)
}
