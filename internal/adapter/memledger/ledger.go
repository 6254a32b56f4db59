// Package memledger implements the cost ledger port in memory. Records
// are append-only; rolling totals are recomputed per query, which keeps
// appends to a single short mutation and makes totals approximate under
// concurrent readers.
package memledger

import (
	"context"
	"sync"
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain/cost"
)

// Ledger is an in-memory append-only cost ledger.
type Ledger struct {
	mu      sync.RWMutex
	records []cost.Record
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append adds one immutable record.
func (l *Ledger) Append(_ context.Context, rec cost.Record) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return nil
}

// TotalsByUser returns aggregates for a user since the given time.
func (l *Ledger) TotalsByUser(_ context.Context, userID string, since time.Time) (cost.Totals, error) {
	return l.totals(func(r *cost.Record) bool { return r.UserID == userID }, since), nil
}

// TotalsByProvider returns aggregates for a provider since the given time.
func (l *Ledger) TotalsByProvider(_ context.Context, provider string, since time.Time) (cost.Totals, error) {
	return l.totals(func(r *cost.Record) bool { return r.Provider == provider }, since), nil
}

// Count returns the number of records appended so far.
func (l *Ledger) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}

// Records returns a copy of all records, oldest first.
func (l *Ledger) Records() []cost.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]cost.Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Ledger) totals(match func(*cost.Record) bool, since time.Time) cost.Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var t cost.Totals
	for i := range l.records {
		r := &l.records[i]
		if r.CreatedAt.Before(since) || !match(r) {
			continue
		}
		t.CostUSD += r.CostUSD
		t.TokensIn += int64(r.TokensIn)
		t.TokensOut += int64(r.TokensOut)
		t.CallCount++
	}
	return t
}
