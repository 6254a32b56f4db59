// Package cost defines domain types for cost and token accounting.
package cost

import "time"

// Period identifies a rolling aggregation window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Start returns the UTC start of the period containing t.
func (p Period) Start(t time.Time) time.Time {
	t = t.UTC()
	if p == PeriodMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Record is one append-only entry in the cost ledger, created once per
// completed call (or tool sub-call) and never mutated.
type Record struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	CostUSD        float64   `json:"cost_usd"`
	CreatedAt      time.Time `json:"created_at"`
}

// Totals holds approximate rolling aggregates for one attribution key.
// Maintained as eventually-consistent counters, not a linearizable sum.
type Totals struct {
	CostUSD   float64 `json:"cost_usd"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CallCount int     `json:"call_count"`
}

// Summary reports a user's rolling usage across both windows.
type Summary struct {
	UserID  string `json:"user_id"`
	Daily   Totals `json:"daily"`
	Monthly Totals `json:"monthly"`
}
