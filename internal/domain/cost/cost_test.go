package cost

import (
	"testing"
	"time"
)

func TestPeriodStart(t *testing.T) {
	at := time.Date(2026, time.March, 15, 17, 42, 3, 0, time.UTC)

	if got := PeriodDaily.Start(at); !got.Equal(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily start = %v", got)
	}
	if got := PeriodMonthly.Start(at); !got.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly start = %v", got)
	}
}

func TestPeriodStartNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 03:00 on March 2 in UTC+9 is still March 1 in UTC.
	at := time.Date(2026, time.March, 2, 3, 0, 0, 0, loc)

	if got := PeriodDaily.Start(at); !got.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily start = %v, want March 1 UTC", got)
	}
}
