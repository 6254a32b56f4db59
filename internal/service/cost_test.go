package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ConvoSphere/convosphere/internal/adapter/memledger"
	"github.com/ConvoSphere/convosphere/internal/adapter/ws"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/cost"
)

func TestAuthorizeUnderBudget(t *testing.T) {
	s := NewCostService(memledger.New(), config.Budget{HardDailyUSD: 10}, nil, nil)

	if err := s.Authorize(context.Background(), "alice", 0.5); err != nil {
		t.Errorf("expected authorization, got %v", err)
	}
}

func TestAuthorizeDailyBudgetExceeded(t *testing.T) {
	ledger := memledger.New()
	s := NewCostService(ledger, config.Budget{HardDailyUSD: 1.0}, nil, nil)
	ctx := context.Background()

	if err := s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 0.9}); err != nil {
		t.Fatal(err)
	}

	err := s.Authorize(ctx, "alice", 0.2)
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Errorf("err = %v, want ErrBudgetExceeded", err)
	}
}

func TestAuthorizeMonthlyBudgetExceeded(t *testing.T) {
	ledger := memledger.New()
	s := NewCostService(ledger, config.Budget{HardMonthlyUSD: 5.0}, nil, nil)
	ctx := context.Background()

	_ = s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 4.9})

	err := s.Authorize(ctx, "alice", 0.2)
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Errorf("err = %v, want ErrBudgetExceeded", err)
	}
}

func TestAuthorizeSkipsAnonymousAndUnlimited(t *testing.T) {
	s := NewCostService(memledger.New(), config.Budget{HardDailyUSD: 0.01}, nil, nil)
	if err := s.Authorize(context.Background(), "", 100); err != nil {
		t.Errorf("anonymous calls are not budgeted, got %v", err)
	}

	s = NewCostService(memledger.New(), config.Budget{}, nil, nil)
	if err := s.Authorize(context.Background(), "alice", 100); err != nil {
		t.Errorf("zero limits disable enforcement, got %v", err)
	}
}

func TestRecordFillsIdentityAndTimestamp(t *testing.T) {
	ledger := memledger.New()
	s := NewCostService(ledger, config.Budget{}, nil, nil)

	if err := s.Record(context.Background(), cost.Record{UserID: "alice", CostUSD: 0.1}); err != nil {
		t.Fatal(err)
	}

	recs := ledger.Records()
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[0].ID == "" || recs[0].CreatedAt.IsZero() {
		t.Errorf("record not filled: %+v", recs[0])
	}
}

func TestSoftThresholdAlertsOnlyOnCrossing(t *testing.T) {
	ledger := memledger.New()
	hub := &fakeHub{}
	s := NewCostService(ledger, config.Budget{SoftDailyUSD: 1.0}, hub, nil)
	ctx := context.Background()

	_ = s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 0.6})
	if n := len(hub.byType(ws.EventCostAlert)); n != 0 {
		t.Fatalf("alert before crossing, events = %d", n)
	}

	_ = s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 0.6})
	if n := len(hub.byType(ws.EventCostAlert)); n != 1 {
		t.Fatalf("expected one alert on crossing, got %d", n)
	}

	_ = s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 0.6})
	if n := len(hub.byType(ws.EventCostAlert)); n != 1 {
		t.Errorf("alerts must not repeat after crossing, got %d", n)
	}

	alert, ok := hub.byType(ws.EventCostAlert)[0].Payload.(ws.CostAlertEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", hub.byType(ws.EventCostAlert)[0].Payload)
	}
	if alert.UserID != "alice" || alert.ThresholdUSD != 1.0 {
		t.Errorf("alert = %+v", alert)
	}
}

func TestSummaryReportsBothWindows(t *testing.T) {
	ledger := memledger.New()
	s := NewCostService(ledger, config.Budget{}, nil, nil)
	ctx := context.Background()

	_ = s.Record(ctx, cost.Record{UserID: "alice", CostUSD: 0.5, TokensIn: 100, TokensOut: 20})

	sum, err := s.Summary(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if sum.UserID != "alice" {
		t.Errorf("user = %s", sum.UserID)
	}
	if sum.Daily.CostUSD != 0.5 || sum.Monthly.CostUSD != 0.5 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Daily.CallCount != 1 {
		t.Errorf("daily call count = %d", sum.Daily.CallCount)
	}
}
