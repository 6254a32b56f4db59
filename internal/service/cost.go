package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/cost"
	"github.com/ConvoSphere/convosphere/internal/port/broadcast"
	"github.com/ConvoSphere/convosphere/internal/port/ledger"

	"github.com/ConvoSphere/convosphere/internal/adapter/ws"
)

// CostService enforces budgets before dispatch and records actual
// usage afterwards. Rolling totals are approximate: reads do not
// serialize against concurrent appends.
type CostService struct {
	ledger  ledger.Ledger
	cfg     config.Budget
	hub     broadcast.Broadcaster
	metrics *otel.Metrics
}

// NewCostService creates the service. hub and metrics may be nil.
func NewCostService(l ledger.Ledger, cfg config.Budget, hub broadcast.Broadcaster, metrics *otel.Metrics) *CostService {
	return &CostService{ledger: l, cfg: cfg, hub: hub, metrics: metrics}
}

// Authorize fails with ErrBudgetExceeded when estimate plus the user's
// already-consumed budget would cross a configured hard limit. A zero
// limit disables that window. Called before every provider dispatch,
// including tool-loop rounds.
func (s *CostService) Authorize(ctx context.Context, userID string, estimate float64) error {
	if userID == "" || (s.cfg.HardDailyUSD <= 0 && s.cfg.HardMonthlyUSD <= 0) {
		return nil
	}

	now := time.Now()

	if s.cfg.HardDailyUSD > 0 {
		used, err := s.ledger.TotalsByUser(ctx, userID, cost.PeriodDaily.Start(now))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if used.CostUSD+estimate > s.cfg.HardDailyUSD {
			s.countRejection(ctx, userID, "daily")
			return fmt.Errorf("daily budget %.4f USD, used %.4f, estimate %.4f: %w",
				s.cfg.HardDailyUSD, used.CostUSD, estimate, domain.ErrBudgetExceeded)
		}
	}

	if s.cfg.HardMonthlyUSD > 0 {
		used, err := s.ledger.TotalsByUser(ctx, userID, cost.PeriodMonthly.Start(now))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if used.CostUSD+estimate > s.cfg.HardMonthlyUSD {
			s.countRejection(ctx, userID, "monthly")
			return fmt.Errorf("monthly budget %.4f USD, used %.4f, estimate %.4f: %w",
				s.cfg.HardMonthlyUSD, used.CostUSD, estimate, domain.ErrBudgetExceeded)
		}
	}

	return nil
}

// Record appends one immutable cost record, updates metrics, and emits
// a non-fatal alert event when the soft daily threshold is crossed.
func (s *CostService) Record(ctx context.Context, rec cost.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.ledger.Append(ctx, rec); err != nil {
		return fmt.Errorf("append cost record: %w", err)
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("provider", rec.Provider),
			attribute.String("model", rec.Model),
		)
		s.metrics.TokensIn.Add(ctx, int64(rec.TokensIn), attrs)
		s.metrics.TokensOut.Add(ctx, int64(rec.TokensOut), attrs)
		s.metrics.RequestCost.Record(ctx, rec.CostUSD, attrs)
	}

	s.checkSoftThreshold(ctx, rec)
	return nil
}

// Summary reports a user's rolling daily and monthly usage.
func (s *CostService) Summary(ctx context.Context, userID string) (cost.Summary, error) {
	now := time.Now()

	daily, err := s.ledger.TotalsByUser(ctx, userID, cost.PeriodDaily.Start(now))
	if err != nil {
		return cost.Summary{}, fmt.Errorf("daily totals: %w", err)
	}
	monthly, err := s.ledger.TotalsByUser(ctx, userID, cost.PeriodMonthly.Start(now))
	if err != nil {
		return cost.Summary{}, fmt.Errorf("monthly totals: %w", err)
	}

	return cost.Summary{UserID: userID, Daily: daily, Monthly: monthly}, nil
}

// checkSoftThreshold emits a cost.alert event the moment a record
// pushes the user's daily spend past the soft threshold.
func (s *CostService) checkSoftThreshold(ctx context.Context, rec cost.Record) {
	if s.cfg.SoftDailyUSD <= 0 || rec.UserID == "" {
		return
	}

	used, err := s.ledger.TotalsByUser(ctx, rec.UserID, cost.PeriodDaily.Start(time.Now()))
	if err != nil {
		slog.Warn("cost: soft threshold check failed", "user_id", rec.UserID, "error", err)
		return
	}
	if used.CostUSD < s.cfg.SoftDailyUSD {
		return
	}
	// Alert only on the crossing record, not on every subsequent one.
	if used.CostUSD-rec.CostUSD >= s.cfg.SoftDailyUSD {
		return
	}

	slog.Warn("cost: soft daily threshold crossed",
		"user_id", rec.UserID,
		"daily_usd", used.CostUSD,
		"threshold_usd", s.cfg.SoftDailyUSD,
	)
	if s.metrics != nil {
		s.metrics.CostAlerts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", rec.Provider),
		))
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventCostAlert, ws.CostAlertEvent{
			UserID:       rec.UserID,
			Provider:     rec.Provider,
			DailyUSD:     used.CostUSD,
			ThresholdUSD: s.cfg.SoftDailyUSD,
		})
	}
}

func (s *CostService) countRejection(ctx context.Context, userID, window string) {
	if s.metrics == nil {
		return
	}
	s.metrics.BudgetRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("window", window),
	))
	slog.Info("budget rejection", "user_id", userID, "window", window)
}
