package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

var sweeperCaller = domain.Caller{ID: "reconciler", Role: domain.RoleAdmin}

// OrderSweeper periodically re-checks online orders the gateway has not yet
// reported on, so a lost callback never strands a payment.
type OrderSweeper struct {
	orderRepo ports.OrderRepository
	online    ports.OnlineRechargeService
	interval  time.Duration
	minAge    time.Duration
	batchSize int
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger
}

// NewOrderSweeper creates a sweeper.
func NewOrderSweeper(
	orderRepo ports.OrderRepository,
	online ports.OnlineRechargeService,
	interval, minAge time.Duration,
	batchSize int,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OrderSweeper {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OrderSweeper{
		orderRepo: orderRepo,
		online:    online,
		interval:  interval,
		minAge:    minAge,
		batchSize: batchSize,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *OrderSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Dur("min_age", s.minAge).Msg("order sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("order sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("order sweep failed")
			}
		}
	}
}

// SweepOnce checks one batch of stale created orders and returns how many
// were examined. Per-order failures are logged and do not stop the batch.
func (s *OrderSweeper) SweepOnce(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.ListStale(ctx, s.now().Add(-s.minAge), s.batchSize)
	if err != nil {
		s.metrics.ObserveSweep(0, err)
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	checked := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		checked++

		result, err := s.online.CheckOrderStatus(ctx, sweeperCaller, o.OrderID)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("order_id", o.OrderID).
				Str("code", apperror.CodeOf(err)).
				Msg("sweeper status check failed")
			// Move it to the back of the queue so one bad order cannot starve the rest.
			if terr := s.orderRepo.Touch(ctx, o.OrderID); terr != nil {
				s.log.Warn().Err(terr).Str("order_id", o.OrderID).Msg("failed to touch order")
			}
			continue
		}
		if result.Outcome != domain.OutcomePending {
			s.log.Info().
				Str("order_id", o.OrderID).
				Str("outcome", string(result.Outcome)).
				Msg("sweeper settled order")
		}
	}

	s.metrics.ObserveSweep(checked, nil)
	return checked, nil
}
