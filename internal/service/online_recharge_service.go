package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	channelOnline = "online"

	// defaultCheckTimeout bounds one shared gateway check and its settlement.
	defaultCheckTimeout = 30 * time.Second
)

// OnlineRechargeServiceImpl implements ports.OnlineRechargeService.
type OnlineRechargeServiceImpl struct {
	orderRepo    ports.OrderRepository
	entryRepo    ports.EntryRepository
	ledger       EntryApplier
	gateway      ports.PaymentGateway
	transactor   ports.DBTransactor
	flight       singleflight.Group
	checkTimeout time.Duration
	metrics      *metrics.Metrics
	now          func() time.Time
	log          zerolog.Logger
}

// NewOnlineRechargeService creates a new OnlineRechargeServiceImpl.
func NewOnlineRechargeService(
	orderRepo ports.OrderRepository,
	entryRepo ports.EntryRepository,
	ledger EntryApplier,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OnlineRechargeServiceImpl {
	return &OnlineRechargeServiceImpl{
		orderRepo:    orderRepo,
		entryRepo:    entryRepo,
		ledger:       ledger,
		gateway:      gateway,
		transactor:   transactor,
		checkTimeout: defaultCheckTimeout,
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// CreateOrder opens a gateway order and records it as created.
// Nothing is persisted when validation or the gateway call fails.
func (s *OnlineRechargeServiceImpl) CreateOrder(ctx context.Context, retailerID string, amount int64) (*domain.Order, error) {
	if retailerID == "" {
		return nil, apperror.Validation("retailer id is required")
	}
	if amount < money.MinRecharge {
		return nil, apperror.Validation(fmt.Sprintf("amount must be at least %s", money.Format(money.MinRecharge)))
	}

	gw, err := s.gateway.CreateOrder(ctx, ports.GatewayOrderInput{
		RetailerID:  retailerID,
		Amount:      amount,
		Description: "Wallet recharge",
	})
	if err != nil {
		s.log.Error().Err(err).Str("retailer_id", retailerID).Int64("amount", amount).Msg("gateway create order failed")
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	now := s.now()
	order := &domain.Order{
		OrderID:          gw.OrderID,
		RetailerID:       retailerID,
		Amount:           amount,
		Status:           domain.OrderStatusCreated,
		GatewayReference: gw.GatewayReference,
		PaymentURL:       gw.PaymentURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.InternalError(fmt.Errorf("gateway reused order id %s", gw.OrderID))
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("create order: %w", err))
	}

	s.log.Info().
		Str("order_id", order.OrderID).
		Str("retailer_id", retailerID).
		Int64("amount", amount).
		Msg("online order created")

	return order, nil
}

// CheckOrderStatus reconciles an order with the gateway. It is safe to call
// any number of times, concurrently, from any instance: at most one credit
// is ever applied per order.
func (s *OnlineRechargeServiceImpl) CheckOrderStatus(ctx context.Context, caller domain.Caller, orderID string) (*domain.OrderCheckResult, error) {
	if orderID == "" {
		return nil, apperror.Validation("order id is required")
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("get order: %w", err))
	}
	// Another retailer's order is reported as absent.
	if order == nil || (!caller.IsAdmin() && order.RetailerID != caller.ID) {
		return nil, apperror.ErrNotFound("order")
	}

	if order.Status.IsTerminal() {
		return s.finalResult(ctx, order)
	}

	// The shared check outlives any single caller: one caller giving up
	// must not fail the others waiting on the same order.
	ch := s.flight.DoChan(orderID, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.checkTimeout)
		defer cancel()
		return s.reconcile(rctx, order)
	})

	select {
	case <-ctx.Done():
		return nil, apperror.ErrGatewayUnavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug().Str("order_id", orderID).Msg("status check coalesced")
		}
		return res.Val.(*domain.OrderCheckResult), nil
	}
}

func (s *OnlineRechargeServiceImpl) reconcile(ctx context.Context, order *domain.Order) (*domain.OrderCheckResult, error) {
	// No transaction is open while the gateway is consulted.
	st, err := s.gateway.GetOrderStatus(ctx, order.OrderID)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("gateway status check failed")
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	switch st.Status {
	case domain.GatewayStatusSuccess:
		return s.settle(ctx, order, domain.OrderStatusSuccess, st.GatewayReference)
	case domain.GatewayStatusFailed:
		return s.settle(ctx, order, domain.OrderStatusFailed, st.GatewayReference)
	case domain.GatewayStatusCreated:
		if err := s.orderRepo.Touch(ctx, order.OrderID); err != nil {
			s.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("failed to touch pending order")
		}
		s.metrics.ObserveOutcome(channelOnline, string(domain.OutcomePending))
		return &domain.OrderCheckResult{Order: *order, Outcome: domain.OutcomePending}, nil
	default:
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("unknown gateway status %q", st.Status))
	}
}

// settle moves a created order to its terminal status and, on success,
// credits the wallet in the same transaction.
func (s *OnlineRechargeServiceImpl) settle(ctx context.Context, order *domain.Order, to domain.OrderStatus, gatewayRef string) (*domain.OrderCheckResult, error) {
	if gatewayRef == "" {
		gatewayRef = order.GatewayReference
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.orderRepo.Transition(ctx, dbTx, order.OrderID, to, gatewayRef); err != nil {
		if !errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("transition order: %w", err))
		}
		// Lost the race: someone else finalised the order. Release the
		// transaction before reading their outcome.
		_ = dbTx.Rollback(ctx)
		s.metrics.ObserveLostRace(channelOnline)
		s.log.Info().Str("order_id", order.OrderID).Msg("order already finalised by a concurrent check")

		current, err := s.orderRepo.GetByID(ctx, order.OrderID)
		if err != nil {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("reload order: %w", err))
		}
		if current == nil {
			return nil, apperror.ErrNotFound("order")
		}
		return s.finalResult(ctx, current)
	}

	result := &domain.OrderCheckResult{Order: *order}
	result.Order.Status = to
	result.Order.GatewayReference = gatewayRef
	result.Order.UpdatedAt = s.now()

	switch to {
	case domain.OrderStatusSuccess:
		entry, err := s.ledger.ApplyEntry(ctx, dbTx, EntryInput{
			RetailerID: order.RetailerID,
			Type:       domain.EntryTypeCredit,
			Amount:     order.Amount,
			Meta: domain.EntryMeta{
				Reason:    "Online wallet recharge",
				Source:    domain.SourceOnlineOrder,
				Reference: domain.OrderReference(order.OrderID),
			},
		})
		if err != nil {
			return nil, err
		}
		result.Outcome = domain.OutcomeCredited
		result.Entry = entry
	case domain.OrderStatusFailed:
		result.Outcome = domain.OutcomeFailed
	default:
		return nil, apperror.InternalError(fmt.Errorf("settle to non-terminal status %q", to))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.ObserveOutcome(channelOnline, string(result.Outcome))
	if result.Entry != nil {
		s.metrics.ObserveEntry(string(result.Entry.Type), string(result.Entry.Meta.Source), result.Entry.Amount)
	}
	s.log.Info().
		Str("order_id", order.OrderID).
		Str("retailer_id", order.RetailerID).
		Str("status", string(to)).
		Int64("amount", order.Amount).
		Msg("online order settled")

	return result, nil
}

// finalResult reports an order that was already terminal before this call.
func (s *OnlineRechargeServiceImpl) finalResult(ctx context.Context, order *domain.Order) (*domain.OrderCheckResult, error) {
	result := &domain.OrderCheckResult{Order: *order, Outcome: domain.OutcomeAlreadyFinal}
	if order.Status == domain.OrderStatusSuccess {
		entry, err := s.entryRepo.GetByReference(ctx, domain.OrderReference(order.OrderID))
		if err != nil {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("get order entry: %w", err))
		}
		result.Entry = entry
	}
	s.metrics.ObserveOutcome(channelOnline, string(domain.OutcomeAlreadyFinal))
	return result, nil
}
