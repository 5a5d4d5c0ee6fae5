package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const callbackReplayWindow = 24 * time.Hour

// callbackCaller is the identity used when a gateway notification triggers a check.
var callbackCaller = domain.Caller{ID: "gateway-callback", Role: domain.RoleAdmin}

// CallbackEvent is the body the gateway posts when an order changes.
// Its status is informational only; the order is always re-read from the gateway.
type CallbackEvent struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// HMACCallbackVerifier authenticates callbacks signed with a shared secret
// over the raw body.
type HMACCallbackVerifier struct {
	secret string
	sigSvc ports.SignatureService
}

// NewHMACCallbackVerifier creates a new HMACCallbackVerifier.
func NewHMACCallbackVerifier(secret string, sigSvc ports.SignatureService) *HMACCallbackVerifier {
	return &HMACCallbackVerifier{secret: secret, sigSvc: sigSvc}
}

// Verify checks the signature and extracts the order the callback names.
// A callback without an event id is keyed by its order alone, so a body
// that only varies the status cannot pass the replay guard twice.
func (v *HMACCallbackVerifier) Verify(payload []byte, signature string) (*ports.CallbackNotice, error) {
	if !v.sigSvc.Verify(v.secret, payload, strings.TrimSpace(signature)) {
		return nil, apperror.ErrInvalidSignature()
	}

	var ev CallbackEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperror.Validation("malformed callback body")
	}
	if ev.OrderID == "" {
		return nil, apperror.Validation("order id is required")
	}

	eventID := ev.EventID
	if eventID == "" {
		eventID = ev.OrderID
	}
	return &ports.CallbackNotice{EventID: eventID, OrderID: ev.OrderID}, nil
}

// CallbackServiceImpl implements ports.CallbackService.
type CallbackServiceImpl struct {
	source   string
	verifier ports.CallbackVerifier
	guard    ports.EventGuard
	online   ports.OnlineRechargeService
	log      zerolog.Logger
}

// NewCallbackService creates a new CallbackServiceImpl. guard may be nil,
// in which case replays are absorbed by the idempotent status check alone.
func NewCallbackService(
	source string,
	verifier ports.CallbackVerifier,
	guard ports.EventGuard,
	online ports.OnlineRechargeService,
	log zerolog.Logger,
) *CallbackServiceImpl {
	return &CallbackServiceImpl{
		source:   source,
		verifier: verifier,
		guard:    guard,
		online:   online,
		log:      log,
	}
}

// Handle authenticates a gateway notification and reconciles the order it names.
// An event is only remembered once its order reached a final state; a
// delivery that failed or found the order pending can be redelivered.
func (s *CallbackServiceImpl) Handle(ctx context.Context, payload []byte, signature string) (*domain.OrderCheckResult, error) {
	notice, err := s.verifier.Verify(payload, signature)
	if err != nil {
		if apperror.CodeOf(err) == apperror.ErrInvalidSignature().Code {
			s.log.Warn().Int("bytes", len(payload)).Msg("gateway callback signature mismatch")
		}
		return nil, err
	}
	if notice.OrderID == "" {
		s.log.Debug().Str("event_id", notice.EventID).Msg("gateway callback ignored")
		return &domain.OrderCheckResult{Outcome: domain.OutcomeIgnored}, nil
	}

	marked := false
	if s.guard != nil {
		fresh, err := s.guard.CheckAndSet(ctx, s.source, notice.EventID, callbackReplayWindow)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("event_id", notice.EventID).Msg("callback replay guard unavailable, continuing")
		case !fresh:
			return nil, apperror.ErrReplayedEvent()
		default:
			marked = true
		}
	}

	result, err := s.online.CheckOrderStatus(ctx, callbackCaller, notice.OrderID)
	if err != nil || result.Outcome == domain.OutcomePending {
		if marked {
			s.release(ctx, notice.EventID)
		}
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("event_id", notice.EventID).
		Str("order_id", notice.OrderID).
		Str("outcome", string(result.Outcome)).
		Msg("gateway callback reconciled")

	return result, nil
}

func (s *CallbackServiceImpl) release(ctx context.Context, eventID string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), s.source, eventID); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to release callback event")
	}
}
