package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can write errors.Is(err, apperror.ErrDuplicateUTR()).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with a caller-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be at least 1.00", http.StatusBadRequest)
}

// ---- Wallet (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateRequest() *AppError {
	return New("WAL_003", "Idempotency key reused with a different request", http.StatusConflict)
}

// ErrAlreadyApplied reports a ledger reference (order or offline request)
// that already has its entry.
func ErrAlreadyApplied() *AppError {
	return New("WAL_004", "Payment already applied to the wallet", http.StatusConflict)
}

// ---- Recharge (RCH) ----

func ErrDuplicateUTR() *AppError {
	return New("RCH_001", "A recharge request with this UTR already exists", http.StatusConflict)
}

func ErrInvalidStateTransition(from string) *AppError {
	return New("RCH_002", fmt.Sprintf("Request already processed (status: %s)", from), http.StatusConflict)
}

// ---- Gateway (GW) ----

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_001", "Payment gateway unavailable, please retry", http.StatusServiceUnavailable, err)
}

func ErrInvalidSignature() *AppError {
	return New("GW_002", "Invalid callback signature", http.StatusUnauthorized)
}

func ErrReplayedEvent() *AppError {
	return New("GW_003", "Callback event already received", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMissingToken() *AppError {
	return New("AUTH_002", "Missing or malformed Authorization header", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_003", "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrStoreUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Ledger store unavailable, please retry", http.StatusServiceUnavailable, err)
}
