package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to transport status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
)

type ErrorCode string

const (
	CodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeAccessDenied          ErrorCode = "ACCESS_DENIED"
	CodeUserNotFound          ErrorCode = "USER_NOT_FOUND"
	CodeSellerNotFound        ErrorCode = "SELLER_NOT_FOUND"
	CodeProductNotFound       ErrorCode = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound         ErrorCode = "ORDER_NOT_FOUND"
	CodeSubscriptionNotFound  ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	CodeNotificationNotFound  ErrorCode = "NOTIFICATION_NOT_FOUND"
	CodeInsufficientStock     ErrorCode = "INSUFFICIENT_STOCK"
	CodeDuplicateSubscription ErrorCode = "DUPLICATE_SUBSCRIPTION"
	CodeDuplicateSeller       ErrorCode = "DUPLICATE_SELLER"
	CodeInvalidOrderStatus    ErrorCode = "INVALID_ORDER_STATUS"
	CodeDuplicateRequest      ErrorCode = "DUPLICATE_REQUEST"
)

// Error is a domain failure with a stable code, a human message and an
// optional detail payload. It unwraps to one of the kind sentinels above.
type Error struct {
	Code    ErrorCode
	Message string
	Detail  map[string]any
	kind    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.kind
}

func newError(kind error, code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), kind: kind}
}

func NotFound(code ErrorCode, format string, args ...any) *Error {
	return newError(ErrNotFound, code, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(ErrForbidden, CodeAccessDenied, format, args...)
}

func Conflict(code ErrorCode, format string, args ...any) *Error {
	return newError(ErrConflict, code, format, args...)
}

func Unprocessable(code ErrorCode, format string, args ...any) *Error {
	return newError(ErrUnprocessable, code, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, CodeValidationFailed, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(ErrUnauthorized, CodeUnauthorized, format, args...)
}

// WithDetail attaches a detail payload and returns the same error.
func (e *Error) WithDetail(detail map[string]any) *Error {
	e.Detail = detail
	return e
}

// InsufficientStock reports which product could not satisfy a line and by how much.
func InsufficientStock(p Product, requested int) *Error {
	return Conflict(CodeInsufficientStock,
		"insufficient stock for product '%s' (requested: %d, available: %d)",
		p.Name, requested, p.Stock,
	).WithDetail(map[string]any{
		"product_id":   p.ID,
		"product_name": p.Name,
		"requested":    requested,
		"available":    p.Stock,
	})
}
