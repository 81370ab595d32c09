// Package apperror defines the error taxonomy surfaced at the HTTP boundary.
package apperror

import (
	"errors"
	"net/http"
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "auth"
	KindInternal   Kind = "internal"
)

// Error is an application error carrying its HTTP status and business code.
type Error struct {
	kind     Kind
	httpCode int
	code     string
	message  string
	details  string
	cause    error
}

func newError(kind Kind, httpCode int, code, message string) *Error {
	return &Error{kind: kind, httpCode: httpCode, code: code, message: message}
}

func (e *Error) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}
	return e.message
}

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) HTTPCode() int   { return e.httpCode }
func (e *Error) Code() string    { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Details() string { return e.details }
func (e *Error) Unwrap() error   { return e.cause }

// Is matches on the business code so copies made by WithDetails still match.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.code == t.code
}

// WithDetails returns a copy carrying extra detail for the client.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.details = details
	return &cp
}

// Validation builds an ad-hoc 400 error.
func Validation(message string) *Error {
	return newError(KindValidation, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// Internal wraps an unexpected failure; the cause is kept for logs only.
func Internal(cause error) *Error {
	e := newError(KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	e.cause = cause
	return e
}

// Predefined error types
var (
	ErrValidation = newError(KindValidation, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed")

	ErrUserNotFound       = newError(KindNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	ErrEmailExists        = newError(KindConflict, http.StatusConflict, "EMAIL_EXISTS", "Email already exists")
	ErrPhoneExists        = newError(KindConflict, http.StatusConflict, "PHONE_EXISTS", "Phone number already belongs to another account")
	ErrInvalidCredentials = newError(KindAuth, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	ErrUserInactive       = newError(KindAuth, http.StatusForbidden, "USER_INACTIVE", "User account is inactive")
	ErrUnauthorized       = newError(KindAuth, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
	ErrForbidden          = newError(KindAuth, http.StatusForbidden, "FORBIDDEN", "Insufficient role")

	ErrProductNotFound   = newError(KindNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrSKUExists         = newError(KindConflict, http.StatusConflict, "SKU_EXISTS", "SKU already exists")
	ErrCategoryNotFound  = newError(KindNotFound, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
	ErrCategoryExists    = newError(KindConflict, http.StatusConflict, "CATEGORY_EXISTS", "Category name already exists")
	ErrInsufficientStock = newError(KindConflict, http.StatusBadRequest, "INSUFFICIENT_STOCK", "Insufficient stock")

	ErrOrderNotFound      = newError(KindNotFound, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrInvalidOrderStatus = newError(KindValidation, http.StatusBadRequest, "INVALID_ORDER_STATUS", "Invalid order status")

	ErrUnknownTask          = newError(KindValidation, http.StatusBadRequest, "UNKNOWN_TASK", "Unknown reward task")
	ErrAlreadyClaimed       = newError(KindConflict, http.StatusBadRequest, "ALREADY_CLAIMED", "Reward already claimed for this task")
	ErrClaimNotFound        = newError(KindNotFound, http.StatusNotFound, "CLAIM_NOT_FOUND", "Reward claim not found")
	ErrInvalidClaimStatus   = newError(KindValidation, http.StatusBadRequest, "INVALID_CLAIM_STATUS", "Status must be approved or rejected")
	ErrClaimAlreadyReviewed = newError(KindConflict, http.StatusConflict, "CLAIM_ALREADY_REVIEWED", "Reward claim has already been reviewed")
	ErrUnsupportedProof     = newError(KindValidation, http.StatusBadRequest, "UNSUPPORTED_PROOF", "Proof must be text, image, audio or video")

	ErrNotRegistered   = newError(KindAuth, http.StatusForbidden, "NOT_REGISTERED", "Phone number is not registered")
	ErrVisitorNotFound = newError(KindNotFound, http.StatusNotFound, "VISITOR_NOT_FOUND", "Visitor not found")

	ErrFileNotFound = newError(KindNotFound, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
)

// From extracts an *Error from err, wrapping anything else as Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
