// Package apperrors defines the error taxonomy of the storefront
// core. Every sentinel carries a Kind so transport layers can map an
// error class to a response without string matching.
package apperrors

import "errors"

// Kind classifies an error for the caller.
type Kind int

const (
	// KindValidation is bad input shape, surfaced verbatim, never retried.
	KindValidation Kind = iota
	// KindBusiness means a business rule rejected the operation.
	KindBusiness
	// KindNotFound means the referenced entity does not exist.
	KindNotFound
	// KindTransient means an upstream dependency timed out; safe to retry.
	KindTransient
	// KindNoop means the operation already happened; treated as success.
	KindNoop
	// KindInternal is an unexpected failure.
	KindInternal
)

// Error is a classified sentinel. Wrap it with fmt.Errorf("%w") to add
// context; KindOf resolves the kind through the wrap chain.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(code string, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

var (
	// Cart
	ErrEmptyCart        = newErr("EmptyCart", KindBusiness, "cart has no items")
	ErrInvalidQuantity  = newErr("InvalidQuantity", KindValidation, "quantity must be at least 1")
	ErrCartItemNotFound = newErr("CartItemNotFound", KindNotFound, "cart item not found")
	ErrCartNotFound     = newErr("CartNotFound", KindNotFound, "cart not found")

	// Catalog
	ErrProductUnavailable = newErr("ProductUnavailable", KindBusiness, "product is out of stock")
	ErrProductNotFound    = newErr("ProductNotFound", KindNotFound, "product not found")
	ErrCatalogUnavailable = newErr("CatalogUnavailable", KindTransient, "catalog lookup timed out")

	// Coupons
	ErrCouponNotFound   = newErr("CouponNotFound", KindNotFound, "coupon code not found")
	ErrCouponExpired    = newErr("CouponExpired", KindBusiness, "coupon has expired")
	ErrCouponExhausted  = newErr("CouponExhausted", KindBusiness, "coupon usage limit reached")
	ErrCouponIneligible = newErr("CouponIneligible", KindBusiness, "cart does not meet the coupon minimum order amount")
	ErrCouponExists     = newErr("CouponExists", KindBusiness, "coupon code already exists")

	// Orders
	ErrOrderNotFound             = newErr("OrderNotFound", KindNotFound, "order not found")
	ErrInvalidTransition         = newErr("InvalidTransition", KindBusiness, "order status transition not permitted")
	ErrTrackingInfoRequired      = newErr("TrackingInfoRequired", KindValidation, "tracking info is required to mark an order shipped")
	ErrCancellationWindowExpired = newErr("CancellationWindowExpired", KindBusiness, "cancellation window has expired")
	ErrOrderTerminal             = newErr("OrderTerminal", KindBusiness, "order is in a terminal state")

	// Payments
	ErrSignatureMismatch  = newErr("SignatureMismatch", KindBusiness, "payment signature verification failed")
	ErrAlreadyReconciled  = newErr("AlreadyReconciled", KindNoop, "payment already reconciled")
	ErrGatewayUnavailable = newErr("GatewayUnavailable", KindTransient, "payment gateway unreachable")
)

// KindOf returns the taxonomy kind of err, or KindInternal when err
// does not wrap a classified sentinel.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or "Internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "Internal"
}

// Retryable reports whether the caller may safely retry the operation.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
