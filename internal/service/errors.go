package service

import "errors"

var (
	// ErrUserNotFound is returned when the authenticated user has no ledger row
	ErrUserNotFound = errors.New("user not found")

	// ErrCouponNotFound is returned when a code does not match any coupon owned by the caller
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponUsed is returned when a coupon has already been redeemed on an order
	ErrCouponUsed = errors.New("coupon already used")

	// ErrCouponExpired is returned when a coupon's validity window has passed
	ErrCouponExpired = errors.New("coupon expired")

	// ErrMinOrderNotMet is returned when the order total is below the coupon's minimum
	ErrMinOrderNotMet = errors.New("order total below coupon minimum")

	// ErrInvalidOrderTotal is returned when the candidate order total is not positive
	ErrInvalidOrderTotal = errors.New("order total must be positive")

	// ErrNotEnoughStamps is returned when a claim is attempted with fewer than the full card
	ErrNotEnoughStamps = errors.New("not enough stamps to claim")

	// ErrStampsFull is returned when a stamp is added to an already full card
	ErrStampsFull = errors.New("stamp card full, claim your reward first")

	// ErrOrderNotFound is returned when an order id does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)
