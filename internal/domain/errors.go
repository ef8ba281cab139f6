package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error classes. Every concrete error below matches exactly one of these
// with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotFound           = errors.New("not found")
	ErrBidTooLow          = errors.New("bid too low")
)

var (
	ErrListingNotActive = fmt.Errorf("%w: listing is not active", ErrPreconditionFailed)
	ErrBidNotPending    = fmt.Errorf("%w: bid is not pending", ErrPreconditionFailed)
	ErrOrderAlreadyPaid = fmt.Errorf("%w: order already paid", ErrPreconditionFailed)
	ErrOrderNotPayable  = fmt.Errorf("%w: order is not awaiting payment", ErrPreconditionFailed)
	ErrNotOwner         = fmt.Errorf("%w: caller does not own this resource", ErrPreconditionFailed)
	ErrSelfBid          = fmt.Errorf("%w: seller cannot bid on own listing", ErrPreconditionFailed)
	ErrOrderExists      = fmt.Errorf("%w: order already exists for listing", ErrPreconditionFailed)
	ErrPricingFrozen    = fmt.Errorf("%w: pricing cannot change once bids exist", ErrPreconditionFailed)
)

var (
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)
	ErrBidNotFound     = fmt.Errorf("bid %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
)

var ErrLockTimeout = errors.New("timed out waiting for listing lock")

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BidTooLowError carries the minimum acceptable amount so the caller can retry.
type BidTooLowError struct {
	Amount  decimal.Decimal
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: %s is below minimum %s", ErrBidTooLow, e.Amount.StringFixed(2), e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
