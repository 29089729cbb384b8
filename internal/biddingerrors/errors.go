package biddingerrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrProductNotFound = errors.New("product not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrNoAuctions      = errors.New("no auctions found")
	ErrNoProducts      = errors.New("no products found")
	ErrNoUsers         = errors.New("no users found")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrWriteFailed     = errors.New("write failed")
	ErrDuplicate       = errors.New("already exists")
	ErrMissingRef      = errors.New("referenced row does not exist")
	ErrStillReferenced = errors.New("row is still referenced")
)

// business logic errors
var (
	ErrInvalidBid             = errors.New("invalid bid")
	ErrBidTooLow              = errors.New("bid amount too low")
	ErrBidNotAllowed          = errors.New("cannot bid on this auction")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAuction         = errors.New("invalid auction details")
	ErrInvalidProduct         = errors.New("invalid product details")
	ErrInvalidUser            = errors.New("invalid user details")
	ErrProductSold            = errors.New("product already sold")
	ErrProductListed          = errors.New("product already has an open auction")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
)

// BidRejection describes why a bid was refused, with enough detail for a
// client to present an exact remediation message.
type BidRejection struct {
	Reason error

	AuctionID string
	State     string
	HasEnded  bool
	EndTime   *time.Time
	// InstantBuy is the auction's instant-buy flag at evaluation time.
	InstantBuy bool

	Amount            decimal.Decimal
	StartingPrice     decimal.Decimal
	MinBid            decimal.Decimal
	CurrentHighestBid decimal.Decimal
	MinRequired       decimal.Decimal
}

func (r *BidRejection) Error() string {
	if errors.Is(r.Reason, ErrBidTooLow) {
		return fmt.Sprintf("%s: minimum required bid is %s, got %s",
			r.Reason, r.MinRequired.StringFixed(2), r.Amount.StringFixed(2))
	}
	return fmt.Sprintf("%s: auction %s is %s (ended: %t)", r.Reason, r.AuctionID, r.State, r.HasEnded)
}

func (r *BidRejection) Unwrap() error {
	return r.Reason
}

// Details returns the diagnostic payload exposed to API clients.
func (r *BidRejection) Details() map[string]any {
	if errors.Is(r.Reason, ErrBidTooLow) {
		return map[string]any{
			"amount":              r.Amount.StringFixed(2),
			"starting_price":      r.StartingPrice.StringFixed(2),
			"min_bid":             r.MinBid.StringFixed(2),
			"current_highest_bid": r.CurrentHighestBid.StringFixed(2),
			"min_required":        r.MinRequired.StringFixed(2),
		}
	}

	details := map[string]any{
		"auction_id":  r.AuctionID,
		"state":       r.State,
		"has_ended":   r.HasEnded,
		"instant_buy": r.InstantBuy,
		"end_time":    nil,
	}
	if r.EndTime != nil {
		details["end_time"] = r.EndTime.UTC().Format(time.RFC3339)
	}
	return details
}

// StateTransitionError reports a lifecycle transition attempted from the wrong state.
type StateTransitionError struct {
	AuctionID string
	Current   string
	Wanted    string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: auction %s is in %s state, only %s auctions can be published",
		ErrInvalidStateTransition, e.AuctionID, e.Current, e.Wanted)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// WriteError is a persistence failure with a human-readable constraint detail.
type WriteError struct {
	Op     string
	Detail string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", ErrWriteFailed, e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %v", ErrWriteFailed, e.Op, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}
