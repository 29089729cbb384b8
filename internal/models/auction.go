package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every monetary amount carries.
const MoneyPlaces = 2

var (
	// MinimumAmount is the smallest positive monetary amount.
	MinimumAmount = decimal.New(1, -MoneyPlaces)
	// MinimumIncrement is the lowest minimum bid increment an auction may be configured with.
	MinimumIncrement = decimal.NewFromInt(1)
)

// IsMoney reports whether d has no more than MoneyPlaces decimal places.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// HasEnded reports whether bidding on the auction is over at the given instant.
// It does not depend on the sweeper having run: a passed deadline counts as ended.
func (a Auction) HasEnded(now time.Time) bool {
	if a.State == StateFinished || a.InstantBuy {
		return true
	}
	return a.EndTime != nil && a.EndTime.Before(now)
}

// IsOpen reports whether the auction still blocks its product from a new listing.
func (a Auction) IsOpen() bool {
	return a.State == StateSetup || a.State == StateLive
}

// HasBuyer reports whether settlement assigned a buyer.
func (a Auction) HasBuyer() bool {
	return a.BuyerID != nil && *a.BuyerID != ""
}

// IncrementOrFloor returns the configured minimum increment, or MinimumAmount when unset.
func (a Auction) IncrementOrFloor() decimal.Decimal {
	if a.MinBid.IsPositive() {
		return a.MinBid
	}
	return MinimumAmount
}
