package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
	"github.com/shopspring/decimal"
)

// bidDecision is the outcome of admitting a bid
type bidDecision struct {
	amount     decimal.Decimal
	instantBuy bool
}

// SubmitBid validates and records a user's bid for an auction. An instant-buy
// bid settles the auction before the call returns.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.Bid, error) {
	if err := validateBidInput(auctionID, bidderID, amount); err != nil {
		return models.Bid{}, err
	}

	var (
		placed  models.Bid
		settled bool
	)
	auction, err := s.repo.Transact(ctx, auctionID, func(tx *repository.AuctionTx) error {
		now := s.now().UTC()

		decision, err := evaluateBid(tx.Auction, tx.HighestBid, amount, now)
		if err != nil {
			return err
		}

		placed = models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    decision.amount,
			CreatedAt: now,
		}
		tx.AppendBid(placed)

		if decision.instantBuy {
			tx.Update(func(a *models.Auction) {
				a.InstantBuy = true
				a.EndTime = &now
				a.UpdatedAt = now
			})
			settle(tx, &placed, now)
			settled = true
		}
		return nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}

	if settled {
		utils.Info("Auction settled by instant buy", map[string]any{
			"auction_id": auction.AuctionID,
			"buyer_id":   bidderID,
			"sold_price": placed.Amount.StringFixed(models.MoneyPlaces),
		})
		s.notifySettled(ctx, auction)
	}
	return placed, nil
}

// validateBidInput checks the request itself, before any auction state is read
func validateBidInput(auctionID, bidderID string, amount decimal.Decimal) error {
	if auctionID == "" || bidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !models.IsMoney(amount) {
		return fmt.Errorf("service: %w - amount %s has more than %d decimal places",
			biddingerrors.ErrInvalidBid, amount.String(), models.MoneyPlaces)
	}
	return nil
}

// evaluateBid applies the admission rules to a locked auction snapshot.
// Order matters: closed auctions first, then instant buy, then the increment rule.
func evaluateBid(auction models.Auction, highest *models.Bid, amount decimal.Decimal, now time.Time) (bidDecision, error) {
	ended := auction.HasEnded(now)
	if ended || auction.State != models.StateLive {
		return bidDecision{}, &biddingerrors.BidRejection{
			Reason:     biddingerrors.ErrBidNotAllowed,
			AuctionID:  auction.AuctionID,
			State:      string(auction.State),
			HasEnded:   ended,
			EndTime:    auction.EndTime,
			InstantBuy: auction.InstantBuy,
		}
	}

	if auction.InstantBuyPrice.Valid && amount.GreaterThanOrEqual(auction.InstantBuyPrice.Decimal) {
		return bidDecision{amount: auction.InstantBuyPrice.Decimal, instantBuy: true}, nil
	}

	current := decimal.Zero
	if highest != nil {
		current = highest.Amount
	}
	increment := auction.IncrementOrFloor()

	tooLow := false
	if current.IsZero() {
		tooLow = amount.LessThan(auction.StartingPrice)
	} else {
		tooLow = amount.LessThan(current.Add(increment))
	}
	if tooLow {
		return bidDecision{}, &biddingerrors.BidRejection{
			Reason:            biddingerrors.ErrBidTooLow,
			AuctionID:         auction.AuctionID,
			State:             string(auction.State),
			Amount:            amount,
			StartingPrice:     auction.StartingPrice,
			MinBid:            increment,
			CurrentHighestBid: current,
			MinRequired:       minimumRequired(auction.StartingPrice, current, increment),
		}
	}

	return bidDecision{amount: amount}, nil
}

// minimumRequired is the lowest amount the increment rule accepts
func minimumRequired(startingPrice, current, increment decimal.Decimal) decimal.Decimal {
	if current.IsZero() {
		if startingPrice.IsZero() {
			return increment
		}
		return startingPrice
	}
	return decimal.Max(startingPrice, current.Add(increment))
}
