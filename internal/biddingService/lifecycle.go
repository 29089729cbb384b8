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

// PublishAuction moves a setup auction to live for the given duration.
// A zero duration selects the configured default.
func (s *BiddingService) PublishAuction(ctx context.Context, actor models.Identity, auctionID string, duration time.Duration) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	if duration < 0 {
		return models.Auction{}, fmt.Errorf("service: %w - negative duration %s", biddingerrors.ErrInvalidAuction, duration)
	}
	if duration == 0 {
		duration = s.defaultDuration
	}

	auction, err := s.repo.Transact(ctx, auctionID, func(tx *repository.AuctionTx) error {
		if !actor.Owns(tx.Auction.OwnerID) {
			return fmt.Errorf("%w - only the owner can publish auction %s", biddingerrors.ErrForbidden, auctionID)
		}
		if tx.Auction.State != models.StateSetup {
			return &biddingerrors.StateTransitionError{
				AuctionID: auctionID,
				Current:   string(tx.Auction.State),
				Wanted:    string(models.StateSetup),
			}
		}
		if tx.Product.Sold {
			return fmt.Errorf("%w - product %s", biddingerrors.ErrProductSold, tx.Product.ProductID)
		}

		now := s.now().UTC()
		end := now.Add(duration)
		tx.Update(func(a *models.Auction) {
			a.State = models.StateLive
			a.StartTime = &now
			a.EndTime = &end
			a.UpdatedAt = now
		})
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to publish auction %s: %w", auctionID, err)
	}

	utils.Info("Auction published", map[string]any{
		"auction_id": auction.AuctionID,
		"end_time":   auction.EndTime,
	})
	return auction, nil
}

// settle finishes the auction inside tx. A positive winning bid assigns the
// buyer and sale price and marks the product sold in the same commit.
func settle(tx *repository.AuctionTx, winner *models.Bid, now time.Time) {
	hasWinner := winner != nil && winner.Amount.IsPositive()

	tx.Update(func(a *models.Auction) {
		a.State = models.StateFinished
		a.UpdatedAt = now
		if hasWinner {
			buyer := winner.BidderID
			a.BuyerID = &buyer
			a.SoldPrice = decimal.NewNullDecimal(winner.Amount)
		}
	})
	if hasWinner {
		tx.MarkProductSold()
	}
}

// notifySettled tells the owner the auction finished and, when there is one, the buyer that they won.
// Recipients are loaded explicitly after commit; failures are logged and never undo the settlement.
func (s *BiddingService) notifySettled(ctx context.Context, auction models.Auction) {
	owner, err := s.repo.GetUser(ctx, auction.OwnerID)
	if err != nil {
		utils.Error("Failed to load auction owner for notification", map[string]any{
			"auction_id": auction.AuctionID,
			"owner_id":   auction.OwnerID,
			"error":      err.Error(),
		})
	} else if err := s.notifier.AuctionFinished(ctx, auction, owner); err != nil {
		utils.Error("Failed to notify auction owner", map[string]any{
			"auction_id": auction.AuctionID,
			"owner_id":   owner.UserID,
			"error":      err.Error(),
		})
	}

	if !auction.HasBuyer() {
		return
	}
	buyer, err := s.repo.GetUser(ctx, *auction.BuyerID)
	if err != nil {
		utils.Error("Failed to load auction buyer for notification", map[string]any{
			"auction_id": auction.AuctionID,
			"buyer_id":   *auction.BuyerID,
			"error":      err.Error(),
		})
		return
	}
	if err := s.notifier.AuctionWon(ctx, auction, buyer); err != nil {
		utils.Error("Failed to notify auction buyer", map[string]any{
			"auction_id": auction.AuctionID,
			"buyer_id":   buyer.UserID,
			"error":      err.Error(),
		})
	}
}
