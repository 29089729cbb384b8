package bidding

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
)

type sweepOutcome int

const (
	sweepUntouched sweepOutcome = iota
	sweepHealed
	sweepSettled
)

// RunSettlementSweep settles every live auction that has ended and returns
// the ids it settled. Listing failures are logged and yield an empty result;
// a failure on one auction never stops the others.
func (s *BiddingService) RunSettlementSweep(ctx context.Context) []string {
	settled := []string{}

	live, err := s.liveAuctions(ctx)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrNoAuctions) {
			utils.Info("Settlement sweep found no live auctions", nil)
		} else {
			utils.Error("Settlement sweep could not list live auctions", map[string]any{"error": err.Error()})
		}
		return settled
	}

	healed := 0
	for i, a := range live {
		if ctx.Err() != nil {
			utils.Warn("Settlement sweep interrupted", map[string]any{
				"error":     ctx.Err().Error(),
				"remaining": len(live) - i,
			})
			break
		}

		outcome, auction, err := s.sweepAuction(ctx, a.AuctionID)
		if err != nil {
			utils.Error("Failed to settle auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}

		switch outcome {
		case sweepHealed:
			healed++
			utils.Warn("Live auction without end time reset to setup", map[string]any{"auction_id": auction.AuctionID})
		case sweepSettled:
			settled = append(settled, auction.AuctionID)
			utils.Info("Auction settled", map[string]any{
				"auction_id": auction.AuctionID,
				"buyer_id":   auction.BuyerID,
				"sold_price": auction.SoldPrice,
			})
			s.notifySettled(ctx, auction)
		}
	}

	utils.Info("Settlement sweep finished", map[string]any{
		"checked":     len(live),
		"settled":     len(settled),
		"healed":      healed,
		"auction_ids": settled,
	})
	return settled
}

// liveAuctions reads every live auction page by page before anything is mutated
func (s *BiddingService) liveAuctions(ctx context.Context) ([]models.Auction, error) {
	var all []models.Auction
	for offset := 0; ; {
		page, err := s.repo.ListAuctions(ctx, repository.AuctionQuery{
			SearchBy: repository.AuctionFieldState,
			Term:     string(models.StateLive),
			OrderBy:  repository.AuctionFieldEndTime,
			Desc:     true,
			Offset:   offset,
			Limit:    repository.MaxLimit,
		})
		if err != nil {
			if errors.Is(err, biddingerrors.ErrNoAuctions) && len(all) > 0 {
				return all, nil
			}
			return nil, err
		}
		all = append(all, page...)
		if len(page) < repository.MaxLimit {
			return all, nil
		}
		offset += len(page)
	}
}

// sweepAuction re-reads one auction under lock and heals or settles it.
// The state check inside the transaction keeps overlapping sweeps from settling twice.
func (s *BiddingService) sweepAuction(ctx context.Context, auctionID string) (sweepOutcome, models.Auction, error) {
	outcome := sweepUntouched
	auction, err := s.repo.Transact(ctx, auctionID, func(tx *repository.AuctionTx) error {
		outcome = sweepUntouched
		if tx.Auction.State != models.StateLive {
			return nil
		}

		now := s.now().UTC()
		if tx.Auction.EndTime == nil {
			tx.Update(func(a *models.Auction) {
				a.State = models.StateSetup
				a.StartTime = nil
				a.BuyerID = nil
				a.UpdatedAt = now
			})
			outcome = sweepHealed
			return nil
		}

		if !tx.Auction.EndTime.Before(now) && !tx.Auction.InstantBuy {
			return nil
		}

		settle(tx, tx.HighestBid, now)
		outcome = sweepSettled
		return nil
	})
	if err != nil {
		return sweepUntouched, models.Auction{}, fmt.Errorf("service: sweep auction %s: %w", auctionID, err)
	}
	return outcome, auction, nil
}
