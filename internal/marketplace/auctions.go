package marketplace

import (
	"context"
	"fmt"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
	"github.com/shopspring/decimal"
)

// NewAuction lists a product. A nil MinBid selects the configured default increment.
type NewAuction struct {
	ProductID       string
	StartingPrice   decimal.Decimal
	MinBid          *decimal.Decimal
	InstantBuyPrice *decimal.Decimal
}

// AuctionUpdate changes pricing of an auction still in setup
type AuctionUpdate struct {
	StartingPrice   *decimal.Decimal
	MinBid          *decimal.Decimal
	InstantBuyPrice *decimal.Decimal
	// ClearInstantBuy removes the instant-buy price.
	ClearInstantBuy bool
}

// validatePricing checks the invariants every setup auction must hold
func validatePricing(a models.Auction) error {
	if !models.IsMoney(a.StartingPrice) || a.StartingPrice.LessThan(models.MinimumAmount) {
		return fmt.Errorf("%w - starting price must be at least %s with at most %d decimals",
			biddingerrors.ErrInvalidAuction, models.MinimumAmount.StringFixed(2), models.MoneyPlaces)
	}
	if !models.IsMoney(a.MinBid) || a.MinBid.LessThan(models.MinimumIncrement) {
		return fmt.Errorf("%w - minimum bid increment must be at least %s with at most %d decimals",
			biddingerrors.ErrInvalidAuction, models.MinimumIncrement.StringFixed(2), models.MoneyPlaces)
	}
	if a.InstantBuyPrice.Valid {
		p := a.InstantBuyPrice.Decimal
		if !models.IsMoney(p) || !p.GreaterThan(a.StartingPrice) {
			return fmt.Errorf("%w - instant buy price must be above the starting price", biddingerrors.ErrInvalidAuction)
		}
	}
	return nil
}

// CreateAuction lists one of the actor's products in setup state
func (s *MarketplaceService) CreateAuction(ctx context.Context, actor models.Identity, in NewAuction) (models.Auction, error) {
	if in.ProductID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing product ID", biddingerrors.ErrInvalidAuction)
	}

	product, err := s.GetProduct(ctx, in.ProductID)
	if err != nil {
		return models.Auction{}, err
	}
	if !actor.Owns(product.OwnerID) {
		return models.Auction{}, fmt.Errorf("service: %w - product %s belongs to another user", biddingerrors.ErrForbidden, product.ProductID)
	}
	if product.Sold {
		return models.Auction{}, fmt.Errorf("service: %w - product %s", biddingerrors.ErrProductSold, product.ProductID)
	}

	now := s.clock()
	auction := models.Auction{
		AuctionID:     utils.GenerateID(),
		OwnerID:       product.OwnerID,
		ProductID:     product.ProductID,
		State:         models.StateSetup,
		StartingPrice: in.StartingPrice,
		MinBid:        s.defaultMinBid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.MinBid != nil {
		auction.MinBid = *in.MinBid
	}
	if in.InstantBuyPrice != nil {
		auction.InstantBuyPrice = decimal.NewNullDecimal(*in.InstantBuyPrice)
	}
	if err := validatePricing(auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: %w", err)
	}

	if err := s.store.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for product %s: %w", product.ProductID, err)
	}

	utils.Info("Auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"product_id": auction.ProductID,
		"owner_id":   auction.OwnerID,
	})
	return auction, nil
}

func (s *MarketplaceService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

func (s *MarketplaceService) ListAuctions(ctx context.Context, q repository.AuctionQuery) ([]models.Auction, error) {
	auctions, err := s.store.ListAuctions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// UpdateAuction changes pricing of a setup auction under the auction's row lock,
// so a concurrent publish either sees the new prices or rejects this update.
func (s *MarketplaceService) UpdateAuction(ctx context.Context, actor models.Identity, auctionID string, upd AuctionUpdate) (models.Auction, error) {
	auction, err := s.store.Transact(ctx, auctionID, func(tx *repository.AuctionTx) error {
		if !actor.Owns(tx.Auction.OwnerID) {
			return fmt.Errorf("%w - cannot edit auction %s", biddingerrors.ErrForbidden, auctionID)
		}
		if tx.Auction.State != models.StateSetup {
			return &biddingerrors.StateTransitionError{
				AuctionID: auctionID,
				Current:   string(tx.Auction.State),
				Wanted:    string(models.StateSetup),
			}
		}

		next := tx.Auction
		if upd.StartingPrice != nil {
			next.StartingPrice = *upd.StartingPrice
		}
		if upd.MinBid != nil {
			next.MinBid = *upd.MinBid
		}
		if upd.ClearInstantBuy {
			next.InstantBuyPrice = decimal.NullDecimal{}
		} else if upd.InstantBuyPrice != nil {
			next.InstantBuyPrice = decimal.NewNullDecimal(*upd.InstantBuyPrice)
		}
		if err := validatePricing(next); err != nil {
			return err
		}

		now := s.clock()
		tx.Update(func(a *models.Auction) {
			a.StartingPrice = next.StartingPrice
			a.MinBid = next.MinBid
			a.InstantBuyPrice = next.InstantBuyPrice
			a.UpdatedAt = now
		})
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// DeleteAuction removes an auction and its bids. Live auctions can only be removed by admins.
func (s *MarketplaceService) DeleteAuction(ctx context.Context, actor models.Identity, auctionID string) error {
	a, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !actor.Owns(a.OwnerID) {
		return fmt.Errorf("service: %w - cannot delete auction %s", biddingerrors.ErrForbidden, auctionID)
	}
	if a.State == models.StateLive && !actor.IsAdmin {
		return fmt.Errorf("service: %w - live auction %s can only be removed by an admin", biddingerrors.ErrForbidden, auctionID)
	}

	if err := s.store.DeleteAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", auctionID, err)
	}
	utils.Info("Auction deleted", map[string]any{"auction_id": auctionID, "state": a.State})
	return nil
}
