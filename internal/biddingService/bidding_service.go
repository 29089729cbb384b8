package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
)

// DefaultAuctionDuration is how long a published auction stays live when no duration is given
const DefaultAuctionDuration = 5 * time.Minute

// BiddingService defines the business logic for auction bidding and settlement
type BiddingService struct {
	repo            repository.AuctionDB
	notifier        Notifier
	now             func() time.Time
	defaultDuration time.Duration
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = now
	}
}

// WithNotifier sets the recipient of settlement notifications
func WithNotifier(n Notifier) Option {
	return func(s *BiddingService) {
		s.notifier = n
	}
}

// WithDefaultDuration sets the live period used when publish gets no duration
func WithDefaultDuration(d time.Duration) Option {
	return func(s *BiddingService) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:            repo,
		notifier:        nopNotifier{},
		now:             time.Now,
		defaultDuration: DefaultAuctionDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAuction returns a single auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// GetBidsForAuction returns all bids for a specific auction
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetHighestBid returns the standing bid of a specific auction
func (s *BiddingService) GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bid, err := s.repo.GetHighestBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get highest bid for auction %s: %w", auctionID, err)
	}
	return bid, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", userID, err)
	}
	return auctions, nil
}

// GetFinishedAuctions returns settled auctions, most recently ended first
func (s *BiddingService) GetFinishedAuctions(ctx context.Context, offset, limit int) ([]models.Auction, error) {
	auctions, err := s.repo.ListAuctions(ctx, repository.AuctionQuery{
		SearchBy: repository.AuctionFieldState,
		Term:     string(models.StateFinished),
		OrderBy:  repository.AuctionFieldEndTime,
		Desc:     true,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to list finished auctions: %w", err)
	}
	return auctions, nil
}
