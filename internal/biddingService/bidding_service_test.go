package bidding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock shared by service and test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// liveAuction returns a live auction that ends at end
func liveAuction(id string, start, end time.Time) models.Auction {
	return models.Auction{
		AuctionID:     id,
		OwnerID:       "owner",
		ProductID:     "product-" + id,
		State:         models.StateLive,
		StartTime:     &start,
		EndTime:       &end,
		StartingPrice: dec("10"),
		MinBid:        dec("2"),
		CreatedAt:     start,
		UpdatedAt:     start,
	}
}

// expectTransact makes the mock run the service callback against the given snapshot
func expectTransact(mockRepo *repository.MockAuctionDB, auction models.Auction, highest *models.Bid) *gomock.Call {
	return mockRepo.EXPECT().
		Transact(gomock.Any(), auction.AuctionID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn repository.TxFunc) (models.Auction, error) {
			tx := repository.NewAuctionTx(auction, models.Product{ProductID: auction.ProductID, OwnerID: auction.OwnerID}, highest)
			if err := fn(tx); err != nil {
				return models.Auction{}, err
			}
			return tx.Auction, nil
		})
}

// Tests SubmitBid
func TestBiddingService_SubmitBid(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo, WithClock(func() time.Time { return t0.Add(time.Minute) }))

	standing := &models.Bid{BidID: "bid0", AuctionID: "a-high", BidderID: "user0", Amount: dec("20"), CreatedAt: t0}

	// Table-driven test cases
	tests := []struct {
		name          string
		auctionID     string
		userID        string
		amount        string
		mockSetup     func()
		expectError   bool
		expectedError error
	}{
		{
			name:      "valid_first_bid",
			auctionID: "a-first",
			userID:    "user1",
			amount:    "10.00",
			mockSetup: func() {
				expectTransact(mockRepo, liveAuction("a-first", t0, t0.Add(5*time.Minute)), nil)
			},
		},
		{
			name:      "valid_increment",
			auctionID: "a-high",
			userID:    "user1",
			amount:    "22",
			mockSetup: func() {
				expectTransact(mockRepo, liveAuction("a-high", t0, t0.Add(5*time.Minute)), standing)
			},
		},
		{
			name:          "empty_auctionID",
			auctionID:     "",
			userID:        "user1",
			amount:        "50",
			mockSetup:     func() {},
			expectError:   true,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "empty_userID",
			auctionID:     "a1",
			userID:        "",
			amount:        "50",
			mockSetup:     func() {},
			expectError:   true,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "zero_amount",
			auctionID:     "a1",
			userID:        "user1",
			amount:        "0",
			mockSetup:     func() {},
			expectError:   true,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "negative_amount",
			auctionID:     "a1",
			userID:        "user1",
			amount:        "-50",
			mockSetup:     func() {},
			expectError:   true,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:          "sub_cent_amount",
			auctionID:     "a1",
			userID:        "user1",
			amount:        "10.005",
			mockSetup:     func() {},
			expectError:   true,
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:      "bid_too_low",
			auctionID: "a-low",
			userID:    "user2",
			amount:    "21",
			mockSetup: func() {
				hb := *standing
				hb.AuctionID = "a-low"
				expectTransact(mockRepo, liveAuction("a-low", t0, t0.Add(5*time.Minute)), &hb)
			},
			expectError:   true,
			expectedError: biddingerrors.ErrBidTooLow,
		},
		{
			name:      "auction_not_found",
			auctionID: "a-missing",
			userID:    "user2",
			amount:    "21",
			mockSetup: func() {
				mockRepo.EXPECT().Transact(gomock.Any(), "a-missing", gomock.Any()).
					Return(models.Auction{}, biddingerrors.ErrAuctionNotFound)
			},
			expectError:   true,
			expectedError: biddingerrors.ErrAuctionNotFound,
		},
		{
			name:      "repo_fails",
			auctionID: "a-fail",
			userID:    "user3",
			amount:    "120",
			mockSetup: func() {
				mockRepo.EXPECT().Transact(gomock.Any(), "a-fail", gomock.Any()).
					Return(models.Auction{}, errors.New("repo write failed"))
			},
			expectError:   true,
			expectedError: nil, // Service wraps repo error, we don’t match specific error here
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel() // Run table test cases in parallel

			tc.mockSetup()

			bid, err := service.SubmitBid(context.Background(), tc.auctionID, tc.userID, dec(tc.amount))

			if tc.expectError {
				require.Error(t, err)
				if tc.expectedError != nil {
					require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				}
				return
			}

			require.NoError(t, err)

			// Validate generated BidID
			require.NotEmpty(t, bid.BidID)
			_, parseErr := uuid.Parse(bid.BidID)
			require.NoError(t, parseErr, "BidID should be a valid UUID")

			require.Equal(t, tc.auctionID, bid.AuctionID)
			require.Equal(t, tc.userID, bid.BidderID)
			require.True(t, dec(tc.amount).Equal(bid.Amount))
			require.Equal(t, t0.Add(time.Minute), bid.CreatedAt)
		})
	}
}

// Tests that an instant-buy bid settles synchronously and notifies after commit
func TestBiddingService_SubmitBid_InstantBuy(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockNotifier := NewMockNotifier(ctrl)
	now := t0.Add(90 * time.Second)
	service := NewBiddingService(mockRepo, WithNotifier(mockNotifier), WithClock(func() time.Time { return now }))

	auction := liveAuction("a1", t0, t0.Add(5*time.Minute))
	auction.InstantBuyPrice = decimal.NewNullDecimal(dec("100"))

	var committed *repository.AuctionTx
	mockRepo.EXPECT().Transact(gomock.Any(), "a1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn repository.TxFunc) (models.Auction, error) {
			committed = repository.NewAuctionTx(auction, models.Product{ProductID: auction.ProductID}, nil)
			require.NoError(t, fn(committed))
			return committed.Auction, nil
		})

	owner := models.User{UserID: "owner", Email: "owner@example.com"}
	buyer := models.User{UserID: "buyer", Email: "buyer@example.com"}
	mockRepo.EXPECT().GetUser(gomock.Any(), "owner").Return(owner, nil)
	mockRepo.EXPECT().GetUser(gomock.Any(), "buyer").Return(buyer, nil)
	mockNotifier.EXPECT().AuctionFinished(gomock.Any(), gomock.Any(), owner).Return(nil)
	mockNotifier.EXPECT().AuctionWon(gomock.Any(), gomock.Any(), buyer).Return(nil)

	bid, err := service.SubmitBid(context.Background(), "a1", "buyer", dec("150"))
	require.NoError(t, err)
	require.True(t, dec("100").Equal(bid.Amount), "stored amount is clamped to the instant-buy price")

	a := committed.Auction
	require.True(t, a.InstantBuy)
	require.Equal(t, now, *a.EndTime)
	require.Equal(t, models.StateFinished, a.State)
	require.Equal(t, "buyer", *a.BuyerID)
	require.True(t, dec("100").Equal(a.SoldPrice.Decimal))
	require.True(t, committed.ProductSold())
	require.Len(t, committed.NewBids(), 1)
}

// Tests GetBidsForAuction
func TestBiddingService_GetBidsForAuction(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo)

	now := time.Now().UTC()

	// Initialize bids
	bidsExample := []models.Bid{
		{BidID: "bid1", AuctionID: "a1", BidderID: "user1", Amount: dec("100"), CreatedAt: now},
		{BidID: "bid2", AuctionID: "a1", BidderID: "user2", Amount: dec("150"), CreatedAt: now.Add(1 * time.Second)},
	}

	tests := []struct {
		name          string
		auctionID     string
		mockSetup     func()
		expectedError error
		expectedBids  []models.Bid
	}{
		{
			name:      "auction_with_bids",
			auctionID: "a1",
			mockSetup: func() {
				mockRepo.EXPECT().GetBidsByAuction(gomock.Any(), "a1").Return(bidsExample, nil)
			},
			expectedBids: bidsExample,
		},
		{
			name:      "auction_without_bids",
			auctionID: "a2",
			mockSetup: func() {
				mockRepo.EXPECT().GetBidsByAuction(gomock.Any(), "a2").Return(nil, biddingerrors.ErrNoBids)
			},
			expectedError: biddingerrors.ErrNoBids,
		},
		{
			name:          "empty_auctionID",
			auctionID:     "",
			mockSetup:     func() {},
			expectedError: biddingerrors.ErrInvalidBid,
		},
		{
			name:      "unknown_auction",
			auctionID: "a3",
			mockSetup: func() {
				mockRepo.EXPECT().GetBidsByAuction(gomock.Any(), "a3").Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedError: biddingerrors.ErrAuctionNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel() // Run tests concurrently

			tc.mockSetup()

			bids, err := service.GetBidsForAuction(context.Background(), tc.auctionID)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectedBids, bids)
		})
	}
}

// Test GetHighestBid
func TestBiddingService_GetHighestBid(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo)

	highest := models.Bid{BidID: uuid.NewString(), AuctionID: "a1", BidderID: "user1", Amount: dec("100"), CreatedAt: t0}

	tests := []struct {
		name        string
		auctionID   string
		mockSetup   func()
		expectError bool
	}{
		{
			name:      "auction_with_highest_bid",
			auctionID: "a1",
			mockSetup: func() {
				mockRepo.EXPECT().GetHighestBid(gomock.Any(), "a1").Return(highest, nil)
			},
		},
		{
			name:        "empty_auctionID",
			auctionID:   "",
			mockSetup:   func() {},
			expectError: true,
		},
		{
			name:      "repo_returns_no_bids",
			auctionID: "a2",
			mockSetup: func() {
				mockRepo.EXPECT().GetHighestBid(gomock.Any(), "a2").Return(models.Bid{}, biddingerrors.ErrNoBids)
			},
			expectError: true,
		},
		{
			name:      "repo_returns_error",
			auctionID: "a3",
			mockSetup: func() {
				mockRepo.EXPECT().GetHighestBid(gomock.Any(), "a3").Return(models.Bid{}, errors.New("repo error"))
			},
			expectError: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel() // Run tests concurrently

			tc.mockSetup()

			bid, err := service.GetHighestBid(context.Background(), tc.auctionID)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, highest, bid)
		})
	}
}

// Test GetAuctionsByBidder and GetFinishedAuctions
func TestBiddingService_Listings(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo)
	ctx := context.Background()

	auctions := []models.Auction{liveAuction("a1", t0, t0.Add(time.Minute))}

	mockRepo.EXPECT().GetAuctionsByBidder(gomock.Any(), "user1").Return(auctions, nil)
	got, err := service.GetAuctionsByBidder(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, auctions, got)

	_, err = service.GetAuctionsByBidder(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)

	mockRepo.EXPECT().ListAuctions(gomock.Any(), repository.AuctionQuery{
		SearchBy: repository.AuctionFieldState,
		Term:     "finished",
		OrderBy:  repository.AuctionFieldEndTime,
		Desc:     true,
		Offset:   5,
		Limit:    10,
	}).Return(nil, biddingerrors.ErrNoAuctions)
	_, err = service.GetFinishedAuctions(ctx, 5, 10)
	require.ErrorIs(t, err, biddingerrors.ErrNoAuctions)
}
