package bidding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/stretchr/testify/require"
)

// seedMarket stores an owner, two bidders, one product and a setup auction "a1" on it
func seedMarket(t *testing.T) *repository.MemoryRepo {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepo()

	for _, id := range []string{"owner", "alice", "bob"} {
		require.NoError(t, repo.CreateUser(ctx, models.User{
			UserID:    id,
			Username:  id,
			Email:     id + "@example.com",
			Role:      models.RoleUser,
			CreatedAt: t0,
			UpdatedAt: t0,
		}))
	}
	require.NoError(t, repo.CreateProduct(ctx, models.Product{
		ProductID: "p1", OwnerID: "owner", Name: "Lamp", CreatedAt: t0, UpdatedAt: t0,
	}))
	require.NoError(t, repo.CreateAuction(ctx, models.Auction{
		AuctionID:     "a1",
		OwnerID:       "owner",
		ProductID:     "p1",
		State:         models.StateSetup,
		StartingPrice: dec("10"),
		MinBid:        dec("2"),
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}))
	return repo
}

func TestBiddingService_PublishAuction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := models.Identity{UserID: "owner"}

	t.Run("owner_publishes_for_duration", func(t *testing.T) {
		t.Parallel()
		repo := seedMarket(t)
		clock := newFakeClock(t0)
		svc := NewBiddingService(repo, WithClock(clock.Now))

		a, err := svc.PublishAuction(ctx, owner, "a1", 10*time.Minute)
		require.NoError(t, err)
		require.Equal(t, models.StateLive, a.State)
		require.True(t, a.StartTime.Equal(t0))
		require.True(t, a.EndTime.Equal(t0.Add(10*time.Minute)))

		stored, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, models.StateLive, stored.State)
	})

	t.Run("zero_duration_uses_default", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock(t0)
		svc := NewBiddingService(seedMarket(t), WithClock(clock.Now), WithDefaultDuration(3*time.Minute))

		a, err := svc.PublishAuction(ctx, owner, "a1", 0)
		require.NoError(t, err)
		require.True(t, a.EndTime.Equal(t0.Add(3*time.Minute)))
	})

	t.Run("admin_may_publish", func(t *testing.T) {
		t.Parallel()
		svc := NewBiddingService(seedMarket(t), WithClock(newFakeClock(t0).Now))

		a, err := svc.PublishAuction(ctx, models.Identity{UserID: "root", IsAdmin: true}, "a1", 0)
		require.NoError(t, err)
		require.True(t, a.EndTime.Equal(t0.Add(DefaultAuctionDuration)))
	})

	t.Run("stranger_is_forbidden", func(t *testing.T) {
		t.Parallel()
		repo := seedMarket(t)
		svc := NewBiddingService(repo, WithClock(newFakeClock(t0).Now))

		_, err := svc.PublishAuction(ctx, models.Identity{UserID: "alice"}, "a1", 0)
		require.ErrorIs(t, err, biddingerrors.ErrForbidden)

		stored, err := repo.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, models.StateSetup, stored.State)
	})

	t.Run("already_live", func(t *testing.T) {
		t.Parallel()
		svc := NewBiddingService(seedMarket(t), WithClock(newFakeClock(t0).Now))

		_, err := svc.PublishAuction(ctx, owner, "a1", 0)
		require.NoError(t, err)

		_, err = svc.PublishAuction(ctx, owner, "a1", 0)
		require.ErrorIs(t, err, biddingerrors.ErrInvalidStateTransition)
		var te *biddingerrors.StateTransitionError
		require.True(t, errors.As(err, &te))
		require.Equal(t, "live", te.Current)
	})

	t.Run("negative_duration", func(t *testing.T) {
		t.Parallel()
		svc := NewBiddingService(seedMarket(t))

		_, err := svc.PublishAuction(ctx, owner, "a1", -time.Minute)
		require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		t.Parallel()
		svc := NewBiddingService(seedMarket(t))

		_, err := svc.PublishAuction(ctx, owner, "nope", 0)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("sold_product", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockRepo := repository.NewMockAuctionDB(ctrl)
		svc := NewBiddingService(mockRepo)

		setup := models.Auction{AuctionID: "a9", OwnerID: "owner", ProductID: "p9", State: models.StateSetup}
		mockRepo.EXPECT().
			Transact(gomock.Any(), "a9", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, fn repository.TxFunc) (models.Auction, error) {
				tx := repository.NewAuctionTx(setup, models.Product{ProductID: "p9", OwnerID: "owner", Sold: true}, nil)
				if err := fn(tx); err != nil {
					return models.Auction{}, err
				}
				return tx.Auction, nil
			})

		_, err := svc.PublishAuction(ctx, owner, "a9", 0)
		require.ErrorIs(t, err, biddingerrors.ErrProductSold)
	})
}
