package bidding

import (
	"context"

	"github.com/philippspitzley/auctioneer/internal/models"
)

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=bidding

// Notifier delivers settlement notices. Implementations should hand the
// message off quickly; the sweep calls them after each settlement commits.
type Notifier interface {
	AuctionFinished(ctx context.Context, auction models.Auction, owner models.User) error
	AuctionWon(ctx context.Context, auction models.Auction, buyer models.User) error
}

type nopNotifier struct{}

func (nopNotifier) AuctionFinished(context.Context, models.Auction, models.User) error { return nil }
func (nopNotifier) AuctionWon(context.Context, models.Auction, models.User) error      { return nil }
