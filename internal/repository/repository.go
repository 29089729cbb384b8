package repository

import (
	"context"

	"github.com/philippspitzley/auctioneer/internal/models"
)

//go:generate mockgen -destination=mock_repository.go -package=repository -self_package=github.com/philippspitzley/auctioneer/internal/repository github.com/philippspitzley/auctioneer/internal/repository AuctionDB

// AuctionDB defines the auction storage interface the bidding engine depends on
type AuctionDB interface {
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, q AuctionQuery) ([]models.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	// Transact runs fn against a locked snapshot of the auction and commits
	// everything fn staged on the AuctionTx atomically. Nothing is written if
	// fn returns an error or stages no change.
	Transact(ctx context.Context, auctionID string, fn TxFunc) (models.Auction, error)
}

// CatalogDB defines generic storage for users, products and auction listings
type CatalogDB interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context, q UserQuery) ([]models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, userID string) error

	CreateProduct(ctx context.Context, product models.Product) error
	GetProduct(ctx context.Context, productID string) (models.Product, error)
	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product models.Product) error
	DeleteProduct(ctx context.Context, productID string) error

	// CreateAuction fails with ErrProductListed if the product already has an open auction.
	CreateAuction(ctx context.Context, auction models.Auction) error
	DeleteAuction(ctx context.Context, auctionID string) error
	HasOpenAuction(ctx context.Context, productID string) (bool, error)
}

// Store is the complete persistence gateway
type Store interface {
	AuctionDB
	CatalogDB
}

// TxFunc inspects and mutates an auction inside a Transact call
type TxFunc func(tx *AuctionTx) error

// AuctionTx is the unit of work of a Transact call. Fields reflect committed
// state when fn is invoked; mutations must go through the methods so the
// store knows what to write.
type AuctionTx struct {
	Auction    models.Auction
	Product    models.Product
	HighestBid *models.Bid

	newBids     []models.Bid
	productSold bool
	dirty       bool
}

// NewAuctionTx builds a unit of work over a committed snapshot
func NewAuctionTx(auction models.Auction, product models.Product, highest *models.Bid) *AuctionTx {
	return &AuctionTx{Auction: auction, Product: product, HighestBid: highest}
}

// Update applies mutate to the auction and marks it for writing
func (tx *AuctionTx) Update(mutate func(a *models.Auction)) {
	mutate(&tx.Auction)
	tx.dirty = true
}

// AppendBid stages a new bid. The standing highest bid only changes on a
// strictly greater amount, so the earliest of equal bids keeps standing.
func (tx *AuctionTx) AppendBid(bid models.Bid) {
	tx.newBids = append(tx.newBids, bid)
	if tx.HighestBid == nil || bid.Amount.GreaterThan(tx.HighestBid.Amount) {
		b := bid
		tx.HighestBid = &b
	}
	tx.dirty = true
}

// MarkProductSold stages the product's sold flag
func (tx *AuctionTx) MarkProductSold() {
	tx.productSold = true
	tx.Product.Sold = true
	tx.dirty = true
}

// NewBids returns the bids staged in this unit of work
func (tx *AuctionTx) NewBids() []models.Bid {
	return tx.newBids
}

// ProductSold reports whether the product's sold flag is staged
func (tx *AuctionTx) ProductSold() bool {
	return tx.productSold
}

// Dirty reports whether anything needs to be written
func (tx *AuctionTx) Dirty() bool {
	return tx.dirty
}
