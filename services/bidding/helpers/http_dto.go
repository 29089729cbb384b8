package helpers

import (
	"time"

	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	// Amount accepts a JSON number or string, e.g. 12.5 or "12.50".
	Amount decimal.Decimal `json:"amount"`
}

type PublishAuctionRequest struct {
	// Duration is a Go duration such as "90m"; empty selects the default.
	Duration string `json:"duration"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type AuctionResponse struct {
	AuctionID       string  `json:"auction_id"`
	OwnerID         string  `json:"owner_id"`
	ProductID       string  `json:"product_id"`
	State           string  `json:"state"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	StartingPrice   string  `json:"starting_price"`
	MinBid          string  `json:"min_bid"`
	InstantBuy      bool    `json:"instant_buy"`
	InstantBuyPrice *string `json:"instant_buy_price"`
	BuyerID         *string `json:"buyer_id"`
	SoldPrice       *string `json:"sold_price"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type SweepResponse struct {
	Settled []string `json:"settled"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(models.MoneyPlaces)
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}

func NewBidResponse(b models.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    money(b.Amount),
		CreatedAt: timestamp(b.CreatedAt),
	}
}

func NewBidResponses(bids []models.Bid) []BidResponse {
	out := make([]BidResponse, len(bids))
	for i, b := range bids {
		out[i] = NewBidResponse(b)
	}
	return out
}

func NewAuctionResponse(a models.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		OwnerID:         a.OwnerID,
		ProductID:       a.ProductID,
		State:           string(a.State),
		StartTime:       nullTimestamp(a.StartTime),
		EndTime:         nullTimestamp(a.EndTime),
		StartingPrice:   money(a.StartingPrice),
		MinBid:          money(a.MinBid),
		InstantBuy:      a.InstantBuy,
		InstantBuyPrice: nullMoney(a.InstantBuyPrice),
		BuyerID:         a.BuyerID,
		SoldPrice:       nullMoney(a.SoldPrice),
		CreatedAt:       timestamp(a.CreatedAt),
		UpdatedAt:       timestamp(a.UpdatedAt),
	}
}

func NewAuctionResponses(auctions []models.Auction) []AuctionResponse {
	out := make([]AuctionResponse, len(auctions))
	for i, a := range auctions {
		out[i] = NewAuctionResponse(a)
	}
	return out
}
