package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/philippspitzley/auctioneer/internal/auth"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/services/bidding/helpers"
	"github.com/philippspitzley/auctioneer/utils"
)

//go:generate mockgen -destination=mock_bidding_service.go -package=handler . BiddingServiceInterface

type BiddingServiceInterface interface {
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (models.Bid, error)
	PublishAuction(ctx context.Context, actor models.Identity, auctionID string, duration time.Duration) (models.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error)
	GetFinishedAuctions(ctx context.Context, offset, limit int) ([]models.Auction, error)
	RunSettlementSweep(ctx context.Context) []string
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// currentUser aborts with 401 when no identity is attached to the request
func currentUser(c *gin.Context, handlerName string) (models.Identity, bool) {
	id, ok := auth.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, handlerName, biddingerrors.ErrUnauthorized, nil)
		return models.Identity{}, false
	}
	return id, true
}

// SubmitBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) SubmitBidHandler(c *gin.Context) {
	user, ok := currentUser(c, "SubmitBidHandler")
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SubmitBidHandler", err)
		return
	}

	bid, err := h.service.SubmitBid(c.Request.Context(), auctionID, user.UserID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "SubmitBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  user.UserID,
			"amount":     req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("SubmitBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.StringFixed(models.MoneyPlaces),
	})
}

// PublishAuctionHandler handles POST /auctions/:auction_id/publish
func (h *BiddingHandler) PublishAuctionHandler(c *gin.Context) {
	user, ok := currentUser(c, "PublishAuctionHandler")
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	var req helpers.PublishAuctionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			helpers.HandleBindError(c, "PublishAuctionHandler", err)
			return
		}
	}

	var duration time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			helpers.HandleBindError(c, "PublishAuctionHandler", fmt.Errorf("duration %q must be a positive Go duration such as \"30m\"", req.Duration))
			return
		}
		duration = d
	}

	auction, err := h.service.PublishAuction(c.Request.Context(), user, auctionID, duration)
	if err != nil {
		helpers.RespondError(c, "PublishAuctionHandler", err, map[string]any{"auction_id": auctionID, "user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction published successfully")
	helpers.LogSuccess("PublishAuctionHandler", "auction published successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"end_time":   auction.EndTime,
	})
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "GetBidsByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetHighestBidHandler handles GET /auctions/:auction_id/highest_bid
func (h *BiddingHandler) GetHighestBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetHighestBid(c.Request.Context(), auctionID)
	if err != nil {
		if helpers.IsEmptyResult(err) {
			utils.JSONError(c, http.StatusNotFound, err, "no bids found")
			utils.Info("GetHighestBidHandler: no bids found", map[string]any{"auction_id": auctionID})
			return
		}
		helpers.RespondError(c, "GetHighestBidHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "highest bid retrieved successfully")
	helpers.LogSuccess("GetHighestBidHandler", "highest bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"amount":     bid.Amount.StringFixed(models.MoneyPlaces),
	})
}

// GetAuctionsByUserHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "GetAuctionsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByUserHandler", "auctions retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(auctions),
	})
}

// GetFinishedAuctionsHandler handles GET /auctions/finished
func (h *BiddingHandler) GetFinishedAuctionsHandler(c *gin.Context) {
	offset, limit, err := helpers.PageParams(c)
	if err != nil {
		helpers.RespondError(c, "GetFinishedAuctionsHandler", err, nil)
		return
	}

	auctions, err := h.service.GetFinishedAuctions(c.Request.Context(), offset, limit)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "GetFinishedAuctionsHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "finished auctions retrieved successfully")
	helpers.LogSuccess("GetFinishedAuctionsHandler", "finished auctions retrieved successfully", map[string]any{
		"count": len(auctions),
	})
}

// RunSweepHandler handles POST /admin/sweep
func (h *BiddingHandler) RunSweepHandler(c *gin.Context) {
	settled := h.service.RunSettlementSweep(c.Request.Context())
	if settled == nil {
		settled = []string{}
	}

	utils.JSONResponse(c, http.StatusOK, helpers.SweepResponse{Settled: settled}, "settlement sweep completed")
	helpers.LogSuccess("RunSweepHandler", "settlement sweep completed", map[string]any{"settled": len(settled)})
}
