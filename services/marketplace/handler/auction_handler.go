package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/services/bidding/helpers"
	"github.com/philippspitzley/auctioneer/utils"
)

// CreateAuctionHandler handles POST /auctions
func (h *MarketplaceHandler) CreateAuctionHandler(c *gin.Context) {
	actor, ok := currentUser(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), actor, marketplace.NewAuction{
		ProductID:       req.ProductID,
		StartingPrice:   req.StartingPrice,
		MinBid:          req.MinBid,
		InstantBuyPrice: req.InstantBuyPrice,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"product_id": req.ProductID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"product_id": auction.ProductID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *MarketplaceHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions
func (h *MarketplaceHandler) ListAuctionsHandler(c *gin.Context) {
	q, err := helpers.BindListQuery[repository.AuctionField](c)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}

	auctions, err := h.service.ListAuctions(c.Request.Context(), q)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{"count": len(auctions)})
}

// UpdateAuctionHandler handles PATCH /auctions/:auction_id
func (h *MarketplaceHandler) UpdateAuctionHandler(c *gin.Context) {
	actor, ok := currentUser(c, "UpdateAuctionHandler")
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	var req UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auction, err := h.service.UpdateAuction(c.Request.Context(), actor, auctionID, marketplace.AuctionUpdate{
		StartingPrice:   req.StartingPrice,
		MinBid:          req.MinBid,
		InstantBuyPrice: req.InstantBuyPrice,
		ClearInstantBuy: req.ClearInstantBuy,
	})
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auction_id": auctionID})
}

// DeleteAuctionHandler handles DELETE /auctions/:auction_id
func (h *MarketplaceHandler) DeleteAuctionHandler(c *gin.Context) {
	actor, ok := currentUser(c, "DeleteAuctionHandler")
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	if err := h.service.DeleteAuction(c.Request.Context(), actor, auctionID); err != nil {
		helpers.RespondError(c, "DeleteAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "auction deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted successfully", map[string]any{"auction_id": auctionID})
}
