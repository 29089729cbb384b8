package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/services/bidding/helpers"
	"github.com/philippspitzley/auctioneer/utils"
)

const defaultSearchLimit = 10

// CreateProductHandler handles POST /products
func (h *MarketplaceHandler) CreateProductHandler(c *gin.Context) {
	actor, ok := currentUser(c, "CreateProductHandler")
	if !ok {
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateProductHandler", err)
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), actor, marketplace.NewProduct{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		helpers.RespondError(c, "CreateProductHandler", err, map[string]any{"owner_id": actor.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, NewProductResponse(product), "product created successfully")
	helpers.LogSuccess("CreateProductHandler", "product created successfully", map[string]any{
		"product_id": product.ProductID,
		"owner_id":   product.OwnerID,
	})
}

// GetProductHandler handles GET /products/:product_id
func (h *MarketplaceHandler) GetProductHandler(c *gin.Context) {
	productID := c.Param("product_id")
	product, err := h.service.GetProduct(c.Request.Context(), productID)
	if err != nil {
		helpers.RespondError(c, "GetProductHandler", err, map[string]any{"product_id": productID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewProductResponse(product), "product retrieved successfully")
}

// ListProductsHandler handles GET /products
func (h *MarketplaceHandler) ListProductsHandler(c *gin.Context) {
	q, err := helpers.BindListQuery[repository.ProductField](c)
	if err != nil {
		helpers.RespondError(c, "ListProductsHandler", err, nil)
		return
	}

	products, err := h.service.ListProducts(c.Request.Context(), q)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "ListProductsHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewProductResponses(products), "products retrieved successfully")
	helpers.LogSuccess("ListProductsHandler", "products retrieved successfully", map[string]any{"count": len(products)})
}

// SearchProductsHandler handles GET /products/search?q=&limit=
func (h *MarketplaceHandler) SearchProductsHandler(c *gin.Context) {
	query := c.Query("q")
	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > repository.MaxLimit {
			helpers.RespondError(c, "SearchProductsHandler",
				fmt.Errorf("%w: limit must be between 1 and %d", biddingerrors.ErrInvalidFilter, repository.MaxLimit), nil)
			return
		}
		limit = n
	}

	products, err := h.service.SearchProducts(c.Request.Context(), query, limit)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "SearchProductsHandler", err, map[string]any{"query": query})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewProductResponses(products), "products retrieved successfully")
	helpers.LogSuccess("SearchProductsHandler", "products retrieved successfully", map[string]any{
		"query": query,
		"count": len(products),
	})
}

// UpdateProductHandler handles PATCH /products/:product_id
func (h *MarketplaceHandler) UpdateProductHandler(c *gin.Context) {
	actor, ok := currentUser(c, "UpdateProductHandler")
	if !ok {
		return
	}
	productID := c.Param("product_id")

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateProductHandler", err)
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), actor, productID, marketplace.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		helpers.RespondError(c, "UpdateProductHandler", err, map[string]any{"product_id": productID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewProductResponse(product), "product updated successfully")
	helpers.LogSuccess("UpdateProductHandler", "product updated successfully", map[string]any{"product_id": productID})
}

// DeleteProductHandler handles DELETE /products/:product_id
func (h *MarketplaceHandler) DeleteProductHandler(c *gin.Context) {
	actor, ok := currentUser(c, "DeleteProductHandler")
	if !ok {
		return
	}
	productID := c.Param("product_id")

	if err := h.service.DeleteProduct(c.Request.Context(), actor, productID); err != nil {
		helpers.RespondError(c, "DeleteProductHandler", err, map[string]any{"product_id": productID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "product deleted successfully")
	helpers.LogSuccess("DeleteProductHandler", "product deleted successfully", map[string]any{"product_id": productID})
}
