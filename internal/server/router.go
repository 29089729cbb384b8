package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/auth"
	bidding "github.com/philippspitzley/auctioneer/services/bidding/handler"
	marketplace "github.com/philippspitzley/auctioneer/services/marketplace/handler"
	"github.com/philippspitzley/auctioneer/utils"
)

// Deps are the services the HTTP surface is built on
type Deps struct {
	Bidding     bidding.BiddingServiceInterface
	Marketplace marketplace.MarketplaceServiceInterface
	JWT         auth.JWT
	// Ping reports storage health; nil means always healthy.
	Ping func(ctx context.Context) error
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := bidding.NewBiddingHandler(deps.Bidding)
	marketHandler := marketplace.NewMarketplaceHandler(deps.Marketplace, deps.JWT)
	authed := auth.AuthRequired(deps.JWT)
	adminOnly := auth.AdminRequired()

	router.GET("/health", healthHandler(deps.Ping))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", marketHandler.RegisterHandler)
		authGroup.POST("/login", marketHandler.LoginHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/me", authed, marketHandler.MeHandler)
		users.GET("", authed, marketHandler.ListUsersHandler)
		users.POST("", authed, adminOnly, marketHandler.CreateUserHandler)
		users.GET("/:user_id", authed, marketHandler.GetUserHandler)
		users.PATCH("/:user_id", authed, marketHandler.UpdateUserHandler)
		users.DELETE("/:user_id", authed, adminOnly, marketHandler.DeleteUserHandler)
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
	}

	products := router.Group("/products")
	{
		products.GET("", marketHandler.ListProductsHandler)
		products.GET("/search", marketHandler.SearchProductsHandler)
		products.GET("/:product_id", marketHandler.GetProductHandler)
		products.POST("", authed, marketHandler.CreateProductHandler)
		products.PATCH("/:product_id", authed, marketHandler.UpdateProductHandler)
		products.DELETE("/:product_id", authed, marketHandler.DeleteProductHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.GET("", marketHandler.ListAuctionsHandler)
		auctions.GET("/finished", biddingHandler.GetFinishedAuctionsHandler)
		auctions.GET("/:auction_id", marketHandler.GetAuctionHandler)
		auctions.POST("", authed, marketHandler.CreateAuctionHandler)
		auctions.PATCH("/:auction_id", authed, marketHandler.UpdateAuctionHandler)
		auctions.DELETE("/:auction_id", authed, marketHandler.DeleteAuctionHandler)

		auctions.POST("/:auction_id/publish", authed, biddingHandler.PublishAuctionHandler)
		auctions.POST("/:auction_id/bids", authed, biddingHandler.SubmitBidHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/highest_bid", biddingHandler.GetHighestBidHandler)
	}

	admin := router.Group("/admin", authed, adminOnly)
	{
		admin.POST("/sweep", biddingHandler.RunSweepHandler)
	}

	return router
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				utils.JSONError(c, http.StatusServiceUnavailable, err, "storage unavailable")
				utils.Error("Health check failed", map[string]any{"error": err.Error()})
				return
			}
		}
		utils.JSONResponse(c, http.StatusOK, gin.H{"healthy": true}, "ok")
	}
}
