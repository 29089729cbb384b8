package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/auth"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/services/bidding/helpers"
	"github.com/philippspitzley/auctioneer/utils"
)

//go:generate mockgen -destination=mock_marketplace_service.go -package=handler . MarketplaceServiceInterface

type MarketplaceServiceInterface interface {
	RegisterUser(ctx context.Context, in marketplace.NewUser) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	CreateUser(ctx context.Context, actor models.Identity, in marketplace.NewUser) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	ListUsers(ctx context.Context, q repository.UserQuery) ([]models.User, error)
	UpdateUser(ctx context.Context, actor models.Identity, userID string, upd marketplace.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, actor models.Identity, userID string) error

	CreateProduct(ctx context.Context, actor models.Identity, in marketplace.NewProduct) (models.Product, error)
	GetProduct(ctx context.Context, productID string) (models.Product, error)
	ListProducts(ctx context.Context, q repository.ProductQuery) ([]models.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, actor models.Identity, productID string, upd marketplace.ProductUpdate) (models.Product, error)
	DeleteProduct(ctx context.Context, actor models.Identity, productID string) error

	CreateAuction(ctx context.Context, actor models.Identity, in marketplace.NewAuction) (models.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, q repository.AuctionQuery) ([]models.Auction, error)
	UpdateAuction(ctx context.Context, actor models.Identity, auctionID string, upd marketplace.AuctionUpdate) (models.Auction, error)
	DeleteAuction(ctx context.Context, actor models.Identity, auctionID string) error
}

// TokenIssuer signs access tokens for authenticated users
type TokenIssuer interface {
	Issue(user models.User) (token string, expiresAt time.Time, err error)
}

type MarketplaceHandler struct {
	service MarketplaceServiceInterface
	tokens  TokenIssuer
}

func NewMarketplaceHandler(service MarketplaceServiceInterface, tokens TokenIssuer) *MarketplaceHandler {
	return &MarketplaceHandler{service: service, tokens: tokens}
}

func currentUser(c *gin.Context, handlerName string) (models.Identity, bool) {
	id, ok := auth.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, handlerName, biddingerrors.ErrUnauthorized, nil)
		return models.Identity{}, false
	}
	return id, true
}

// RegisterHandler handles POST /auth/register
func (h *MarketplaceHandler) RegisterHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), marketplace.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		helpers.RespondError(c, "RegisterHandler", err, map[string]any{"username": req.Username})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, NewUserResponse(user), "user registered successfully")
	helpers.LogSuccess("RegisterHandler", "user registered successfully", map[string]any{"user_id": user.UserID})
}

// LoginHandler handles POST /auth/login
func (h *MarketplaceHandler) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	user, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		helpers.RespondError(c, "LoginHandler", err, nil)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		helpers.RespondError(c, "LoginHandler", err, map[string]any{"user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: formatTime(expiresAt),
		User:      NewUserResponse(user),
	}, "login successful")
	helpers.LogSuccess("LoginHandler", "login successful", map[string]any{"user_id": user.UserID})
}
