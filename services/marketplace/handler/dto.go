package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1,max=64"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin user"`
}

type ProductRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

type CreateAuctionRequest struct {
	ProductID       string           `json:"product_id" binding:"required"`
	StartingPrice   decimal.Decimal  `json:"starting_price"`
	MinBid          *decimal.Decimal `json:"min_bid"`
	InstantBuyPrice *decimal.Decimal `json:"instant_buy_price"`
}

type UpdateAuctionRequest struct {
	StartingPrice   *decimal.Decimal `json:"starting_price"`
	MinBid          *decimal.Decimal `json:"min_bid"`
	InstantBuyPrice *decimal.Decimal `json:"instant_buy_price"`
	ClearInstantBuy bool             `json:"clear_instant_buy"`
}

type UserResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type ProductResponse struct {
	ProductID   string `json:"product_id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Sold        bool   `json:"sold"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (r CreateUserRequest) toNewUser() marketplace.NewUser {
	return marketplace.NewUser{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
		Role:     models.Role(r.Role),
	}
}

func (r UpdateUserRequest) toUpdate() marketplace.UserUpdate {
	upd := marketplace.UserUpdate{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
	}
	if r.Role != nil {
		role := models.Role(*r.Role)
		upd.Role = &role
	}
	return upd
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{
		UserID:    u.UserID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = NewUserResponse(u)
	}
	return out
}

func NewProductResponse(p models.Product) ProductResponse {
	return ProductResponse{
		ProductID:   p.ProductID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Sold:        p.Sold,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func NewProductResponses(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = NewProductResponse(p)
	}
	return out
}
