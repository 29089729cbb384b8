package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Role is the authorization level of a user
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// State is the lifecycle state of an auction
type State string

const (
	StateSetup    State = "setup"
	StateLive     State = "live"
	StateFinished State = "finished"
)

// Valid reports whether s is a known auction state
func (s State) Valid() bool {
	switch s {
	case StateSetup, StateLive, StateFinished:
		return true
	}
	return false
}

// User represents a participant in the marketplace
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	UserID       string    `bun:"id,pk" json:"user_id"`
	Username     string    `bun:"username,notnull" json:"username"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Product represents something a user offers for sale
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p" json:"-"`

	ProductID   string    `bun:"id,pk" json:"product_id"`
	OwnerID     string    `bun:"owner_id,notnull" json:"owner_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	Sold        bool      `bun:"sold,notnull,default:false" json:"sold"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Auction represents a timed sale of one product
type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a" json:"-"`

	AuctionID       string              `bun:"id,pk" json:"auction_id"`
	OwnerID         string              `bun:"owner_id,notnull" json:"owner_id"`
	ProductID       string              `bun:"product_id,notnull" json:"product_id"`
	BuyerID         *string             `bun:"buyer_id" json:"buyer_id"`
	State           State               `bun:"state,notnull" json:"state"`
	StartTime       *time.Time          `bun:"start_time" json:"start_time"`
	EndTime         *time.Time          `bun:"end_time" json:"end_time"`
	StartingPrice   decimal.Decimal     `bun:"starting_price,type:numeric(12,2),notnull" json:"starting_price"`
	MinBid          decimal.Decimal     `bun:"min_bid,type:numeric(12,2),notnull" json:"min_bid"`
	InstantBuy      bool                `bun:"instant_buy,notnull,default:false" json:"instant_buy"`
	InstantBuyPrice decimal.NullDecimal `bun:"instant_buy_price,type:numeric(12,2)" json:"instant_buy_price"`
	SoldPrice       decimal.NullDecimal `bun:"sold_price,type:numeric(12,2)" json:"sold_price"`
	CreatedAt       time.Time           `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time           `bun:"updated_at,notnull" json:"updated_at"`
}

// Bid represents a user's offer on an auction
type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b" json:"-"`

	BidID     string          `bun:"id,pk" json:"bid_id"`
	AuctionID string          `bun:"auction_id,notnull" json:"auction_id"`
	BidderID  string          `bun:"bidder_id,notnull" json:"bidder_id"`
	Amount    decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
	// Seq is the arrival order assigned by the database; it breaks ties between equal bids placed at the same instant.
	Seq int64 `bun:"seq,autoincrement" json:"-"`
}

// Identity is the authenticated actor behind a request
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Owns reports whether the actor may manage a resource owned by ownerID
func (i Identity) Owns(ownerID string) bool {
	return i.IsAdmin || (i.UserID != "" && i.UserID == ownerID)
}
