package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
)

// MemoryRepo is a concurrency-safe in-memory implementation of Store
type MemoryRepo struct {
	mu             sync.RWMutex
	users          map[string]models.User
	products       map[string]models.Product
	auctions       map[string]models.Auction
	bids           map[string][]models.Bid // key: auctionID -> value: bids in arrival order
	bidderAuctions map[string][]string     // key: userID -> value: auctionIDs the user has bid on
}

var _ Store = (*MemoryRepo)(nil)

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:          make(map[string]models.User),
		products:       make(map[string]models.Product),
		auctions:       make(map[string]models.Auction),
		bids:           make(map[string][]models.Bid),
		bidderAuctions: make(map[string][]string),
	}
}

func cloneAuction(a models.Auction) models.Auction {
	if a.BuyerID != nil {
		v := *a.BuyerID
		a.BuyerID = &v
	}
	if a.StartTime != nil {
		v := *a.StartTime
		a.StartTime = &v
	}
	if a.EndTime != nil {
		v := *a.EndTime
		a.EndTime = &v
	}
	return a
}

func missingRef(column, value, table string) *biddingerrors.WriteError {
	return &biddingerrors.WriteError{
		Op:     "insert",
		Detail: fmt.Sprintf("Key (%s)=(%s) is not present in table \"%s\".", column, value, table),
		Err:    biddingerrors.ErrMissingRef,
	}
}

func stillReferenced(id, table string) *biddingerrors.WriteError {
	return &biddingerrors.WriteError{
		Op:     "delete",
		Detail: fmt.Sprintf("Key (id)=(%s) is still referenced from table \"%s\".", id, table),
		Err:    biddingerrors.ErrStillReferenced,
	}
}

// GetAuction returns one auction by id
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return cloneAuction(a), nil
}

// ListAuctions returns the auctions matching q
func (r *MemoryRepo) ListAuctions(_ context.Context, q AuctionQuery) ([]models.Auction, error) {
	r.mu.RLock()
	all := make([]models.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		all = append(all, cloneAuction(a))
	}
	r.mu.RUnlock()

	out, err := applyQuery(all, q, AuctionFields, AuctionFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list auctions: %w", biddingerrors.ErrNoAuctions)
	}
	return out, nil
}

// GetBidsByAuction returns all bids for an auction in arrival order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

func (r *MemoryRepo) highestBidLocked(auctionID string) (models.Bid, bool) {
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return models.Bid{}, false
	}

	highest := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(highest.Amount) || (b.Amount.Equal(highest.Amount) && b.CreatedAt.Before(highest.CreatedAt)) {
			highest = b
		}
	}
	return highest, true
}

// GetHighestBid returns the standing bid of an auction; the earliest wins a tie
func (r *MemoryRepo) GetHighestBid(_ context.Context, auctionID string) (models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return models.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	highest, ok := r.highestBidLocked(auctionID)
	if !ok {
		return models.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return highest, nil
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, bidderID string) ([]models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bidderAuctions[bidderID]
	auctions := make([]models.Auction, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.auctions[id]; ok {
			auctions = append(auctions, cloneAuction(a))
		}
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrNoAuctions)
	}
	return auctions, nil
}

// Transact runs fn while holding the write lock, then applies what it staged
func (r *MemoryRepo) Transact(ctx context.Context, auctionID string, fn TxFunc) (models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Auction{}, err
	}

	a, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("transact auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	var highest *models.Bid
	if hb, ok := r.highestBidLocked(auctionID); ok {
		highest = &hb
	}
	tx := NewAuctionTx(cloneAuction(a), r.products[a.ProductID], highest)

	if err := fn(tx); err != nil {
		return models.Auction{}, err
	}
	if !tx.Dirty() {
		return tx.Auction, nil
	}

	for _, b := range tx.NewBids() {
		if b.AuctionID != auctionID {
			return models.Auction{}, fmt.Errorf("transact auction %s: bid %s targets auction %s: %w",
				auctionID, b.BidID, b.AuctionID, biddingerrors.ErrInvalidBid)
		}
	}

	tx.Auction.AuctionID = auctionID
	r.auctions[auctionID] = cloneAuction(tx.Auction)
	for _, b := range tx.NewBids() {
		r.bids[auctionID] = append(r.bids[auctionID], b)
		r.trackBidderLocked(b.BidderID, auctionID)
	}
	if tx.ProductSold() {
		if p, ok := r.products[a.ProductID]; ok {
			p.Sold = true
			p.UpdatedAt = tx.Auction.UpdatedAt
			r.products[a.ProductID] = p
		}
	}
	return cloneAuction(tx.Auction), nil
}

func (r *MemoryRepo) trackBidderLocked(bidderID, auctionID string) {
	for _, id := range r.bidderAuctions[bidderID] {
		if id == auctionID {
			return
		}
	}
	r.bidderAuctions[bidderID] = append(r.bidderAuctions[bidderID], auctionID)
}

// GetUser returns one user by id
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

func (r *MemoryRepo) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// CreateUser stores a new user; emails are unique
func (r *MemoryRepo) CreateUser(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok {
		return &biddingerrors.WriteError{Op: "create user", Detail: fmt.Sprintf("Key (id)=(%s) already exists.", user.UserID), Err: biddingerrors.ErrDuplicate}
	}
	if r.emailTakenLocked(user.Email, "") {
		return &biddingerrors.WriteError{Op: "create user", Detail: fmt.Sprintf("Key (email)=(%s) already exists.", user.Email), Err: biddingerrors.ErrDuplicate}
	}
	r.users[user.UserID] = user
	return nil
}

// GetUserByEmail returns the user registered under email
func (r *MemoryRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("get user by email: %w", biddingerrors.ErrUserNotFound)
}

// ListUsers returns the users matching q
func (r *MemoryRepo) ListUsers(_ context.Context, q UserQuery) ([]models.User, error) {
	r.mu.RLock()
	all := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	r.mu.RUnlock()

	out, err := applyQuery(all, q, UserFields, UserFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list users: %w", biddingerrors.ErrNoUsers)
	}
	return out, nil
}

// UpdateUser replaces a stored user
func (r *MemoryRepo) UpdateUser(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; !ok {
		return fmt.Errorf("update user %s: %w", user.UserID, biddingerrors.ErrUserNotFound)
	}
	if r.emailTakenLocked(user.Email, user.UserID) {
		return &biddingerrors.WriteError{Op: "update user", Detail: fmt.Sprintf("Key (email)=(%s) already exists.", user.Email), Err: biddingerrors.ErrDuplicate}
	}
	r.users[user.UserID] = user
	return nil
}

// DeleteUser removes a user that owns nothing
func (r *MemoryRepo) DeleteUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return fmt.Errorf("delete user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	for _, p := range r.products {
		if p.OwnerID == userID {
			return stillReferenced(userID, "products")
		}
	}
	for _, a := range r.auctions {
		if a.OwnerID == userID || (a.BuyerID != nil && *a.BuyerID == userID) {
			return stillReferenced(userID, "auctions")
		}
	}
	if len(r.bidderAuctions[userID]) > 0 {
		return stillReferenced(userID, "bids")
	}
	delete(r.users, userID)
	return nil
}

// CreateProduct stores a new product for an existing owner
func (r *MemoryRepo) CreateProduct(_ context.Context, product models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[product.OwnerID]; !ok {
		return missingRef("owner_id", product.OwnerID, "users")
	}
	if _, ok := r.products[product.ProductID]; ok {
		return &biddingerrors.WriteError{Op: "create product", Detail: fmt.Sprintf("Key (id)=(%s) already exists.", product.ProductID), Err: biddingerrors.ErrDuplicate}
	}
	r.products[product.ProductID] = product
	return nil
}

// GetProduct returns one product by id
func (r *MemoryRepo) GetProduct(_ context.Context, productID string) (models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return models.Product{}, fmt.Errorf("get product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	return p, nil
}

// ListProducts returns the products matching q
func (r *MemoryRepo) ListProducts(_ context.Context, q ProductQuery) ([]models.Product, error) {
	r.mu.RLock()
	all := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, p)
	}
	r.mu.RUnlock()

	out, err := applyQuery(all, q, ProductFields, ProductFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list products: %w", biddingerrors.ErrNoProducts)
	}
	return out, nil
}

// UpdateProduct replaces a stored product
func (r *MemoryRepo) UpdateProduct(_ context.Context, product models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[product.ProductID]; !ok {
		return fmt.Errorf("update product %s: %w", product.ProductID, biddingerrors.ErrProductNotFound)
	}
	r.products[product.ProductID] = product
	return nil
}

// DeleteProduct removes a product no auction refers to
func (r *MemoryRepo) DeleteProduct(_ context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[productID]; !ok {
		return fmt.Errorf("delete product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	for _, a := range r.auctions {
		if a.ProductID == productID {
			return stillReferenced(productID, "auctions")
		}
	}
	delete(r.products, productID)
	return nil
}

// CreateAuction stores a new auction for an existing owner and product
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[auction.OwnerID]; !ok {
		return missingRef("owner_id", auction.OwnerID, "users")
	}
	if _, ok := r.products[auction.ProductID]; !ok {
		return missingRef("product_id", auction.ProductID, "products")
	}
	if _, ok := r.auctions[auction.AuctionID]; ok {
		return &biddingerrors.WriteError{Op: "create auction", Detail: fmt.Sprintf("Key (id)=(%s) already exists.", auction.AuctionID), Err: biddingerrors.ErrDuplicate}
	}
	if r.hasOpenAuctionLocked(auction.ProductID) {
		return fmt.Errorf("create auction for product %s: %w", auction.ProductID, biddingerrors.ErrProductListed)
	}
	r.auctions[auction.AuctionID] = cloneAuction(auction)
	return nil
}

// DeleteAuction removes an auction together with its bids
func (r *MemoryRepo) DeleteAuction(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	for _, b := range r.bids[auctionID] {
		ids := r.bidderAuctions[b.BidderID]
		for i, id := range ids {
			if id == auctionID {
				r.bidderAuctions[b.BidderID] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	}
	delete(r.bids, auctionID)
	delete(r.auctions, auctionID)
	return nil
}

func (r *MemoryRepo) hasOpenAuctionLocked(productID string) bool {
	for _, a := range r.auctions {
		if a.ProductID == productID && a.IsOpen() {
			return true
		}
	}
	return false
}

// HasOpenAuction reports whether a setup or live auction lists the product
func (r *MemoryRepo) HasOpenAuction(_ context.Context, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasOpenAuctionLocked(productID), nil
}
