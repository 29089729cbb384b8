package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	openAuctionIndex = "auctions_open_product_idx"

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repo is a PostgreSQL implementation of repository.Store
type Repo struct {
	db *bun.DB
}

var _ repository.Store = (*Repo)(nil)

// Open connects to PostgreSQL through the pgdriver connector
func Open(dsn string, slowQuery time.Duration) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(&queryLogger{slow: slowQuery})
	return db
}

// New wraps an open database handle
func New(db *bun.DB) *Repo {
	return &Repo{db: db}
}

// Close releases the underlying connection pool
func (r *Repo) Close() error {
	return r.db.Close()
}

// CreateSchema creates tables and indexes that do not exist yet
func (r *Repo) CreateSchema(ctx context.Context) error {
	tables := []struct {
		model any
		fks   []string
	}{
		{model: (*models.User)(nil)},
		{model: (*models.Product)(nil), fks: []string{
			`("owner_id") REFERENCES "users" ("id")`,
		}},
		{model: (*models.Auction)(nil), fks: []string{
			`("owner_id") REFERENCES "users" ("id")`,
			`("product_id") REFERENCES "products" ("id")`,
			`("buyer_id") REFERENCES "users" ("id")`,
		}},
		{model: (*models.Bid)(nil), fks: []string{
			`("auction_id") REFERENCES "auctions" ("id") ON DELETE CASCADE`,
			`("bidder_id") REFERENCES "users" ("id")`,
		}},
	}

	for _, t := range tables {
		q := r.db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS " + openAuctionIndex + " ON auctions(product_id) WHERE state IN ('setup', 'live');",
		"CREATE INDEX IF NOT EXISTS idx_auctions_state_end_time ON auctions(state, end_time);",
		"CREATE INDEX IF NOT EXISTS idx_bids_auction_amount ON bids(auction_id, amount DESC, created_at ASC, seq ASC);",
		"CREATE INDEX IF NOT EXISTS idx_bids_bidder_id ON bids(bidder_id);",
		"CREATE INDEX IF NOT EXISTS idx_products_owner_id ON products(owner_id);",
	}
	for _, idx := range indexes {
		if _, err := r.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// writeError converts integrity violations into a WriteError carrying the server's DETAIL text
func writeError(op string, err error) error {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) || !pgErr.IntegrityViolation() {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pgErr.Field('n') == openAuctionIndex {
		return fmt.Errorf("%s: %w", op, biddingerrors.ErrProductListed)
	}

	detail := pgErr.Field('D')
	var cause error
	switch pgErr.Field('C') {
	case codeUniqueViolation:
		cause = biddingerrors.ErrDuplicate
	case codeForeignKeyViolation:
		if strings.Contains(detail, "still referenced") {
			cause = biddingerrors.ErrStillReferenced
		} else {
			cause = biddingerrors.ErrMissingRef
		}
	default:
		cause = err
	}
	return &biddingerrors.WriteError{Op: op, Detail: detail, Err: cause}
}

func notFound(err error, op string, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// listQuery applies a ListQuery to a select; text columns use ILIKE, time columns "after"
func listQuery[T any, K ~string](q *bun.SelectQuery, lq repository.ListQuery[K], fields map[K]repository.Field[T], defaultOrder K) (*bun.SelectQuery, error) {
	search, order, err := repository.Resolve(lq, fields, defaultOrder)
	if err != nil {
		return nil, err
	}

	if search != nil {
		term, err := search.ParseTerm(lq.Term)
		if err != nil {
			return nil, err
		}
		col := bun.Ident(search.Column)
		switch search.Kind {
		case repository.KindText:
			q = q.Where("? ILIKE ?", col, "%"+escapeLike(term.(string))+"%")
		case repository.KindTime:
			q = q.Where("? > ?", col, term)
		case repository.KindState:
			q = q.Where("? = ?", col, string(term.(models.State)))
		default:
			q = q.Where("? = ?", col, term)
		}
	}

	if lq.Desc {
		q = q.OrderExpr("? DESC NULLS LAST", bun.Ident(order.Column))
	} else {
		q = q.OrderExpr("? ASC NULLS FIRST", bun.Ident(order.Column))
	}
	if order.Column != repository.KeyColumn {
		q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(repository.KeyColumn))
	}

	offset, limit := lq.Window()
	return q.Offset(offset).Limit(limit), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetAuction returns one auction by id
func (r *Repo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var a models.Auction
	err := r.db.NewSelect().Model(&a).Where("?TableAlias.id = ?", auctionID).Scan(ctx)
	if err != nil {
		return models.Auction{}, notFound(err, "get auction "+auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// ListAuctions returns the auctions matching q
func (r *Repo) ListAuctions(ctx context.Context, q repository.AuctionQuery) ([]models.Auction, error) {
	var auctions []models.Auction
	sel, err := listQuery(r.db.NewSelect().Model(&auctions), q, repository.AuctionFields, repository.AuctionFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("list auctions: %w", biddingerrors.ErrNoAuctions)
	}
	return auctions, nil
}

func (r *Repo) auctionExists(ctx context.Context, auctionID string) error {
	exists, err := r.db.NewSelect().Model((*models.Auction)(nil)).Where("?TableAlias.id = ?", auctionID).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return biddingerrors.ErrAuctionNotFound
	}
	return nil
}

// GetBidsByAuction returns all bids for an auction in arrival order
func (r *Repo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if err := r.auctionExists(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}

	var bids []models.Bid
	err := r.db.NewSelect().Model(&bids).Where("auction_id = ?", auctionID).Order("seq ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

func highestBid(ctx context.Context, db bun.IDB, auctionID string) (*models.Bid, error) {
	var bids []models.Bid
	err := db.NewSelect().Model(&bids).
		Where("auction_id = ?", auctionID).
		OrderExpr("amount DESC, created_at ASC, seq ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, nil
	}
	return &bids[0], nil
}

// GetHighestBid returns the standing bid of an auction; the earliest wins a tie
func (r *Repo) GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if err := r.auctionExists(ctx, auctionID); err != nil {
		return models.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, err)
	}

	hb, err := highestBid(ctx, r.db, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, err)
	}
	if hb == nil {
		return models.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return *hb, nil
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *Repo) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	var auctions []models.Auction
	sub := r.db.NewSelect().Model((*models.Bid)(nil)).Column("auction_id").Where("bidder_id = ?", bidderID)
	err := r.db.NewSelect().Model(&auctions).
		Where("?TableAlias.id IN (?)", sub).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, err)
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrNoAuctions)
	}
	return auctions, nil
}

// Transact locks the auction row with SELECT ... FOR UPDATE and writes what fn
// staged within the same database transaction.
func (r *Repo) Transact(ctx context.Context, auctionID string, fn repository.TxFunc) (models.Auction, error) {
	var out models.Auction
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var auction models.Auction
		err := tx.NewSelect().Model(&auction).Where("?TableAlias.id = ?", auctionID).For("UPDATE").Scan(ctx)
		if err != nil {
			return notFound(err, "lock auction "+auctionID, biddingerrors.ErrAuctionNotFound)
		}

		var product models.Product
		err = tx.NewSelect().Model(&product).Where("?TableAlias.id = ?", auction.ProductID).For("UPDATE").Scan(ctx)
		if err != nil {
			return notFound(err, "lock product "+auction.ProductID, biddingerrors.ErrProductNotFound)
		}

		hb, err := highestBid(ctx, tx, auctionID)
		if err != nil {
			return fmt.Errorf("highest bid for auction %s: %w", auctionID, err)
		}

		utx := repository.NewAuctionTx(auction, product, hb)
		if err := fn(utx); err != nil {
			return err
		}
		out = utx.Auction
		if !utx.Dirty() {
			return nil
		}

		bids := utx.NewBids()
		for _, b := range bids {
			if b.AuctionID != auctionID {
				return fmt.Errorf("transact auction %s: bid %s targets auction %s: %w",
					auctionID, b.BidID, b.AuctionID, biddingerrors.ErrInvalidBid)
			}
		}

		utx.Auction.AuctionID = auctionID
		if _, err := tx.NewUpdate().Model(&utx.Auction).WherePK().Exec(ctx); err != nil {
			return writeError("update auction", err)
		}
		if len(bids) > 0 {
			if _, err := tx.NewInsert().Model(&bids).Exec(ctx); err != nil {
				return writeError("insert bid", err)
			}
		}
		if utx.ProductSold() {
			_, err := tx.NewUpdate().Model((*models.Product)(nil)).
				Set("sold = ?", true).
				Set("updated_at = ?", utx.Auction.UpdatedAt).
				Where("id = ?", auction.ProductID).
				Exec(ctx)
			if err != nil {
				return writeError("mark product sold", err)
			}
		}
		out = utx.Auction
		return nil
	})
	if err != nil {
		return models.Auction{}, err
	}
	return out, nil
}

// GetUser returns one user by id
func (r *Repo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	if err := r.db.NewSelect().Model(&u).Where("?TableAlias.id = ?", userID).Scan(ctx); err != nil {
		return models.User{}, notFound(err, "get user "+userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// CreateUser stores a new user
func (r *Repo) CreateUser(ctx context.Context, user models.User) error {
	if _, err := r.db.NewInsert().Model(&user).Exec(ctx); err != nil {
		return writeError("create user", err)
	}
	return nil
}

// GetUserByEmail returns the user registered under email
func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := r.db.NewSelect().Model(&u).Where("lower(email) = lower(?)", email).Scan(ctx); err != nil {
		return models.User{}, notFound(err, "get user by email", biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// ListUsers returns the users matching q
func (r *Repo) ListUsers(ctx context.Context, q repository.UserQuery) ([]models.User, error) {
	var users []models.User
	sel, err := listQuery(r.db.NewSelect().Model(&users), q, repository.UserFields, repository.UserFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("list users: %w", biddingerrors.ErrNoUsers)
	}
	return users, nil
}

func affected(res sql.Result, op string, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return nil
}

// UpdateUser replaces a stored user
func (r *Repo) UpdateUser(ctx context.Context, user models.User) error {
	res, err := r.db.NewUpdate().Model(&user).WherePK().Exec(ctx)
	if err != nil {
		return writeError("update user", err)
	}
	return affected(res, "update user "+user.UserID, biddingerrors.ErrUserNotFound)
}

// DeleteUser removes a user that nothing refers to
func (r *Repo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.NewDelete().Model((*models.User)(nil)).Where("id = ?", userID).Exec(ctx)
	if err != nil {
		return writeError("delete user", err)
	}
	return affected(res, "delete user "+userID, biddingerrors.ErrUserNotFound)
}

// CreateProduct stores a new product
func (r *Repo) CreateProduct(ctx context.Context, product models.Product) error {
	if _, err := r.db.NewInsert().Model(&product).Exec(ctx); err != nil {
		return writeError("create product", err)
	}
	return nil
}

// GetProduct returns one product by id
func (r *Repo) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	var p models.Product
	if err := r.db.NewSelect().Model(&p).Where("?TableAlias.id = ?", productID).Scan(ctx); err != nil {
		return models.Product{}, notFound(err, "get product "+productID, biddingerrors.ErrProductNotFound)
	}
	return p, nil
}

// ListProducts returns the products matching q
func (r *Repo) ListProducts(ctx context.Context, q repository.ProductQuery) ([]models.Product, error) {
	var products []models.Product
	sel, err := listQuery(r.db.NewSelect().Model(&products), q, repository.ProductFields, repository.ProductFieldCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("list products: %w", biddingerrors.ErrNoProducts)
	}
	return products, nil
}

// UpdateProduct replaces a stored product
func (r *Repo) UpdateProduct(ctx context.Context, product models.Product) error {
	res, err := r.db.NewUpdate().Model(&product).WherePK().Exec(ctx)
	if err != nil {
		return writeError("update product", err)
	}
	return affected(res, "update product "+product.ProductID, biddingerrors.ErrProductNotFound)
}

// DeleteProduct removes a product no auction refers to
func (r *Repo) DeleteProduct(ctx context.Context, productID string) error {
	res, err := r.db.NewDelete().Model((*models.Product)(nil)).Where("id = ?", productID).Exec(ctx)
	if err != nil {
		return writeError("delete product", err)
	}
	return affected(res, "delete product "+productID, biddingerrors.ErrProductNotFound)
}

// CreateAuction stores a new auction; the partial unique index rejects a second open listing
func (r *Repo) CreateAuction(ctx context.Context, auction models.Auction) error {
	if _, err := r.db.NewInsert().Model(&auction).Exec(ctx); err != nil {
		return writeError("create auction for product "+auction.ProductID, err)
	}
	return nil
}

// DeleteAuction removes an auction; its bids go with it through ON DELETE CASCADE
func (r *Repo) DeleteAuction(ctx context.Context, auctionID string) error {
	res, err := r.db.NewDelete().Model((*models.Auction)(nil)).Where("id = ?", auctionID).Exec(ctx)
	if err != nil {
		return writeError("delete auction", err)
	}
	return affected(res, "delete auction "+auctionID, biddingerrors.ErrAuctionNotFound)
}

// HasOpenAuction reports whether a setup or live auction lists the product
func (r *Repo) HasOpenAuction(ctx context.Context, productID string) (bool, error) {
	exists, err := r.db.NewSelect().Model((*models.Auction)(nil)).
		Where("product_id = ?", productID).
		Where("state IN (?)", bun.In([]models.State{models.StateSetup, models.StateLive})).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check open auction for product %s: %w", productID, err)
	}
	return exists, nil
}

// queryLogger reports failed and slow queries through the application logger
type queryLogger struct {
	slow time.Duration
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := map[string]any{
		"operation": event.Operation(),
		"elapsed":   elapsed.String(),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		fields["error"] = event.Err.Error()
		fields["query"] = event.Query
		utils.Warn("database query failed", fields)
	case h.slow > 0 && elapsed > h.slow:
		fields["query"] = event.Query
		utils.Warn("slow database query", fields)
	default:
		utils.Debug("database query", fields)
	}
}
