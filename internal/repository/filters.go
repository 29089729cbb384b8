package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// FieldKind selects how a search term is parsed and compared
type FieldKind int

const (
	// KindText matches a case-insensitive substring
	KindText FieldKind = iota
	// KindExact matches an identifier exactly
	KindExact
	// KindState matches one of the auction states
	KindState
	// KindTime matches values strictly after the given instant
	KindTime
	// KindMoney matches an exact decimal amount
	KindMoney
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// Field is one searchable and sortable column of an entity
type Field[T any] struct {
	Column string
	Kind   FieldKind

	text  func(T) string
	time  func(T) *time.Time
	money func(T) *decimal.Decimal
}

func textField[T any](column string, kind FieldKind, fn func(T) string) Field[T] {
	return Field[T]{Column: column, Kind: kind, text: fn}
}

func timeField[T any](column string, fn func(T) *time.Time) Field[T] {
	return Field[T]{Column: column, Kind: KindTime, time: fn}
}

func moneyField[T any](column string, fn func(T) *decimal.Decimal) Field[T] {
	return Field[T]{Column: column, Kind: KindMoney, money: fn}
}

// ParseTerm converts a raw search term into the typed value the field compares against
func (f Field[T]) ParseTerm(term string) (any, error) {
	switch f.Kind {
	case KindState:
		s := models.State(term)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: for column '%s' only these values are allowed: [setup live finished]",
				biddingerrors.ErrInvalidFilter, f.Column)
		}
		return s, nil
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, term); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%w: search term '%s' is not valid for column '%s', use YYYY-MM-DD HH:MM:SS",
			biddingerrors.ErrInvalidFilter, term, f.Column)
	case KindMoney:
		d, err := decimal.NewFromString(term)
		if err != nil {
			return nil, fmt.Errorf("%w: search term '%s' is not a valid amount for column '%s'",
				biddingerrors.ErrInvalidFilter, term, f.Column)
		}
		return d, nil
	default:
		return term, nil
	}
}

// Matcher returns a predicate selecting the entities that match term
func (f Field[T]) Matcher(term string) (func(T) bool, error) {
	parsed, err := f.ParseTerm(term)
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case KindText:
		needle := strings.ToLower(term)
		return func(v T) bool { return strings.Contains(strings.ToLower(f.text(v)), needle) }, nil
	case KindState:
		want := string(parsed.(models.State))
		return func(v T) bool { return f.text(v) == want }, nil
	case KindTime:
		after := parsed.(time.Time)
		return func(v T) bool {
			t := f.time(v)
			return t != nil && t.After(after)
		}, nil
	case KindMoney:
		want := parsed.(decimal.Decimal)
		return func(v T) bool {
			d := f.money(v)
			return d != nil && d.Equal(want)
		}, nil
	default:
		return func(v T) bool { return f.text(v) == term }, nil
	}
}

// Compare orders two entities by this field; null values sort first
func (f Field[T]) Compare(a, b T) int {
	switch f.Kind {
	case KindTime:
		ta, tb := f.time(a), f.time(b)
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return -1
		case tb == nil:
			return 1
		}
		return ta.Compare(*tb)
	case KindMoney:
		da, db := f.money(a), f.money(b)
		switch {
		case da == nil && db == nil:
			return 0
		case da == nil:
			return -1
		case db == nil:
			return 1
		}
		return da.Cmp(*db)
	default:
		return strings.Compare(f.text(a), f.text(b))
	}
}

// KeyColumn is the unique column every listing is finally ordered by
const KeyColumn = "id"

// ListQuery describes a filtered, sorted and paginated listing
type ListQuery[K ~string] struct {
	SearchBy K
	Term     string
	OrderBy  K
	Desc     bool
	Offset   int
	Limit    int
}

// Window returns the effective offset and limit
func (q ListQuery[K]) Window() (int, int) {
	offset, limit := q.Offset, q.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

// Resolve looks up the search and order fields of q
func Resolve[T any, K ~string](q ListQuery[K], fields map[K]Field[T], defaultOrder K) (search *Field[T], order Field[T], err error) {
	if q.Term != "" {
		key := q.SearchBy
		if key == "" {
			key = defaultOrder
		}
		f, ok := fields[key]
		if !ok {
			return nil, Field[T]{}, fmt.Errorf("%w: unknown search column '%s'", biddingerrors.ErrInvalidFilter, key)
		}
		search = &f
	}

	orderKey := q.OrderBy
	if orderKey == "" {
		orderKey = defaultOrder
	}
	order, ok := fields[orderKey]
	if !ok {
		return nil, Field[T]{}, fmt.Errorf("%w: unknown order column '%s'", biddingerrors.ErrInvalidFilter, orderKey)
	}
	return search, order, nil
}

// applyQuery filters, sorts and paginates items in memory
func applyQuery[T any, K ~string](items []T, q ListQuery[K], fields map[K]Field[T], defaultOrder K) ([]T, error) {
	search, order, err := Resolve(q, fields, defaultOrder)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	if search != nil {
		match, err := search.Matcher(q.Term)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if match(it) {
				out = append(out, it)
			}
		}
	} else {
		out = append(out, items...)
	}

	// ties fall back to the ascending primary key so offset pages never overlap
	key, hasKey := fields[K(KeyColumn)]
	sort.SliceStable(out, func(i, j int) bool {
		if c := order.Compare(out[i], out[j]); c != 0 {
			if q.Desc {
				return c > 0
			}
			return c < 0
		}
		return hasKey && key.Compare(out[i], out[j]) < 0
	})

	offset, limit := q.Window()
	if offset >= len(out) {
		return out[:0], nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// AuctionField is a searchable auction column
type AuctionField string

const (
	AuctionFieldID              AuctionField = "id"
	AuctionFieldOwnerID         AuctionField = "owner_id"
	AuctionFieldProductID       AuctionField = "product_id"
	AuctionFieldState           AuctionField = "state"
	AuctionFieldStartTime       AuctionField = "start_time"
	AuctionFieldEndTime         AuctionField = "end_time"
	AuctionFieldStartingPrice   AuctionField = "starting_price"
	AuctionFieldMinBid          AuctionField = "min_bid"
	AuctionFieldInstantBuyPrice AuctionField = "instant_buy_price"
	AuctionFieldBuyerID         AuctionField = "buyer_id"
	AuctionFieldSoldPrice       AuctionField = "sold_price"
	AuctionFieldCreatedAt       AuctionField = "created_at"
	AuctionFieldUpdatedAt       AuctionField = "updated_at"
)

// AuctionQuery lists auctions
type AuctionQuery = ListQuery[AuctionField]

func nullMoney(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

// AuctionFields maps every auction filter key to its typed column
var AuctionFields = map[AuctionField]Field[models.Auction]{
	AuctionFieldID:        textField("id", KindExact, func(a models.Auction) string { return a.AuctionID }),
	AuctionFieldOwnerID:   textField("owner_id", KindExact, func(a models.Auction) string { return a.OwnerID }),
	AuctionFieldProductID: textField("product_id", KindExact, func(a models.Auction) string { return a.ProductID }),
	AuctionFieldState:     textField("state", KindState, func(a models.Auction) string { return string(a.State) }),
	AuctionFieldBuyerID: textField("buyer_id", KindExact, func(a models.Auction) string {
		if a.BuyerID == nil {
			return ""
		}
		return *a.BuyerID
	}),
	AuctionFieldStartTime:       timeField("start_time", func(a models.Auction) *time.Time { return a.StartTime }),
	AuctionFieldEndTime:         timeField("end_time", func(a models.Auction) *time.Time { return a.EndTime }),
	AuctionFieldCreatedAt:       timeField("created_at", func(a models.Auction) *time.Time { return ptrTime(a.CreatedAt) }),
	AuctionFieldUpdatedAt:       timeField("updated_at", func(a models.Auction) *time.Time { return ptrTime(a.UpdatedAt) }),
	AuctionFieldStartingPrice:   moneyField("starting_price", func(a models.Auction) *decimal.Decimal { return &a.StartingPrice }),
	AuctionFieldMinBid:          moneyField("min_bid", func(a models.Auction) *decimal.Decimal { return &a.MinBid }),
	AuctionFieldInstantBuyPrice: moneyField("instant_buy_price", func(a models.Auction) *decimal.Decimal { return nullMoney(a.InstantBuyPrice) }),
	AuctionFieldSoldPrice:       moneyField("sold_price", func(a models.Auction) *decimal.Decimal { return nullMoney(a.SoldPrice) }),
}

// ProductField is a searchable product column
type ProductField string

const (
	ProductFieldID          ProductField = "id"
	ProductFieldOwnerID     ProductField = "owner_id"
	ProductFieldName        ProductField = "name"
	ProductFieldDescription ProductField = "description"
	ProductFieldCreatedAt   ProductField = "created_at"
	ProductFieldUpdatedAt   ProductField = "updated_at"
)

// ProductQuery lists products
type ProductQuery = ListQuery[ProductField]

// ProductFields maps every product filter key to its typed column
var ProductFields = map[ProductField]Field[models.Product]{
	ProductFieldID:          textField("id", KindExact, func(p models.Product) string { return p.ProductID }),
	ProductFieldOwnerID:     textField("owner_id", KindExact, func(p models.Product) string { return p.OwnerID }),
	ProductFieldName:        textField("name", KindText, func(p models.Product) string { return p.Name }),
	ProductFieldDescription: textField("description", KindText, func(p models.Product) string { return p.Description }),
	ProductFieldCreatedAt:   timeField("created_at", func(p models.Product) *time.Time { return ptrTime(p.CreatedAt) }),
	ProductFieldUpdatedAt:   timeField("updated_at", func(p models.Product) *time.Time { return ptrTime(p.UpdatedAt) }),
}

// UserField is a searchable user column
type UserField string

const (
	UserFieldID        UserField = "id"
	UserFieldUsername  UserField = "username"
	UserFieldEmail     UserField = "email"
	UserFieldCreatedAt UserField = "created_at"
	UserFieldUpdatedAt UserField = "updated_at"
)

// UserQuery lists users
type UserQuery = ListQuery[UserField]

// UserFields maps every user filter key to its typed column
var UserFields = map[UserField]Field[models.User]{
	UserFieldID:        textField("id", KindExact, func(u models.User) string { return u.UserID }),
	UserFieldUsername:  textField("username", KindText, func(u models.User) string { return u.Username }),
	UserFieldEmail:     textField("email", KindText, func(u models.User) string { return u.Email }),
	UserFieldCreatedAt: timeField("created_at", func(u models.User) *time.Time { return ptrTime(u.CreatedAt) }),
	UserFieldUpdatedAt: timeField("updated_at", func(u models.User) *time.Time { return ptrTime(u.UpdatedAt) }),
}
