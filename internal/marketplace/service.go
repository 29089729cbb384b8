package marketplace

import (
	"context"
	"time"

	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/shopspring/decimal"
)

// Registrar is told about every self-registered user
type Registrar interface {
	Registered(ctx context.Context, user models.User) error
}

type nopRegistrar struct{}

func (nopRegistrar) Registered(context.Context, models.User) error { return nil }

// MarketplaceService manages users, products and auction listings
type MarketplaceService struct {
	store         repository.Store
	registrar     Registrar
	now           func() time.Time
	defaultMinBid decimal.Decimal
}

type Option func(*MarketplaceService)

func WithRegistrar(r Registrar) Option {
	return func(s *MarketplaceService) {
		s.registrar = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *MarketplaceService) {
		s.now = now
	}
}

// WithDefaultMinBid sets the increment used when an auction is created without one
func WithDefaultMinBid(d decimal.Decimal) Option {
	return func(s *MarketplaceService) {
		if d.GreaterThanOrEqual(models.MinimumIncrement) {
			s.defaultMinBid = d
		}
	}
}

func NewMarketplaceService(store repository.Store, opts ...Option) *MarketplaceService {
	s := &MarketplaceService{
		store:         store,
		registrar:     nopRegistrar{},
		now:           time.Now,
		defaultMinBid: models.MinimumIncrement,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MarketplaceService) clock() time.Time {
	return s.now().UTC()
}
