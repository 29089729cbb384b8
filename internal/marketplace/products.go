package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
	"github.com/sahilm/fuzzy"
)

type NewProduct struct {
	Name        string
	Description string
}

type ProductUpdate struct {
	Name        *string
	Description *string
}

func (s *MarketplaceService) CreateProduct(ctx context.Context, actor models.Identity, in NewProduct) (models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Product{}, fmt.Errorf("service: %w - empty product name", biddingerrors.ErrInvalidProduct)
	}
	if actor.UserID == "" {
		return models.Product{}, fmt.Errorf("service: %w", biddingerrors.ErrUnauthorized)
	}

	now := s.clock()
	product := models.Product{
		ProductID:   utils.GenerateID(),
		OwnerID:     actor.UserID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return models.Product{}, fmt.Errorf("service: failed to create product: %w", err)
	}
	return product, nil
}

func (s *MarketplaceService) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	if productID == "" {
		return models.Product{}, fmt.Errorf("service: %w - empty product ID", biddingerrors.ErrInvalidProduct)
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("service: failed to get product %s: %w", productID, err)
	}
	return p, nil
}

func (s *MarketplaceService) ListProducts(ctx context.Context, q repository.ProductQuery) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

// productSource implements fuzzy.Source over product names
type productSource []models.Product

func (p productSource) Len() int            { return len(p) }
func (p productSource) String(i int) string { return strings.ToLower(p[i].Name) }

// SearchProducts ranks products by how well their name fuzzily matches query
func (s *MarketplaceService) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("service: %w - empty search query", biddingerrors.ErrInvalidFilter)
	}
	if limit <= 0 || limit > repository.MaxLimit {
		limit = repository.DefaultLimit
	}

	var all productSource
	for offset := 0; ; offset += repository.MaxLimit {
		page, err := s.store.ListProducts(ctx, repository.ProductQuery{Offset: offset, Limit: repository.MaxLimit})
		if err != nil {
			if errors.Is(err, biddingerrors.ErrNoProducts) {
				break
			}
			return nil, fmt.Errorf("service: failed to search products: %w", err)
		}
		all = append(all, page...)
		if len(page) < repository.MaxLimit {
			break
		}
	}

	matches := fuzzy.FindFrom(query, all)
	if len(matches) == 0 {
		return nil, fmt.Errorf("service: %w matching %q", biddingerrors.ErrNoProducts, query)
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]models.Product, len(matches))
	for i, m := range matches {
		results[i] = all[m.Index]
	}
	return results, nil
}

func (s *MarketplaceService) UpdateProduct(ctx context.Context, actor models.Identity, productID string, upd ProductUpdate) (models.Product, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}
	if !actor.Owns(p.OwnerID) {
		return models.Product{}, fmt.Errorf("service: %w - cannot edit product %s", biddingerrors.ErrForbidden, productID)
	}
	if p.Sold {
		return models.Product{}, fmt.Errorf("service: %w - product %s", biddingerrors.ErrProductSold, productID)
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Product{}, fmt.Errorf("service: %w - empty product name", biddingerrors.ErrInvalidProduct)
		}
		p.Name = name
	}
	if upd.Description != nil {
		p.Description = strings.TrimSpace(*upd.Description)
	}
	p.UpdatedAt = s.clock()

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("service: failed to update product %s: %w", productID, err)
	}
	return p, nil
}

func (s *MarketplaceService) DeleteProduct(ctx context.Context, actor models.Identity, productID string) error {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !actor.Owns(p.OwnerID) {
		return fmt.Errorf("service: %w - cannot delete product %s", biddingerrors.ErrForbidden, productID)
	}

	open, err := s.store.HasOpenAuction(ctx, productID)
	if err != nil {
		return fmt.Errorf("service: failed to check auctions of product %s: %w", productID, err)
	}
	if open {
		return fmt.Errorf("service: %w - product %s cannot be deleted", biddingerrors.ErrProductListed, productID)
	}

	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("service: failed to delete product %s: %w", productID, err)
	}
	return nil
}
