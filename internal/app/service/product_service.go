package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/cache"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProductID = errors.New("invalid product id")
)

// ProductCache is the entity cache of full product payloads
type ProductCache = cache.EntityCache[*model.Product]

// NewProductCache builds the product entity cache on top of repo. Every full
// product stored is checked for duplicate variant combinations.
func NewProductCache(repo repository.ProductRepository, opts cache.Options) *ProductCache {
	if opts.Name == "" {
		opts.Name = "products"
	}
	return cache.NewEntityCache[*model.Product](func(ctx context.Context, id string) (*model.Product, error) {
		p, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, httpclient.ErrNotFound) {
				return nil, fmt.Errorf("%w: %w", ErrProductNotFound, err)
			}
			return nil, err
		}
		reportDuplicates(p)
		return p, nil
	}, opts)
}

func reportDuplicates(p *model.Product) {
	for _, ids := range variant.DuplicateCombinations(p) {
		logger.Warn("Product has variants with identical attributes, first one wins", map[string]interface{}{
			"product_id":  p.ID,
			"variant_ids": ids,
		})
	}
}

// Resolution is everything a product screen needs for the current selection
type Resolution struct {
	ProductID string                `json:"product_id"`
	Selected  model.Attributes      `json:"selected"`
	LineKey   string                `json:"line_key"`
	Variant   *model.Variant        `json:"variant,omitempty"`
	Verdict   variant.Verdict       `json:"verdict"`
	UnitPrice decimal.Decimal       `json:"unit_price"`
	Options   []variant.OptionGroup `json:"options"`
}

type ProductService interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	// Peek returns whatever is cached for id, partial or expired included
	Peek(id string) (*model.Product, cache.State, bool)
	Explore(ctx context.Context, query repository.ExploreQuery) ([]model.Product, error)
	Prefetch(id string)
	Resolve(ctx context.Context, id string, selected model.Attributes) (*Resolution, error)
	Invalidate(ctx context.Context, id string)
	PruneExpired() int
}

type productService struct {
	productRepo repository.ProductRepository
	products    *ProductCache
}

func NewProductService(productRepo repository.ProductRepository, products *ProductCache) ProductService {
	return &productService{
		productRepo: productRepo,
		products:    products,
	}
}

func (s *productService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidProductID
	}

	logger.Debug("Fetching product", map[string]interface{}{
		"product_id": id,
		"state":      s.products.State(id).String(),
	})

	p, err := s.products.GetOrFetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return p, nil
}

func (s *productService) Peek(id string) (*model.Product, cache.State, bool) {
	return s.products.Peek(strings.TrimSpace(id))
}

func (s *productService) Explore(ctx context.Context, query repository.ExploreQuery) ([]model.Product, error) {
	products, err := s.productRepo.Explore(ctx, query)
	if err != nil {
		logger.Error("Failed to fetch explore listing", err, map[string]interface{}{
			"limit":  query.Limit,
			"offset": query.Offset,
		})
		return nil, err
	}

	seeded := 0
	for i := range products {
		p := products[i]
		if s.products.SeedPartial(p.ID, &p) {
			seeded++
		}
	}

	logger.Info("Explore listing fetched", map[string]interface{}{
		"count":  len(products),
		"seeded": seeded,
	})
	return products, nil
}

func (s *productService) Prefetch(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	logger.Debug("Prefetching product", map[string]interface{}{
		"product_id": id,
	})
	s.products.Prefetch(id)
}

func (s *productService) Resolve(ctx context.Context, id string, selected model.Attributes) (*Resolution, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	sel := variant.NormalizeStrings(selected)
	verdict := variant.Evaluate(p, sel)

	res := &Resolution{
		ProductID: p.ID,
		Selected:  sel,
		LineKey:   variant.LineKey(p.ID, sel),
		Variant:   verdict.Variant,
		Verdict:   verdict,
		UnitPrice: p.UnitPrice(verdict.Variant),
		Options:   variant.SelectableOptions(p, sel),
	}

	logger.Debug("Selection resolved", map[string]interface{}{
		"product_id":  p.ID,
		"line_key":    res.LineKey,
		"reason":      string(verdict.Reason),
		"purchasable": verdict.Purchasable,
	})
	return res, nil
}

func (s *productService) Invalidate(ctx context.Context, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.products.Invalidate(id)
	s.productRepo.Invalidate(ctx, id)

	logger.Debug("Product invalidated", map[string]interface{}{
		"product_id": id,
	})
}

func (s *productService) PruneExpired() int {
	return s.products.PruneExpired()
}
