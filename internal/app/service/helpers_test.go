package service

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/cache"
	"github.com/TPAIN22/nubian-storefront/internal/db"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
)

// fakeProductRepo serves products from memory and counts upstream reads
type fakeProductRepo struct {
	mu          sync.Mutex
	products    map[string]model.Product
	listing     []model.Product
	finds       atomic.Int32
	invalidated []string
}

func newFakeProductRepo(products ...model.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]model.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) set(p model.Product) {
	r.mu.Lock()
	r.products[p.ID] = p
	r.mu.Unlock()
}

func (r *fakeProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	r.finds.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, httpclient.ErrNotFound
	}
	return &p, nil
}

func (r *fakeProductRepo) Explore(ctx context.Context, query repository.ExploreQuery) ([]model.Product, error) {
	return r.listing, nil
}

func (r *fakeProductRepo) Invalidate(ctx context.Context, id string) {
	r.mu.Lock()
	r.invalidated = append(r.invalidated, id)
	r.mu.Unlock()
}

// fakeRemoteCart is an in-memory cart backend keyed by line key
type fakeRemoteCart struct {
	mu     sync.Mutex
	lines  map[string]repository.RemoteCartLine
	order  []string
	scopes []string
	err    error
	nextID int
}

func newFakeRemoteCart() *fakeRemoteCart {
	return &fakeRemoteCart{lines: make(map[string]repository.RemoteCartLine)}
}

func (f *fakeRemoteCart) snapshot() []repository.RemoteCartLine {
	out := make([]repository.RemoteCartLine, 0, len(f.order))
	for _, key := range f.order {
		if line, ok := f.lines[key]; ok {
			out = append(out, line)
		}
	}
	return out
}

func (f *fakeRemoteCart) record(ctx context.Context) error {
	f.scopes = append(f.scopes, httpclient.ScopeFrom(ctx))
	return f.err
}

func (f *fakeRemoteCart) Fetch(ctx context.Context) ([]repository.RemoteCartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

func (f *fakeRemoteCart) Add(ctx context.Context, req repository.RemoteCartRequest) ([]repository.RemoteCartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	f.put(req, func(prev int) int { return prev + req.Quantity })
	return f.snapshot(), nil
}

func (f *fakeRemoteCart) Update(ctx context.Context, req repository.RemoteCartRequest) ([]repository.RemoteCartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	f.put(req, func(int) int { return req.Quantity })
	return f.snapshot(), nil
}

func (f *fakeRemoteCart) Remove(ctx context.Context, req repository.RemoteCartRequest) ([]repository.RemoteCartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	delete(f.lines, keyOf(req))
	return f.snapshot(), nil
}

func (f *fakeRemoteCart) put(req repository.RemoteCartRequest, qty func(prev int) int) {
	key := keyOf(req)
	line, ok := f.lines[key]
	if !ok {
		f.nextID++
		line = repository.RemoteCartLine{
			ID:         "remote-" + strconv.Itoa(f.nextID),
			ProductID:  req.ProductID,
			Attributes: req.Attributes,
			LineKey:    key,
		}
		f.order = append(f.order, key)
	}
	line.Quantity = qty(line.Quantity)
	f.lines[key] = line
}

func keyOf(req repository.RemoteCartRequest) string {
	return variant.LineKey(req.ProductID, req.Attributes)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

// shirt has a red M out of stock and a blue M with five units
func shirt() model.Product {
	return model.Product{
		ID:       "p1",
		Name:     "Shirt",
		Price:    price("100"),
		IsActive: true,
		Attributes: []model.AttributeDefinition{
			{Name: "size", Required: true},
			{Name: "color", Required: true},
		},
		Variants: []model.Variant{
			{ID: "v1", Attributes: model.Attributes{"size": "M", "color": "red"}, Stock: 0, IsActive: true},
			{ID: "v2", Attributes: model.Attributes{"size": "M", "color": "blue"}, Stock: 5, IsActive: true, Price: pricePtr("120")},
		},
	}
}

func mug() model.Product {
	return model.Product{
		ID:            "p2",
		Name:          "Mug",
		Price:         price("10"),
		DiscountPrice: pricePtr("8"),
		Stock:         3,
		IsActive:      true,
	}
}

func setupProductServiceTest(t *testing.T, products ...model.Product) (ProductService, *fakeProductRepo) {
	t.Helper()
	repo := newFakeProductRepo(products...)
	productCache := NewProductCache(repo, cache.Options{TTL: time.Minute})
	return NewProductService(repo, productCache), repo
}

func setupCartServiceTest(t *testing.T, remote repository.RemoteCartRepository) (CartService, repository.CartRepository, *fakeProductRepo) {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	products, productRepo := setupProductServiceTest(t, shirt(), mug())
	cartRepo := repository.NewCartRepository(testDB)

	if remote == nil {
		return NewCartService(cartRepo, products), cartRepo, productRepo
	}
	return NewCartService(cartRepo, products, remote), cartRepo, productRepo
}
