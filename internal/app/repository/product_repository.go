package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

const defaultExploreLimit = 20

type ExploreQuery struct {
	Limit    int
	Offset   int
	Category string
}

// ProductRepository reads the catalog from the upstream commerce API
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	Explore(ctx context.Context, query ExploreQuery) ([]model.Product, error)
	// Invalidate drops cached upstream reads of one product
	Invalidate(ctx context.Context, id string)
}

type productRepository struct {
	client *httpclient.Client
}

func NewProductRepository(client *httpclient.Client) ProductRepository {
	return &productRepository{client: client}
}

func productPath(id string) string {
	return "/products/" + url.PathEscape(id)
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	logger.Debug("Fetching product from upstream", map[string]interface{}{
		"product_id": id,
	})

	// a rejected payload is never cached, so the next call goes upstream again
	var product *model.Product
	resp, err := r.client.Get(ctx, productPath(id), httpclient.Public(), httpclient.Validate(func(body []byte) error {
		p, err := parseProduct(body)
		product = p
		return err
	}))
	if err != nil {
		if errors.Is(err, httpclient.ErrMalformedPayload) {
			logger.Warn("Upstream product payload rejected", map[string]interface{}{
				"product_id": id,
				"error":      err.Error(),
			})
		}
		return nil, err
	}
	if product == nil {
		if product, err = parseProduct(resp.Body); err != nil {
			return nil, err
		}
	}

	logger.Debug("Product fetched from upstream", map[string]interface{}{
		"product_id": product.ID,
		"variants":   len(product.Variants),
		"from_cache": resp.FromCache,
	})
	return product, nil
}

func (r *productRepository) Explore(ctx context.Context, query ExploreQuery) ([]model.Product, error) {
	if query.Limit <= 0 {
		query.Limit = defaultExploreLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(query.Limit))
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Category != "" {
		params.Set("category", query.Category)
	}

	logger.Debug("Fetching explore listing from upstream", map[string]interface{}{
		"limit":    query.Limit,
		"offset":   query.Offset,
		"category": query.Category,
	})

	var items []json.RawMessage
	resp, err := r.client.Get(ctx, "/products/explore", httpclient.Public(), httpclient.WithQuery(params),
		httpclient.Validate(func(body []byte) error {
			list, err := parseListing(body)
			items = list
			return err
		}))
	if err != nil {
		return nil, err
	}
	if items == nil {
		if items, err = parseListing(resp.Body); err != nil {
			return nil, err
		}
	}

	products := make([]model.Product, 0, len(items))
	for i, item := range items {
		p, err := decodeProduct(item)
		if err != nil {
			logger.Warn("Skipping malformed explore item", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		products = append(products, *p)
	}

	logger.Debug("Explore listing fetched from upstream", map[string]interface{}{
		"count":      len(products),
		"skipped":    len(items) - len(products),
		"from_cache": resp.FromCache,
	})
	return products, nil
}

func (r *productRepository) Invalidate(ctx context.Context, id string) {
	removed := r.client.Invalidate(ctx, productPath(id))
	logger.Debug("Upstream product reads invalidated", map[string]interface{}{
		"product_id": id,
		"removed":    removed,
	})
}

type wireProduct struct {
	ID            string           `json:"id"`
	MongoID       string           `json:"_id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Stock         flexInt          `json:"stock"`
	IsActive      *bool            `json:"isActive"`
	Images        []string         `json:"images"`
	Attributes    json.RawMessage  `json:"attributes"`
	Variants      []wireVariant    `json:"variants"`
}

type wireVariant struct {
	ID            string           `json:"id"`
	MongoID       string           `json:"_id"`
	SKU           string           `json:"sku"`
	Attributes    json.RawMessage  `json:"attributes"`
	Stock         flexInt          `json:"stock"`
	IsActive      *bool            `json:"isActive"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
}

type wireAttributeDefinition struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Label       string   `json:"label"`
	Required    bool     `json:"required"`
	Options     []string `json:"options"`
	Values      []string `json:"values"`
}

func parseListing(body []byte) ([]json.RawMessage, error) {
	raw, err := unwrap(body, "products", "data", "items")
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: explore listing: %v", httpclient.ErrMalformedPayload, err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

func parseProduct(body []byte) (*model.Product, error) {
	raw, err := unwrap(body, "product", "data")
	if err != nil {
		return nil, err
	}
	return decodeProduct(raw)
}

// decodeProduct maps an upstream product payload onto the model. A payload
// without an identifier is rejected with ErrMalformedPayload.
func decodeProduct(raw json.RawMessage) (*model.Product, error) {
	var w wireProduct
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", httpclient.ErrMalformedPayload, err)
	}

	id := firstNonEmpty(w.ID, w.MongoID)
	if id == "" {
		return nil, fmt.Errorf("%w: product has no id", httpclient.ErrMalformedPayload)
	}

	defs, err := decodeDefinitions(w.Attributes)
	if err != nil {
		return nil, fmt.Errorf("%w: product %s attributes: %v", httpclient.ErrMalformedPayload, id, err)
	}

	p := &model.Product{
		ID:            id,
		Name:          strings.TrimSpace(w.Name),
		Description:   w.Description,
		Price:         w.Price,
		DiscountPrice: w.DiscountPrice,
		Stock:         int(w.Stock),
		IsActive:      w.IsActive == nil || *w.IsActive,
		Images:        w.Images,
		Attributes:    defs,
	}
	if p.Images == nil {
		p.Images = []string{}
	}

	for i, wv := range w.Variants {
		attrs, err := variant.DecodeAttributes(wv.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s variant %d: %v", httpclient.ErrMalformedPayload, id, i, err)
		}
		p.Variants = append(p.Variants, model.Variant{
			ID:            firstNonEmpty(wv.ID, wv.MongoID, wv.SKU),
			SKU:           wv.SKU,
			Attributes:    attrs,
			Stock:         int(wv.Stock),
			IsActive:      wv.IsActive == nil || *wv.IsActive,
			Price:         wv.Price,
			DiscountPrice: wv.DiscountPrice,
		})
	}
	return p, nil
}

// decodeDefinitions accepts a definition list or an object mapping each
// attribute name to its options
func decodeDefinitions(raw json.RawMessage) ([]model.AttributeDefinition, error) {
	if isNull(raw) {
		return nil, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var byName map[string][]string
		if err := json.Unmarshal(raw, &byName); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)

		defs := make([]model.AttributeDefinition, 0, len(names))
		for _, name := range names {
			defs = append(defs, model.AttributeDefinition{
				Name:    variant.CanonicalName(name),
				Label:   strings.TrimSpace(name),
				Options: byName[name],
			})
		}
		return defs, nil
	}

	var list []wireAttributeDefinition
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	defs := make([]model.AttributeDefinition, 0, len(list))
	for _, wd := range list {
		name := variant.CanonicalName(wd.Name)
		if name == "" {
			continue
		}
		options := wd.Options
		if len(options) == 0 {
			options = wd.Values
		}
		defs = append(defs, model.AttributeDefinition{
			Name:     name,
			Label:    firstNonEmpty(wd.DisplayName, wd.Label),
			Required: wd.Required,
			Options:  options,
		})
	}
	return defs, nil
}
