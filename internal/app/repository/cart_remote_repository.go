package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

// RemoteCartRequest is the body of every cart backend mutation
type RemoteCartRequest struct {
	ProductID  string           `json:"productId"`
	Quantity   int              `json:"quantity"`
	Attributes model.Attributes `json:"attributes"`
}

// RemoteCartLine is one line of the authoritative cart, keyed the same way
// as local lines
type RemoteCartLine struct {
	ID         string
	ProductID  string
	Quantity   int
	Attributes model.Attributes
	LineKey    string
}

// RemoteCartRepository talks to the cart backend on behalf of the session
// carried by ctx. Every call returns the cart state after the call.
type RemoteCartRepository interface {
	Fetch(ctx context.Context) ([]RemoteCartLine, error)
	Add(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error)
	Update(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error)
	Remove(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error)
}

type remoteCartRepository struct {
	client *httpclient.Client
}

func NewRemoteCartRepository(client *httpclient.Client) RemoteCartRepository {
	return &remoteCartRepository{client: client}
}

func (r *remoteCartRepository) Fetch(ctx context.Context) ([]RemoteCartLine, error) {
	var (
		lines   []RemoteCartLine
		decoded bool
	)
	resp, err := r.client.Get(ctx, "/cart", httpclient.Validate(func(body []byte) error {
		l, err := decodeCart(body)
		lines, decoded = l, err == nil
		return err
	}))
	if err != nil {
		return nil, err
	}
	if decoded {
		return lines, nil
	}
	return decodeCart(resp.Body)
}

func (r *remoteCartRepository) Add(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error) {
	return r.mutate(ctx, "add", req)
}

func (r *remoteCartRepository) Update(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error) {
	return r.mutate(ctx, "update", req)
}

func (r *remoteCartRepository) Remove(ctx context.Context, req RemoteCartRequest) ([]RemoteCartLine, error) {
	return r.mutate(ctx, "remove", req)
}

func (r *remoteCartRepository) mutate(ctx context.Context, op string, req RemoteCartRequest) ([]RemoteCartLine, error) {
	logger.Debug("Sending cart mutation upstream", map[string]interface{}{
		"op":         op,
		"scope":      httpclient.ScopeFrom(ctx),
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
	})

	if req.Attributes == nil {
		req.Attributes = model.Attributes{}
	}

	var (
		resp *httpclient.Response
		err  error
	)
	switch op {
	case "add":
		resp, err = r.client.Post(ctx, "/cart/add", req)
	case "update":
		resp, err = r.client.Put(ctx, "/cart/update", req)
	default:
		resp, err = r.client.Delete(ctx, "/cart/remove", req)
	}
	if err != nil {
		return nil, err
	}
	return decodeCart(resp.Body)
}

type wireCartItem struct {
	ID         string          `json:"id"`
	MongoID    string          `json:"_id"`
	ProductID  wireRef         `json:"productId"`
	Product    wireRef         `json:"product"`
	Quantity   flexInt         `json:"quantity"`
	Attributes json.RawMessage `json:"attributes"`
}

func decodeCart(body []byte) ([]RemoteCartLine, error) {
	raw, err := unwrap(body, "cart", "data")
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}

	var items []wireCartItem
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &items)
	} else {
		var cart struct {
			Items []wireCartItem `json:"items"`
		}
		err = json.Unmarshal(raw, &cart)
		items = cart.Items
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cart: %v", httpclient.ErrMalformedPayload, err)
	}

	lines := make([]RemoteCartLine, 0, len(items))
	for i, item := range items {
		productID := firstNonEmpty(string(item.ProductID), string(item.Product))
		if productID == "" {
			return nil, fmt.Errorf("%w: cart item %d has no product id", httpclient.ErrMalformedPayload, i)
		}
		attrs, err := variant.DecodeAttributes(item.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%w: cart item %d: %v", httpclient.ErrMalformedPayload, i, err)
		}
		lines = append(lines, RemoteCartLine{
			ID:         firstNonEmpty(item.ID, item.MongoID),
			ProductID:  productID,
			Quantity:   int(item.Quantity),
			Attributes: attrs,
			LineKey:    variant.LineKey(productID, attrs),
		})
	}
	return lines, nil
}
