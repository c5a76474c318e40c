package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

var (
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotPurchasable    = errors.New("selection is not purchasable")
)

// PurchaseError carries the verdict that rejected a cart mutation
type PurchaseError struct {
	Verdict variant.Verdict
}

func (e *PurchaseError) Error() string {
	if len(e.Verdict.Missing) > 0 {
		return fmt.Sprintf("%s: %s (%s)", ErrNotPurchasable, e.Verdict.Reason, strings.Join(e.Verdict.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrNotPurchasable, e.Verdict.Reason)
}

func (e *PurchaseError) Unwrap() error {
	return ErrNotPurchasable
}

type Cart struct {
	SessionID string           `json:"session_id"`
	Lines     []model.CartLine `json:"lines"`
	ItemCount int              `json:"item_count"`
	Total     decimal.Decimal  `json:"total"`
}

func newCart(sessionID string, lines []model.CartLine) *Cart {
	cart := &Cart{SessionID: sessionID, Lines: lines, Total: decimal.Zero}
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	for _, line := range lines {
		cart.ItemCount += line.Quantity
		cart.Total = cart.Total.Add(line.Subtotal())
	}
	return cart
}

type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*Cart, error)
	AddItem(ctx context.Context, sessionID, productID string, selected model.Attributes, quantity int) (*model.CartLine, error)
	// UpdateQuantity sets the quantity of a line; 0 removes it and returns nil
	UpdateQuantity(ctx context.Context, sessionID, lineKey string, quantity int) (*model.CartLine, error)
	RemoveItem(ctx context.Context, sessionID, lineKey string) error
	ClearCart(ctx context.Context, sessionID string) error
	// Sync replaces the local cart with the cart backend's state
	Sync(ctx context.Context, sessionID string) (*Cart, error)
}

type cartService struct {
	cartRepo   repository.CartRepository
	remoteRepo repository.RemoteCartRepository
	products   ProductService
}

// NewCartService keeps the cart locally only when remoteRepo is nil
func NewCartService(
	cartRepo repository.CartRepository,
	products ProductService,
	remoteRepo ...repository.RemoteCartRepository,
) CartService {
	var remote repository.RemoteCartRepository
	if len(remoteRepo) > 0 {
		remote = remoteRepo[0]
	}
	return &cartService{
		cartRepo:   cartRepo,
		remoteRepo: remote,
		products:   products,
	}
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	logger.Debug("Fetching session cart", map[string]interface{}{
		"session_id": sessionID,
	})

	lines, err := s.cartRepo.FindBySession(sessionID)
	if err != nil {
		logger.Error("Failed to fetch session cart", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}
	return newCart(sessionID, lines), nil
}

func (s *cartService) AddItem(ctx context.Context, sessionID, productID string, selected model.Attributes, quantity int) (*model.CartLine, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"session_id": sessionID,
		"product_id": productID,
		"quantity":   quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	sel := variant.NormalizeStrings(selected)
	verdict := variant.Evaluate(product, sel)
	if !verdict.Purchasable {
		logger.Warn("Cannot add to cart: selection not purchasable", map[string]interface{}{
			"session_id": sessionID,
			"product_id": product.ID,
			"reason":     string(verdict.Reason),
			"missing":    verdict.Missing,
		})
		return nil, &PurchaseError{Verdict: verdict}
	}

	key := variant.LineKey(product.ID, sel)
	existing, err := s.findLine(sessionID, key)
	if err != nil && !errors.Is(err, ErrCartLineNotFound) {
		return nil, err
	}

	requested := quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if requested > verdict.Stock {
		logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
			"session_id": sessionID,
			"line_key":   key,
			"requested":  requested,
			"available":  verdict.Stock,
		})
		return nil, ErrInsufficientStock
	}

	line := &model.CartLine{
		SessionID:  sessionID,
		LineKey:    key,
		ProductID:  product.ID,
		Attributes: sel,
		Quantity:   quantity,
		UnitPrice:  product.UnitPrice(verdict.Variant),
		VariantID:  variantID(verdict.Variant),
	}

	remoteQuantity := 0
	if s.remoteRepo != nil {
		remote, err := s.remoteRepo.Add(httpclient.WithScope(ctx, sessionID), repository.RemoteCartRequest{
			ProductID:  product.ID,
			Quantity:   quantity,
			Attributes: sel,
		})
		if err != nil {
			logger.Error("Cart backend rejected add", err, map[string]interface{}{
				"session_id": sessionID,
				"line_key":   key,
			})
			return nil, err
		}
		if r, ok := findRemote(remote, key); ok {
			line.RemoteID = r.ID
			remoteQuantity = r.Quantity
		} else {
			logger.Warn("Cart backend returned no line for key", map[string]interface{}{
				"line_key": key,
			})
		}
	}

	// merging in one statement keeps concurrent adds of the same line from
	// racing past the stock check or the unique line key
	merged, err := s.cartRepo.Merge(line, verdict.Stock)
	if err != nil {
		if errors.Is(err, repository.ErrQuantityLimit) {
			logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
				"session_id": sessionID,
				"line_key":   key,
				"available":  verdict.Stock,
			})
			return nil, ErrInsufficientStock
		}
		return nil, err
	}
	if remoteQuantity > 0 && remoteQuantity != merged.Quantity {
		// the backend's quantity is authoritative
		merged.Quantity = remoteQuantity
		if err := s.cartRepo.Update(merged); err != nil {
			return nil, err
		}
	}
	line = merged

	s.products.Invalidate(ctx, product.ID)

	logger.Info("Item added to cart", map[string]interface{}{
		"session_id": sessionID,
		"line_key":   key,
		"quantity":   line.Quantity,
	})
	return line, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID, lineKey string, quantity int) (*model.CartLine, error) {
	logger.Info("Updating cart line quantity", map[string]interface{}{
		"session_id": sessionID,
		"line_key":   lineKey,
		"quantity":   quantity,
	})

	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return nil, s.RemoveItem(ctx, sessionID, lineKey)
	}

	line, err := s.findLine(sessionID, lineKey)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	verdict := variant.Evaluate(product, line.Attributes)
	if !verdict.Purchasable {
		logger.Warn("Cannot update cart line: selection no longer purchasable", map[string]interface{}{
			"session_id": sessionID,
			"line_key":   lineKey,
			"reason":     string(verdict.Reason),
		})
		return nil, &PurchaseError{Verdict: verdict}
	}
	if quantity > verdict.Stock {
		logger.Warn("Cannot update cart line: insufficient stock", map[string]interface{}{
			"session_id": sessionID,
			"line_key":   lineKey,
			"requested":  quantity,
			"available":  verdict.Stock,
		})
		return nil, ErrInsufficientStock
	}

	line.Quantity = quantity
	line.UnitPrice = product.UnitPrice(verdict.Variant)
	line.VariantID = variantID(verdict.Variant)

	if s.remoteRepo != nil {
		remote, err := s.remoteRepo.Update(httpclient.WithScope(ctx, sessionID), repository.RemoteCartRequest{
			ProductID:  line.ProductID,
			Quantity:   quantity,
			Attributes: line.Attributes,
		})
		if err != nil {
			logger.Error("Cart backend rejected update", err, map[string]interface{}{
				"session_id": sessionID,
				"line_key":   lineKey,
			})
			return nil, err
		}
		applyRemote(line, remote)
	}

	if err := s.cartRepo.Update(line); err != nil {
		return nil, err
	}
	s.products.Invalidate(ctx, line.ProductID)
	return line, nil
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, lineKey string) error {
	logger.Info("Removing cart line", map[string]interface{}{
		"session_id": sessionID,
		"line_key":   lineKey,
	})

	line, err := s.findLine(sessionID, lineKey)
	if err != nil {
		return err
	}

	if s.remoteRepo != nil {
		_, err := s.remoteRepo.Remove(httpclient.WithScope(ctx, sessionID), repository.RemoteCartRequest{
			ProductID:  line.ProductID,
			Attributes: line.Attributes,
		})
		if err != nil && !errors.Is(err, httpclient.ErrNotFound) {
			logger.Error("Cart backend rejected remove", err, map[string]interface{}{
				"session_id": sessionID,
				"line_key":   lineKey,
			})
			return err
		}
	}

	if err := s.cartRepo.Delete(line.ID); err != nil {
		return err
	}
	s.products.Invalidate(ctx, line.ProductID)
	return nil
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) error {
	logger.Info("Clearing cart", map[string]interface{}{
		"session_id": sessionID,
	})

	lines, err := s.cartRepo.FindBySession(sessionID)
	if err != nil {
		return err
	}

	if s.remoteRepo != nil {
		scoped := httpclient.WithScope(ctx, sessionID)
		for _, line := range lines {
			_, err := s.remoteRepo.Remove(scoped, repository.RemoteCartRequest{
				ProductID:  line.ProductID,
				Attributes: line.Attributes,
			})
			if err != nil && !errors.Is(err, httpclient.ErrNotFound) {
				logger.Error("Cart backend rejected remove during clear", err, map[string]interface{}{
					"session_id": sessionID,
					"line_key":   line.LineKey,
				})
				return err
			}
		}
	}

	if err := s.cartRepo.DeleteBySession(sessionID); err != nil {
		return err
	}
	for _, id := range productIDs(lines) {
		s.products.Invalidate(ctx, id)
	}
	return nil
}

func (s *cartService) Sync(ctx context.Context, sessionID string) (*Cart, error) {
	if s.remoteRepo == nil {
		return s.GetCart(ctx, sessionID)
	}

	logger.Info("Syncing cart with backend", map[string]interface{}{
		"session_id": sessionID,
	})

	remote, err := s.remoteRepo.Fetch(httpclient.WithScope(ctx, sessionID))
	if err != nil {
		logger.Error("Failed to fetch cart from backend", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	local, err := s.cartRepo.FindBySession(sessionID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]model.CartLine, len(local))
	for _, line := range local {
		byKey[line.LineKey] = line
	}

	merged := make(map[string]int)
	var lines []model.CartLine
	for _, r := range remote {
		if r.Quantity <= 0 {
			continue
		}
		// the backend may split one selection over several lines
		if i, ok := merged[r.LineKey]; ok {
			lines[i].Quantity += r.Quantity
			continue
		}

		line := model.CartLine{
			SessionID:  sessionID,
			LineKey:    r.LineKey,
			ProductID:  r.ProductID,
			Attributes: r.Attributes,
			Quantity:   r.Quantity,
			RemoteID:   r.ID,
		}
		if prev, ok := byKey[r.LineKey]; ok {
			line.UnitPrice = prev.UnitPrice
			line.VariantID = prev.VariantID
			line.CreatedAt = prev.CreatedAt
		} else {
			s.priceLine(ctx, &line)
		}
		merged[r.LineKey] = len(lines)
		lines = append(lines, line)
	}

	if err := s.cartRepo.ReplaceSession(sessionID, lines); err != nil {
		return nil, err
	}

	logger.Info("Cart synced with backend", map[string]interface{}{
		"session_id": sessionID,
		"local":      len(local),
		"remote":     len(lines),
	})
	return s.GetCart(ctx, sessionID)
}

// priceLine fills the price of a line only the backend knew about. A product
// that cannot be loaded leaves the line unpriced.
func (s *cartService) priceLine(ctx context.Context, line *model.CartLine) {
	product, err := s.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		logger.Warn("Cannot price synced cart line", map[string]interface{}{
			"line_key": line.LineKey,
			"error":    err.Error(),
		})
		return
	}
	v := variant.Match(product, line.Attributes)
	line.UnitPrice = product.UnitPrice(v)
	line.VariantID = variantID(v)
}

func (s *cartService) findLine(sessionID, lineKey string) (*model.CartLine, error) {
	line, err := s.cartRepo.FindByLineKey(sessionID, lineKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartLineNotFound
		}
		return nil, err
	}
	return line, nil
}

// applyRemote takes the backend's quantity and line id for the line with the
// same key. Backend lines are keyed the same way as local ones.
func applyRemote(line *model.CartLine, remote []repository.RemoteCartLine) {
	r, ok := findRemote(remote, line.LineKey)
	if !ok {
		logger.Warn("Cart backend returned no line for key", map[string]interface{}{
			"line_key": line.LineKey,
		})
		return
	}
	line.RemoteID = r.ID
	if r.Quantity > 0 {
		line.Quantity = r.Quantity
	}
}

func findRemote(remote []repository.RemoteCartLine, lineKey string) (repository.RemoteCartLine, bool) {
	for _, r := range remote {
		if r.LineKey == lineKey {
			return r, true
		}
	}
	return repository.RemoteCartLine{}, false
}

func variantID(v *model.Variant) *string {
	if v == nil || v.ID == "" {
		return nil
	}
	id := v.ID
	return &id
}

func productIDs(lines []model.CartLine) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}
