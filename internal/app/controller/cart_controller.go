package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/errors"
	"github.com/TPAIN22/nubian-storefront/internal/middleware"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID  string          `json:"product_id" binding:"required"`
	Attributes json.RawMessage `json:"attributes"`
	Quantity   int             `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartRequest struct {
	// 0 removes the line
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

// sessionOrAbort returns the session id RequireSession stored
func sessionOrAbort(c *gin.Context) (string, bool) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		errors.RespondWithError(c, http.StatusBadRequest, errors.SessionRequired, "The X-Session-ID header is required")
		return "", false
	}
	return sessionID, true
}

// GetCart returns the session cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		errors.Respond(c, err, "cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// AddToCart adds a selection to the cart, merging with an equal selection
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithValidationError(c, map[string]string{
			"body": err.Error(),
		})
		return
	}

	selected, err := variant.DecodeAttributes(req.Attributes)
	if err != nil {
		errors.Respond(c, err, "selection")
		return
	}

	line, err := ctrl.cartService.AddItem(c.Request.Context(), sessionID, req.ProductID, selected, req.Quantity)
	if err != nil {
		log.Warn("Add to cart rejected", map[string]interface{}{
			"product_id": req.ProductID,
			"error":      err.Error(),
		})
		errors.Respond(c, err, "cart line")
		return
	}

	c.JSON(http.StatusOK, gin.H{"line": line})
}

// UpdateCartItem sets the quantity of a line
// PUT /api/v1/cart/items/:key
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid cart update request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithValidationError(c, map[string]string{
			"quantity": "must be zero or a positive integer",
		})
		return
	}

	line, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), sessionID, c.Param("key"), *req.Quantity)
	if err != nil {
		errors.Respond(c, err, "cart line")
		return
	}
	if line == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"line": line})
}

// RemoveFromCart removes a line
// DELETE /api/v1/cart/items/:key
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveItem(c.Request.Context(), sessionID, c.Param("key")); err != nil {
		errors.Respond(c, err, "cart line")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCart empties the session cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.ClearCart(c.Request.Context(), sessionID); err != nil {
		errors.Respond(c, err, "cart")
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncCart replaces the local cart with the cart backend's copy
// POST /api/v1/cart/sync
func (ctrl *CartController) SyncCart(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.Sync(c.Request.Context(), sessionID)
	if err != nil {
		errors.Respond(c, err, "cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}
