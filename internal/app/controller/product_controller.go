package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/cache"
	"github.com/TPAIN22/nubian-storefront/internal/errors"
	"github.com/TPAIN22/nubian-storefront/internal/middleware"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

// ResolveRequest carries a selection in either wire shape: an object
// {"Size": "M"} or a list [{"name": "Size", "value": "M"}]
type ResolveRequest struct {
	Attributes json.RawMessage `json:"attributes"`
}

// Explore returns a listing page and seeds the cache with its entries
// GET /api/v1/products/explore
func (ctrl *ProductController) Explore(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	query := repository.ExploreQuery{Category: c.Query("category")}
	fields := map[string]string{}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fields["limit"] = "must be a positive integer"
		}
		query.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["offset"] = "must be a non-negative integer"
		}
		query.Offset = n
	}
	if len(fields) > 0 {
		log.Warn("Invalid explore query", map[string]interface{}{
			"query": c.Request.URL.RawQuery,
		})
		errors.RespondWithValidationError(c, fields)
		return
	}

	products, err := ctrl.productService.Explore(c.Request.Context(), query)
	if err != nil {
		log.Error("Failed to fetch explore listing", err, nil)
		errors.Respond(c, err, "listing")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns the full product
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	_, state, _ := ctrl.productService.Peek(id)
	cached := state == cache.StateFull

	product, err := ctrl.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		log.Warn("Failed to fetch product", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		errors.Respond(c, err, "product")
		return
	}

	log.Debug("Product served", map[string]interface{}{
		"product_id": product.ID,
		"cached":     cached,
	})

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"cached":  cached,
	})
}

// Resolve evaluates a selection against the product
// POST /api/v1/products/:id/resolve
func (ctrl *ProductController) Resolve(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	var req ResolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("Invalid resolve request", map[string]interface{}{
				"product_id": id,
				"error":      err.Error(),
			})
			errors.BadRequest(c, errors.ValidationInvalidInput, "The request body must be JSON")
			return
		}
	}

	selected, err := variant.DecodeAttributes(req.Attributes)
	if err != nil {
		errors.Respond(c, err, "selection")
		return
	}

	resolution, err := ctrl.productService.Resolve(c.Request.Context(), id, selected)
	if err != nil {
		errors.Respond(c, err, "product")
		return
	}

	c.JSON(http.StatusOK, resolution)
}

// Prefetch warms the cache for a product the client is about to open
// POST /api/v1/products/:id/prefetch
func (ctrl *ProductController) Prefetch(c *gin.Context) {
	ctrl.productService.Prefetch(c.Param("id"))
	c.Status(http.StatusAccepted)
}

// InvalidateCache forgets the cached product and its cached reads
// DELETE /api/v1/products/:id/cache
func (ctrl *ProductController) InvalidateCache(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	ctrl.productService.Invalidate(c.Request.Context(), id)

	log.Info("Product cache invalidated", map[string]interface{}{
		"product_id": id,
	})
	c.Status(http.StatusNoContent)
}
