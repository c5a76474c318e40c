package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TPAIN22/nubian-storefront/config"
	"github.com/TPAIN22/nubian-storefront/internal/app/controller"
	"github.com/TPAIN22/nubian-storefront/internal/middleware"
)

type Router struct {
	productController *controller.ProductController
	cartController    *controller.CartController
	sessionController *controller.SessionController
	config            *config.Config
}

func NewRouter(
	productController *controller.ProductController,
	cartController *controller.CartController,
	sessionController *controller.SessionController,
	cfg *config.Config,
) *Router {
	return &Router{
		productController: productController,
		cartController:    cartController,
		sessionController: sessionController,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Nubian storefront is running",
		})
	})

	v1 := router.Group("/api/v1", middleware.RequireSession())
	{
		products := v1.Group("/products")
		{
			products.GET("/explore", r.productController.Explore)
			products.GET("/:id", r.productController.GetProduct)
			products.POST("/:id/resolve", r.productController.Resolve)
			products.POST("/:id/prefetch", r.productController.Prefetch)
			products.DELETE("/:id/cache", r.productController.InvalidateCache)
		}

		cart := v1.Group("/cart")
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/items", r.cartController.AddToCart)
			cart.PUT("/items/:key", r.cartController.UpdateCartItem)
			cart.DELETE("/items/:key", r.cartController.RemoveFromCart)
			cart.POST("/sync", r.cartController.SyncCart)
		}

		session := v1.Group("/session")
		{
			session.GET("", r.sessionController.GetSession)
			session.PUT("/credential", r.sessionController.SetCredential)
			session.DELETE("/credential", r.sessionController.ClearCredential)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Session-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
