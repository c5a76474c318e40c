package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/app/repository"
	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/cache"
	"github.com/TPAIN22/nubian-storefront/internal/db"
	"github.com/TPAIN22/nubian-storefront/internal/errors"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/middleware"
)

const shirtJSON = `{
	"_id": "p1",
	"name": "Shirt",
	"price": 100,
	"isActive": true,
	"attributes": [
		{"name": "size", "required": true},
		{"name": "color", "displayName": "Colour", "required": true}
	],
	"variants": [
		{"_id": "v1", "attributes": {"size": "M", "color": "red"}, "stock": 0, "isActive": true},
		{"_id": "v2", "attributes": {"size": "M", "color": "blue"}, "stock": 5, "isActive": true, "price": 120}
	]
}`

const mugJSON = `{"_id": "p2", "name": "Mug", "price": 10, "discountPrice": 8, "stock": 3, "isActive": true}`

// catalog is the upstream the controllers talk to in tests
type catalog struct {
	calls atomic.Int32
}

func (cat *catalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cat.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/products/p1":
		_, _ = w.Write([]byte(`{"product": ` + shirtJSON + `}`))
	case "/products/p2":
		_, _ = w.Write([]byte(mugJSON))
	case "/products/explore":
		_, _ = w.Write([]byte(`{"products": [` + mugJSON + `]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "not found"}`))
	}
}

type testApp struct {
	router   *gin.Engine
	catalog  *catalog
	products service.ProductService
}

func setupControllerTest(t *testing.T) *testApp {
	t.Helper()

	upstream := &catalog{}
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	client, err := httpclient.NewClient(httpclient.Config{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Retry:   httpclient.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, Multiplier: 2},
	}, nil, nil)
	require.NoError(t, err)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	productRepo := repository.NewProductRepository(client)
	productService := service.NewProductService(productRepo, service.NewProductCache(productRepo, cache.Options{TTL: time.Minute}))
	cartService := service.NewCartService(repository.NewCartRepository(testDB), productService)
	sessionService := service.NewSessionService(client.Credentials(), client.Cache())

	productController := NewProductController(productService)
	cartController := NewCartController(cartService)
	sessionController := NewSessionController(sessionService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.LoggingMiddleware())

	api := router.Group("/api/v1", middleware.RequireSession())
	api.GET("/products/explore", productController.Explore)
	api.GET("/products/:id", productController.GetProduct)
	api.POST("/products/:id/resolve", productController.Resolve)
	api.POST("/products/:id/prefetch", productController.Prefetch)
	api.DELETE("/products/:id/cache", productController.InvalidateCache)

	api.GET("/cart", cartController.GetCart)
	api.POST("/cart/items", cartController.AddToCart)
	api.PUT("/cart/items/:key", cartController.UpdateCartItem)
	api.DELETE("/cart/items/:key", cartController.RemoveFromCart)
	api.DELETE("/cart", cartController.ClearCart)
	api.POST("/cart/sync", cartController.SyncCart)

	api.GET("/session", sessionController.GetSession)
	api.PUT("/session/credential", sessionController.SetCredential)
	api.DELETE("/session/credential", sessionController.ClearCredential)

	return &testApp{router: router, catalog: upstream, products: productService}
}

func (app *testApp) do(t *testing.T, sessionID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(middleware.SessionIDHeader, sessionID)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProductController_GetProduct(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodGet, "/api/v1/products/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["cached"])
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "p1", product["id"])
	assert.Len(t, product["variants"], 2)

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/products/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["cached"])
	assert.Equal(t, int32(1), app.catalog.calls.Load())
}

func TestProductController_GetProduct_NotFound(t *testing.T) {
	app := setupControllerTest(t)

	w := app.do(t, uuid.NewString(), http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ProductNotFound, decodeBody(t, w)["error"])
}

func TestProductController_RequiresSession(t *testing.T) {
	app := setupControllerTest(t)

	w := app.do(t, "", http.MethodGet, "/api/v1/products/p1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.SessionRequired, decodeBody(t, w)["error"])
	assert.Equal(t, int32(0), app.catalog.calls.Load())
}

func TestProductController_Explore(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodGet, "/api/v1/products/explore?limit=10&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	_, state, _ := app.products.Peek("p2")
	assert.Equal(t, cache.StatePartial, state)

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/products/explore?limit=-1&offset=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeBody(t, w)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "limit")
	assert.Contains(t, fields, "offset")
}

func TestProductController_Resolve(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	tests := []struct {
		name        string
		body        interface{}
		wantReason  string
		wantVariant string
		wantKey     string
	}{
		{
			name:       "no body",
			body:       nil,
			wantReason: "MISSING_REQUIRED",
			wantKey:    "p1",
		},
		{
			name:        "object selection",
			body:        `{"attributes": {"Size": "M", "colour": "blue"}}`,
			wantReason:  "OK",
			wantVariant: "v2",
			wantKey:     "p1|color:blue|size:M",
		},
		{
			name:        "pair list selection",
			body:        `{"attributes": [{"name": "size", "value": "M"}, {"name": "color", "value": "red"}]}`,
			wantReason:  "OUT_OF_STOCK",
			wantVariant: "v1",
			wantKey:     "p1|color:red|size:M",
		},
		{
			name:       "unknown combination",
			body:       `{"attributes": {"size": "XL", "color": "red"}}`,
			wantReason: "NO_MATCHING_VARIANT",
			wantKey:    "p1|color:red|size:XL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, sessionID, http.MethodPost, "/api/v1/products/p1/resolve", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			body := decodeBody(t, w)
			verdict := body["verdict"].(map[string]interface{})
			assert.Equal(t, tt.wantReason, verdict["reason"])
			assert.Equal(t, tt.wantKey, body["line_key"])
			if tt.wantVariant != "" {
				assert.Equal(t, tt.wantVariant, body["variant"].(map[string]interface{})["id"])
			} else {
				assert.Nil(t, body["variant"])
			}
		})
	}
}

func TestProductController_Resolve_BadAttributes(t *testing.T) {
	app := setupControllerTest(t)

	w := app.do(t, uuid.NewString(), http.MethodPost, "/api/v1/products/p1/resolve", `{"attributes": "size=M"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ValidationInvalidAttributes, decodeBody(t, w)["error"])
}

func TestProductController_PrefetchAndInvalidate(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodPost, "/api/v1/products/p2/prefetch", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		_, state, _ := app.products.Peek("p2")
		return state == cache.StateFull
	}, time.Second, 5*time.Millisecond)

	w = app.do(t, sessionID, http.MethodDelete, "/api/v1/products/p2/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, state, _ := app.products.Peek("p2")
	assert.Equal(t, cache.StateAbsent, state)

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/products/p2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["cached"])
	assert.True(t, strings.Contains(w.Body.String(), `"name":"Mug"`))
}
