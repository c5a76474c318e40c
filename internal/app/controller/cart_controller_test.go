package controller

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/errors"
)

func TestCartController_AddAndGet(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items", map[string]interface{}{
		"product_id": "p1",
		"attributes": map[string]string{"Size": "M", "Color": "blue"},
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	line := decodeBody(t, w)["line"].(map[string]interface{})
	assert.Equal(t, "p1|color:blue|size:M", line["line_key"])
	assert.Equal(t, "v2", line["variant_id"])
	assert.Equal(t, "120", line["unit_price"])

	// same selection in list form merges into the line
	w = app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items",
		`{"product_id": "p1", "attributes": [{"name": "color", "value": "blue"}, {"name": "size", "value": "M"}], "quantity": 1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items", map[string]interface{}{
		"product_id": "p2",
		"quantity":   1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeBody(t, w)["cart"].(map[string]interface{})
	assert.Len(t, cart["lines"], 2)
	assert.Equal(t, float64(4), cart["item_count"])
	assert.Equal(t, "368", cart["total"])

	// carts are per session
	w = app.do(t, uuid.NewString(), http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["cart"].(map[string]interface{})["lines"])
}

func TestCartController_AddRejected(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{
			name:       "missing color",
			body:       map[string]interface{}{"product_id": "p1", "attributes": map[string]string{"size": "M"}, "quantity": 1},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   errors.VariantMissingRequired,
			wantReason: "MISSING_REQUIRED",
		},
		{
			name:       "out of stock",
			body:       map[string]interface{}{"product_id": "p1", "attributes": map[string]string{"size": "M", "color": "red"}, "quantity": 1},
			wantStatus: http.StatusConflict,
			wantCode:   errors.VariantOutOfStock,
			wantReason: "OUT_OF_STOCK",
		},
		{
			name:       "more than stock",
			body:       map[string]interface{}{"product_id": "p2", "quantity": 4},
			wantStatus: http.StatusConflict,
			wantCode:   errors.CartInsufficientStock,
		},
		{
			name:       "unknown product",
			body:       map[string]interface{}{"product_id": "nope", "quantity": 1},
			wantStatus: http.StatusNotFound,
			wantCode:   errors.ProductNotFound,
		},
		{
			name:       "zero quantity",
			body:       map[string]interface{}{"product_id": "p2", "quantity": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ValidationInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			body := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, body["reason"])
			}
		})
	}
}

func TestCartController_MissingRequiredListsDisplayNames(t *testing.T) {
	app := setupControllerTest(t)

	w := app.do(t, uuid.NewString(), http.MethodPost, "/api/v1/cart/items", map[string]interface{}{
		"product_id": "p1",
		"quantity":   1,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []interface{}{"size", "Colour"}, decodeBody(t, w)["missing"])
}

func TestCartController_UpdateAndRemove(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items", map[string]interface{}{
		"product_id": "p1",
		"attributes": map[string]string{"size": "M", "color": "blue"},
		"quantity":   1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	itemPath := "/api/v1/cart/items/" + url.PathEscape("p1|color:blue|size:M")

	w = app.do(t, sessionID, http.MethodPut, itemPath, map[string]interface{}{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(3), decodeBody(t, w)["line"].(map[string]interface{})["quantity"])

	w = app.do(t, sessionID, http.MethodPut, itemPath, map[string]interface{}{"quantity": 9})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, sessionID, http.MethodPut, itemPath, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, sessionID, http.MethodPut, itemPath, map[string]interface{}{"quantity": 0})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, sessionID, http.MethodDelete, itemPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CartLineNotFound, decodeBody(t, w)["error"])
}

func TestCartController_ClearAndSync(t *testing.T) {
	app := setupControllerTest(t)
	sessionID := uuid.NewString()

	w := app.do(t, sessionID, http.MethodPost, "/api/v1/cart/items", map[string]interface{}{
		"product_id": "p2",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// without a cart backend sync returns the local cart
	w = app.do(t, sessionID, http.MethodPost, "/api/v1/cart/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["cart"].(map[string]interface{})["lines"], 1)

	w = app.do(t, sessionID, http.MethodDelete, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, sessionID, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["cart"].(map[string]interface{})["lines"])
}
