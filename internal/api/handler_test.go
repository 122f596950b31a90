package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	if id == 1 {
		return &models.Product{ID: 1, Name: "Pride Tee", PriceCents: 2000, Currency: "USD", Sizes: "S, M, L"}, nil
	}
	return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
}

type stubCartRepo struct {
	mu     sync.Mutex
	carts  map[string][]models.CartItem
	addErr error
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{carts: make(map[string][]models.CartItem)}
}

func (r *stubCartRepo) LoadCart(_ context.Context, sessionID string) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CartItem(nil), r.carts[sessionID]...), nil
}

func (r *stubCartRepo) AddLine(_ context.Context, sessionID string, item models.CartItem, _ time.Duration) error {
	if r.addErr != nil {
		return r.addErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.carts[sessionID]
	for i := range items {
		if items[i].ID == item.ID && items[i].Size == item.Size {
			items[i].Quantity++
			return nil
		}
	}
	item.Quantity = 1
	r.carts[sessionID] = append(items, item)
	return nil
}

func (r *stubCartRepo) SaveCart(_ context.Context, sessionID string, items []models.CartItem, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[sessionID] = append([]models.CartItem(nil), items...)
	return nil
}

func (r *stubCartRepo) DeleteCart(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func cartRouter(repo *stubCartRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	carts := service.NewCartService(repo, nil, stubCatalog{}, nil, time.Hour)
	h := NewHandler(carts, nil, nil)

	router := gin.New()
	router.POST("/api/v1/carts/:session/items", h.addItem)
	return router
}

func postItem(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/sess_1/items",
		bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddItemStatusCodes(t *testing.T) {
	router := cartRouter(newStubCartRepo())

	w := postItem(t, router, `{"product_id": 1, "size": "M"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown product and unknown size are the shopper's 404.
	w = postItem(t, router, `{"product_id": 99}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postItem(t, router, `{"product_id": 1, "size": "XXL"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postItem(t, router, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddItemRepositoryFailureIsNot404(t *testing.T) {
	repo := newStubCartRepo()
	repo.addErr = errors.New("redis: connection refused")
	router := cartRouter(repo)

	w := postItem(t, router, `{"product_id": 1, "size": "M"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body["error"], "connection refused")
}
