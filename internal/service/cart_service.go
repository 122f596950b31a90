package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/apperr"
	"checkout-service/internal/broker"
	"checkout-service/internal/cart"
	"checkout-service/internal/models"
	"checkout-service/internal/money"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartRepository persists session carts. Consumers define the interface;
// the Redis client implements it.
type CartRepository interface {
	LoadCart(ctx context.Context, sessionID string) ([]models.CartItem, error)
	// AddLine atomically merges one line: an existing (id, size) line has
	// its quantity incremented, a new line is appended with quantity 1.
	AddLine(ctx context.Context, sessionID string, item models.CartItem, ttl time.Duration) error
	SaveCart(ctx context.Context, sessionID string, items []models.CartItem, ttl time.Duration) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// SessionLocker serializes mutations of one session's cart across
// replicas. Optional: with a nil locker the service relies on the cart
// store's own mutex, which is enough for a single instance.
type SessionLocker interface {
	AcquireSessionLock(ctx context.Context, sessionID string, ttl time.Duration) (string, error)
	ReleaseSessionLock(ctx context.Context, sessionID, token string) error
}

// Catalog resolves product identity for added items.
type Catalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// CartService owns session cart state. Adds go through the repository's
// atomic merge; every other mutation is funneled through the pure cart
// store, then persisted back. Both paths implement the cart store's line
// merge semantics.
type CartService struct {
	repo           CartRepository
	locker         SessionLocker
	catalog        Catalog
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	ttl            time.Duration
	// onMutate is invoked after any cart mutation so an active checkout
	// attempt for the session can be invalidated.
	onMutate func(sessionID string)
}

// NewCartService creates a new cart service
func NewCartService(repo CartRepository, locker SessionLocker, catalog Catalog, eventPublisher *broker.EventPublisher, ttl time.Duration) *CartService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CartService{
		repo:           repo,
		locker:         locker,
		catalog:        catalog,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		ttl:            ttl,
	}
}

// SetMutationHook registers a callback fired after every cart mutation.
func (s *CartService) SetMutationHook(hook func(sessionID string)) {
	s.onMutate = hook
}

// CartView is the cart plus its derived totals
type CartView struct {
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice money.Money       `json:"total_price"`
	Display    string            `json:"display_total"`
}

func viewOf(store *cart.Store) *CartView {
	total := store.TotalPrice()
	return &CartView{
		Items:      store.Items(),
		TotalItems: store.TotalItems(),
		TotalPrice: total,
		Display:    total.Format(),
	}
}

// withSessionLock serializes one cart operation across replicas when a
// locker is configured.
func (s *CartService) withSessionLock(ctx context.Context, sessionID string, fn func() error) error {
	if s.locker != nil {
		token, err := s.locker.AcquireSessionLock(ctx, sessionID, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to lock session cart: %w", err)
		}
		if token == "" {
			return fmt.Errorf("session cart is busy, try again")
		}
		defer func() {
			if err := s.locker.ReleaseSessionLock(ctx, sessionID, token); err != nil {
				s.logger.Warn("Failed to release session lock",
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
		}()
	}
	return fn()
}

// withCart runs one load-mutate-persist cycle under the session lock.
func (s *CartService) withCart(ctx context.Context, sessionID string, mutate func(*cart.Store)) (*CartView, error) {
	var c *cart.Store
	err := s.withSessionLock(ctx, sessionID, func() error {
		items, err := s.repo.LoadCart(ctx, sessionID)
		if err != nil {
			return err
		}

		c = cart.NewStore()
		c.Replace(items)
		mutate(c)

		return s.repo.SaveCart(ctx, sessionID, c.Items(), s.ttl)
	})
	if err != nil {
		return nil, err
	}

	if s.onMutate != nil {
		s.onMutate(sessionID)
	}
	return viewOf(c), nil
}

// AddItem resolves the product in the catalog and merges it into the
// session cart through the repository's atomic merge-add. Merging never
// fails; only an unknown product or size does.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64, size string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation("product_id", fmt.Sprintf("Unknown product %d", productID))
		}
		return nil, err
	}
	if !store.HasSize(product, size) {
		return nil, apperr.Validation("size", fmt.Sprintf("Product %d is not available in size %q", productID, size))
	}

	item := models.CartItem{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: money.New(product.PriceCents, product.Currency),
		Image:     product.Image,
		Size:      size,
	}

	var items []models.CartItem
	err = s.withSessionLock(ctx, sessionID, func() error {
		if err := s.repo.AddLine(ctx, sessionID, item, s.ttl); err != nil {
			return err
		}
		var loadErr error
		items, loadErr = s.repo.LoadCart(ctx, sessionID)
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	if s.onMutate != nil {
		s.onMutate(sessionID)
	}

	c := cart.NewStore()
	c.Replace(items)
	util.CartItemsAddedTotal.Inc()
	return viewOf(c), nil
}

// RemoveItem removes the exact (id, size) line, or every line with the id
// when no size is given.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64, size string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	view, err := s.withCart(ctx, sessionID, func(c *cart.Store) {
		c.RemoveItem(productID, size)
	})
	if err != nil {
		return nil, err
	}

	util.CartItemsRemovedTotal.Inc()
	return view, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int, size string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	return s.withCart(ctx, sessionID, func(c *cart.Store) {
		c.UpdateQuantity(productID, quantity, size)
	})
}

// GetCart returns the session cart with derived totals.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	items, err := s.repo.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	c := cart.NewStore()
	c.Replace(items)
	return viewOf(c), nil
}

// Items returns the raw cart lines for a session.
func (s *CartService) Items(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	return s.repo.LoadCart(ctx, sessionID)
}

// Clear empties the session cart. Clearing an already empty cart is a
// no-op, so repeated clears are safe.
func (s *CartService) Clear(ctx context.Context, sessionID, reason string) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	_, err := s.withCart(ctx, sessionID, func(c *cart.Store) {
		c.Clear()
	})
	if err != nil {
		return err
	}

	util.CartsClearedTotal.WithLabelValues(reason).Inc()
	s.publishCleared(ctx, sessionID, reason)
	return nil
}

func (s *CartService) publishCleared(ctx context.Context, sessionID, reason string) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.CartClearedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartCleared,
			Timestamp: time.Now(),
		},
		SessionID: sessionID,
		Reason:    reason,
	}
	if err := s.eventPublisher.PublishCartCleared(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartCleared event", zap.Error(err))
	}
}

