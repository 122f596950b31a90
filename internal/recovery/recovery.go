package recovery

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// PathStore persists the path a visitor attempted before a catch-all
// redirect, to be consumed exactly once on the next load. Static hosts
// without server-side routing depend on this round trip.
type PathStore interface {
	SavePath(ctx context.Context, sessionID, path string) error
	// ConsumePath returns the saved path and discards it. Empty string
	// when nothing was saved.
	ConsumePath(ctx context.Context, sessionID string) (string, error)
}

// MemoryPathStore is the in-process PathStore.
type MemoryPathStore struct {
	mu    sync.Mutex
	paths map[string]string
}

// NewMemoryPathStore creates an empty in-process path store.
func NewMemoryPathStore() *MemoryPathStore {
	return &MemoryPathStore{paths: make(map[string]string)}
}

func (m *MemoryPathStore) SavePath(_ context.Context, sessionID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[sessionID] = path
	return nil
}

func (m *MemoryPathStore) ConsumePath(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := m.paths[sessionID]
	delete(m.paths, sessionID)
	return path, nil
}

// MarkerStore records completed-order markers that already triggered a
// cart clear.
type MarkerStore interface {
	IsMarkerProcessed(ctx context.Context, marker string) (bool, error)
	MarkProcessed(ctx context.Context, marker string) error
}

// MemoryMarkerStore is the in-process MarkerStore.
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]bool
}

// NewMemoryMarkerStore creates an empty in-process marker store.
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{markers: make(map[string]bool)}
}

func (m *MemoryMarkerStore) IsMarkerProcessed(_ context.Context, marker string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[marker], nil
}

func (m *MemoryMarkerStore) MarkProcessed(_ context.Context, marker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[marker] = true
	return nil
}

// SuccessPath is the navigation target that signals a completed order.
const SuccessPath = "/success"

// MarkerParam is the query parameter carrying the order/session marker.
const MarkerParam = "session_id"

// ClearFunc empties a session's cart in response to a completed order.
type ClearFunc func(ctx context.Context, sessionID, marker string) error

// CompletionWatcher clears the cart exactly once per recognized
// completed-order marker. Re-observing the same marker is a no-op, so
// re-renders of the success target cannot double-clear.
type CompletionWatcher struct {
	markers MarkerStore
	clear   ClearFunc
	logger  *zap.Logger
}

// NewCompletionWatcher creates a watcher over the given marker store.
func NewCompletionWatcher(markers MarkerStore, clear ClearFunc) *CompletionWatcher {
	return &CompletionWatcher{
		markers: markers,
		clear:   clear,
		logger:  util.GetLogger(),
	}
}

// ExtractMarker returns the order marker when target is the success route
// carrying one, else the empty string.
func ExtractMarker(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(u.Path, SuccessPath) {
		return ""
	}
	return u.Query().Get(MarkerParam)
}

// Observe inspects a navigation target and, on the first sight of a
// completed-order marker, clears the session's cart. Returns true when a
// clear was triggered by this observation.
func (w *CompletionWatcher) Observe(ctx context.Context, sessionID, target string) (bool, error) {
	marker := ExtractMarker(target)
	if marker == "" {
		return false, nil
	}

	processed, err := w.markers.IsMarkerProcessed(ctx, marker)
	if err != nil {
		return false, err
	}
	if processed {
		return false, nil
	}

	if err := w.clear(ctx, sessionID, marker); err != nil {
		return false, err
	}
	if err := w.markers.MarkProcessed(ctx, marker); err != nil {
		w.logger.Error("Failed to record processed marker",
			zap.String("marker", marker),
			zap.Error(err))
	}

	w.logger.Info("Completed order observed, cart cleared",
		zap.String("session_id", sessionID),
		zap.String("marker", marker))
	return true, nil
}
