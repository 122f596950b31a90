package cart

import (
	"sync"

	"checkout-service/internal/models"
	"checkout-service/internal/money"
)

// Store is the sole owner of one cart's state. Lines keep insertion order;
// every stored line has quantity >= 1. All mutation is funneled through the
// store so the derived totals can never desynchronize.
type Store struct {
	mu    sync.Mutex
	lines []models.CartItem
}

// NewStore creates an empty cart store
func NewStore() *Store {
	return &Store{}
}

// AddItem merges the item into the cart. A line with the same (id, size)
// has its quantity incremented by 1; otherwise a new line with quantity 1
// is appended. Never fails.
func (s *Store) AddItem(item models.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID == item.ID && s.lines[i].Size == item.Size {
			s.lines[i].Quantity++
			return
		}
	}

	item.Quantity = 1
	s.lines = append(s.lines, item)
}

// RemoveItem removes lines from the cart. With a size it removes only the
// exact (id, size) line; with an empty size it removes every line sharing
// the id. The coarse id-only match predates size tracking and is kept for
// callers that never pass one. No-op when nothing matches.
func (s *Store) RemoveItem(id int64, size string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id, size)
}

func (s *Store) removeLocked(id int64, size string) {
	kept := s.lines[:0]
	for _, line := range s.lines {
		if size != "" {
			if line.ID == id && line.Size == size {
				continue
			}
		} else if line.ID == id {
			continue
		}
		kept = append(kept, line)
	}
	s.lines = kept
}

// UpdateQuantity sets the quantity on matching lines. A quantity <= 0
// delegates to RemoveItem so a zero-quantity line is never stored. With an
// empty size any line with the id is updated, mirroring RemoveItem's
// legacy matching.
func (s *Store) UpdateQuantity(id int64, quantity int, size string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLocked(id, size)
		return
	}

	for i := range s.lines {
		if s.lines[i].ID == id && (size == "" || s.lines[i].Size == size) {
			s.lines[i].Quantity = quantity
		}
	}
}

// Clear empties the cart unconditionally. Clearing an empty cart is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CartItem, len(s.lines))
	copy(out, s.lines)
	return out
}

// Replace swaps in a previously persisted set of lines.
func (s *Store) Replace(lines []models.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make([]models.CartItem, len(lines))
	copy(s.lines, lines)
}

// TotalItems returns the sum of all line quantities. Recomputed on every
// read, never cached.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice returns the sum of unit price times quantity across all lines.
// Recomputed on every read, never cached.
func (s *Store) TotalPrice() money.Money {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total money.Money
	for _, line := range s.lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}
