// Package cart stores one entry per physical unit rather than a quantity
// map, so increments, decrements and bulk quantity changes are symmetric
// edits over the same slice. The quantity view is derived on demand by
// Aggregate and never persisted, which keeps a single source of truth.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ecogrove/market/internal/store"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

// Entry is one unit of a product. Duplicates are expected; three units of
// the same product are three entries.
type Entry struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Line is one row of the aggregated view.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Summary struct {
	Lines      []Line          `json:"lines"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type Service struct {
	mu       sync.Mutex
	store    store.Store
	onChange []func()
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// OnChange registers fn to run after every persisted cart mutation.
func (s *Service) OnChange(fn func()) {
	if fn == nil {
		return
	}

	s.onChange = append(s.onChange, fn)
}

func (s *Service) notify() {
	for _, fn := range s.onChange {
		fn()
	}
}

// AddUnit appends one unit and returns the new total unit count.
func (s *Service) AddUnit(ctx context.Context, productID, name string, unitPrice decimal.Decimal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}

	entries = append(entries, Entry{ProductID: productID, Name: name, UnitPrice: unitPrice})

	err = s.saveLocked(ctx, entries)
	if err != nil {
		return 0, err
	}

	s.notify()

	return len(entries), nil
}

// RemoveAllUnits drops every entry for productID, not just one.
func (s *Service) RemoveAllUnits(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	kept := entries[:0]

	for _, e := range entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}

	err = s.saveLocked(ctx, kept)
	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// SetQuantity replaces all entries for productID with exactly qty clones
// of one pre-existing entry. qty < 1 is rejected without mutating; an
// unknown productID is a no-op since there is no template to clone.
func (s *Service) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	var template *Entry

	for i := range entries {
		if entries[i].ProductID == productID {
			template = &entries[i]
			break
		}
	}

	if template == nil {
		return nil
	}

	tpl := *template

	kept := make([]Entry, 0, len(entries)+qty)

	for _, e := range entries {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}

	for range qty {
		kept = append(kept, tpl)
	}

	err = s.saveLocked(ctx, kept)
	if err != nil {
		return err
	}

	s.notify()

	return nil
}

// IncrementUnit clones one existing entry for productID and appends it.
// No-op when the id has no entries: a price and name cannot be invented.
func (s *Service) IncrementUnit(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.ProductID == productID {
			entries = append(entries, e)

			err = s.saveLocked(ctx, entries)
			if err != nil {
				return err
			}

			s.notify()

			return nil
		}
	}

	return nil
}

// DecrementUnit removes the first entry for productID. No-op when absent.
func (s *Service) DecrementUnit(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	for i, e := range entries {
		if e.ProductID == productID {
			entries = append(entries[:i], entries[i+1:]...)

			err = s.saveLocked(ctx, entries)
			if err != nil {
				return err
			}

			s.notify()

			return nil
		}
	}

	return nil
}

// Aggregate derives the quantity view: one line per distinct productID in
// first-seen order, plus the grand total. An empty cart yields no lines
// and a zero total.
func (s *Service) Aggregate(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return Summary{}, err
	}

	index := make(map[string]int)
	sum := Summary{GrandTotal: decimal.Zero}

	for _, e := range entries {
		i, seen := index[e.ProductID]
		if !seen {
			i = len(sum.Lines)
			index[e.ProductID] = i
			sum.Lines = append(sum.Lines, Line{
				ProductID: e.ProductID,
				Name:      e.Name,
				UnitPrice: e.UnitPrice,
				LineTotal: decimal.Zero,
			})
		}

		sum.Lines[i].Quantity++
		sum.Lines[i].LineTotal = sum.Lines[i].LineTotal.Add(e.UnitPrice)
		sum.GrandTotal = sum.GrandTotal.Add(e.UnitPrice)
	}

	return sum, nil
}

// UnitCount reports the raw number of unit entries.
func (s *Service) UnitCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}

// Clear empties the cart. Checkout and storage clearance go through here;
// it deliberately does not touch the ledger.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Delete(ctx, store.KeyCart)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.notify()

	return nil
}

func (s *Service) loadLocked(ctx context.Context) ([]Entry, error) {
	raw, err := s.store.Load(ctx, store.KeyCart)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, nil
		}

		return nil, fmt.Errorf("load cart: %w", err)
	}

	var entries []Entry

	err = json.Unmarshal(raw, &entries)
	if err != nil {
		// Corrupted cart document counts as empty.
		return nil, nil
	}

	return entries, nil
}

func (s *Service) saveLocked(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	err = s.store.Save(ctx, store.KeyCart, raw)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	return nil
}
