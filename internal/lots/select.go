// Package lots orders and partitions ownership lots to satisfy disposal
// requests.
package lots

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

var (
	// ErrInsufficientLots means the pool total is less than the requested
	// amount. No partial extraction is ever performed.
	ErrInsufficientLots = errors.New("insufficient lots")
	// ErrLotNotFound means a caller-supplied lot number is absent from the
	// pool.
	ErrLotNotFound = errors.New("lot not found")
)

// Extraction is the result of satisfying a disposal request against a pool.
type Extraction struct {
	// Extracted holds the consumed (possibly split) lots, each carrying
	// its original number and acquisition but only the consumed amount.
	Extracted []model.Lot
	// Remaining holds the pool after extraction, with any split remainder
	// kept in place under its original lot number.
	Remaining []model.Lot
}

// cmpLots reports whether a should be consumed before b under the method.
// Ties break by lot number ascending, so every method is a total order and
// extraction is deterministic.
func cmpLots(method SelectionMethod, a, b model.Lot) bool {
	switch method {
	case LIFO:
		if !a.Acquisition.When.Equal(b.Acquisition.When) {
			return a.Acquisition.When.After(b.Acquisition.When)
		}
	case LowestBasis:
		if c := a.Acquisition.Price.Cmp(b.Acquisition.Price); c != 0 {
			return c < 0
		}
	case HighestBasis:
		if c := a.Acquisition.Price.Cmp(b.Acquisition.Price); c != 0 {
			return c > 0
		}
	default: // FIFO
		if !a.Acquisition.When.Equal(b.Acquisition.When) {
			return a.Acquisition.When.Before(b.Acquisition.When)
		}
	}
	return a.Number < b.Number
}

// Extract consumes amount units from pool under the given method. With
// Manual, lotNumbers restricts the pool to exactly those lots. The last lot
// consumed may be split; the remainder stays in place under its original
// number. A zero amount extracts nothing.
func Extract(pool []model.Lot, amount uint64, method SelectionMethod, lotNumbers []uint64) (Extraction, error) {
	if method == Manual {
		restricted, rest, err := restrictPool(pool, lotNumbers)
		if err != nil {
			return Extraction{}, err
		}
		ext, err := walk(restricted, amount, FIFO)
		if err != nil {
			return Extraction{}, err
		}
		ext.Remaining = append(ext.Remaining, rest...)
		return ext, nil
	}
	return walk(pool, amount, method)
}

func restrictPool(pool []model.Lot, lotNumbers []uint64) (restricted, rest []model.Lot, err error) {
	byNumber := make(map[uint64]model.Lot, len(pool))
	for _, lot := range pool {
		byNumber[lot.Number] = lot
	}

	wanted := make(map[uint64]bool, len(lotNumbers))
	for _, n := range lotNumbers {
		lot, ok := byNumber[n]
		if !ok {
			return nil, nil, fmt.Errorf("lot %d: %w", n, ErrLotNotFound)
		}
		if !wanted[n] {
			restricted = append(restricted, lot)
		}
		wanted[n] = true
	}

	for _, lot := range pool {
		if !wanted[lot.Number] {
			rest = append(rest, lot)
		}
	}
	return restricted, rest, nil
}

func walk(pool []model.Lot, amount uint64, method SelectionMethod) (Extraction, error) {
	sorted := make([]model.Lot, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return cmpLots(method, sorted[i], sorted[j])
	})

	var ext Extraction
	remaining := amount
	for i, lot := range sorted {
		if remaining == 0 {
			ext.Remaining = append(ext.Remaining, sorted[i:]...)
			break
		}
		if lot.Amount <= remaining {
			remaining -= lot.Amount
			ext.Extracted = append(ext.Extracted, lot)
			continue
		}
		// Split: the consumed portion detaches, the rest stays in place.
		detached := lot.Split(remaining)
		remaining = 0
		ext.Extracted = append(ext.Extracted, detached)
		ext.Remaining = append(ext.Remaining, lot)
	}

	if remaining > 0 {
		return Extraction{}, fmt.Errorf("requested %d exceeds pool by %d: %w",
			amount, remaining, ErrInsufficientLots)
	}
	return ext, nil
}
