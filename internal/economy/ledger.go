package economy

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// epsilon absorbs float drift from fractional waste and recycling amounts,
// so a stock of 1.9999999 still covers a requirement of 2.
const epsilon = 1e-9

// Unbounded marks a resource without a cap.
const Unbounded = 0.0

// Ledger is the city-wide store of resource quantities. Amounts never go
// negative and never exceed a resource's cap.
type Ledger struct {
	amounts [NumResources]float64
	caps    [NumResources]float64 // Unbounded (0) = no cap
}

// DefaultCaps returns the per-category caps used by a new city.
func DefaultCaps() map[Resource]float64 {
	caps := make(map[Resource]float64, NumResources)
	for _, r := range AllResources() {
		switch r.Category() {
		case CategoryWaste:
			caps[r] = 1000
		default:
			caps[r] = 500
		}
	}
	return caps
}

// NewLedger creates an empty ledger with the given caps. Resources missing
// from caps are unbounded.
func NewLedger(caps map[Resource]float64) *Ledger {
	l := &Ledger{}
	for r, c := range caps {
		mustValid(r)
		if c < 0 {
			c = Unbounded
		}
		l.caps[r] = c
	}
	return l
}

// Cap returns the cap for r, or Unbounded.
func (l *Ledger) Cap(r Resource) float64 {
	mustValid(r)
	return l.caps[r]
}

// Amount returns the current stock of r.
func (l *Ledger) Amount(r Resource) float64 {
	mustValid(r)
	return l.amounts[r]
}

// Room returns how much more of r fits under its cap (+Inf when unbounded).
func (l *Ledger) Room(r Resource) float64 {
	mustValid(r)
	if l.caps[r] == Unbounded {
		return math.Inf(1)
	}
	return lo.Max([]float64{0, l.caps[r] - l.amounts[r]})
}

// Add increases r by amount. If the cap would be exceeded the stock is
// clamped to the cap and Add returns false. Negative amounts are rejected.
func (l *Ledger) Add(r Resource, amount float64) bool {
	mustValid(r)
	if amount < 0 {
		return false
	}
	next := l.amounts[r] + amount
	if c := l.caps[r]; c != Unbounded && next > c+epsilon {
		l.amounts[r] = c
		return false
	}
	if c := l.caps[r]; c != Unbounded && next > c {
		next = c
	}
	l.amounts[r] = next
	return true
}

// Remove decreases r by amount. It fails without mutating if the stock
// is short.
func (l *Ledger) Remove(r Resource, amount float64) bool {
	mustValid(r)
	if amount < 0 || amount > l.amounts[r]+epsilon {
		return false
	}
	l.amounts[r] = lo.Max([]float64{0, l.amounts[r] - amount})
	return true
}

// HasAll reports whether every requirement is covered.
func (l *Ledger) HasAll(req map[Resource]float64) bool {
	for r, qty := range req {
		mustValid(r)
		if qty > l.amounts[r]+epsilon {
			return false
		}
	}
	return true
}

// ConsumeAll deducts every requirement, or nothing at all.
func (l *Ledger) ConsumeAll(req map[Resource]float64) bool {
	if !l.HasAll(req) {
		return false
	}
	for r, qty := range req {
		l.amounts[r] = lo.Max([]float64{0, l.amounts[r] - qty})
	}
	return true
}

// Set overwrites the stock of r, clamped into [0, cap]. Used when
// restoring a saved game.
func (l *Ledger) Set(r Resource, amount float64) {
	mustValid(r)
	if c := l.caps[r]; c != Unbounded && amount > c {
		amount = c
	}
	l.amounts[r] = lo.Max([]float64{0, amount})
}

// Total sums every resource in a category.
func (l *Ledger) Total(cat Category) float64 {
	sum := 0.0
	for _, r := range AllResources() {
		if r.Category() == cat {
			sum += l.amounts[r]
		}
	}
	return sum
}

// Snapshot returns a copy of all non-zero stocks keyed by resource.
func (l *Ledger) Snapshot() map[Resource]float64 {
	out := make(map[Resource]float64)
	for i, amt := range l.amounts {
		if amt != 0 {
			out[Resource(i)] = amt
		}
	}
	return out
}

// Restore replaces all stocks from a snapshot. Unknown resources are
// impossible here since the keys are typed; amounts are clamped.
func (l *Ledger) Restore(snap map[Resource]float64) {
	l.amounts = [NumResources]float64{}
	for r, amt := range snap {
		l.Set(r, amt)
	}
}

func (l *Ledger) String() string {
	return fmt.Sprintf("Ledger(raw=%.1f, products=%.1f, waste=%.1f, recycled=%.1f)",
		l.Total(CategoryRaw), l.Total(CategoryProduct), l.Total(CategoryWaste), l.Total(CategoryRecycled))
}
