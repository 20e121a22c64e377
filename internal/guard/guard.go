// Package guard deduplicates sale numbers. Checkout generates a sale
// number from the clock truncated to eight digits; the guard keeps a
// bounded recent-history set so a second post or print of the same
// number within a session is rejected before it reaches the ERP or
// the printer. The set is capped, oldest evicted first, because a
// sale number only needs protection on the timescale of one shift.
package guard

import (
	"strconv"
	"sync"
	"time"
)

// DefaultCapacity matches the recent-history window the terminals
// have always kept.
const DefaultCapacity = 100

// SaleNo derives a sale number from the current time: unix
// milliseconds truncated to the last eight digits. Collisions within
// a session's timescale are accepted as negligible; the number is a
// correlation handle, not a cryptographic identifier.
func SaleNo() string {
	ms := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return ms
}

// Recent is a fixed-capacity set of recently seen sale numbers.
type Recent struct {
	mu    sync.Mutex
	cap   int
	order []string
	seen  map[string]struct{}
}

// NewRecent returns a guard holding at most capacity numbers; a
// non-positive capacity falls back to DefaultCapacity.
func NewRecent(capacity int) *Recent {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recent{
		cap:  capacity,
		seen: make(map[string]struct{}, capacity),
	}
}

// Seen reports whether the sale number is in the recent history.
func (r *Recent) Seen(saleNo string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[saleNo]
	return ok
}

// Remember records a sale number, evicting the oldest entry once the
// capacity is reached. Remembering a number twice does not extend
// its lifetime.
func (r *Recent) Remember(saleNo string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[saleNo]; ok {
		return
	}
	if len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
	r.order = append(r.order, saleNo)
	r.seen[saleNo] = struct{}{}
}
