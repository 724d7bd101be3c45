package evict

import (
	"time"

	"github.com/banksean/buildcache/cacheindex"
)

// arcState tracks the two ghost lists B1 (recently evicted from the
// recency list) and B2 (recently evicted from the frequency list) that
// ARC uses to adapt its target recency-list size p on the fly. The
// live T1/T2 split itself is not modeled as separate structures here;
// the index's own accessedAt/createdAt fields stand in for recency and
// frequency respectively. p is adjusted on ghost hits but is not read
// anywhere: it influences neither victim choice nor which ghost list an
// eviction is recorded against.
type arcState struct {
	p       int // adapted target size of the recency list
	b1      map[string]struct{}
	b2      map[string]struct{}
	b1Order []string
	b2Order []string
}

// ghostListCap bounds each ghost list's size so the bookkeeping doesn't
// grow unboundedly under a churning workload with no size budget.
const ghostListCap = 4096

func newARCState() *arcState {
	return &arcState{b1: map[string]struct{}{}, b2: map[string]struct{}{}}
}

// victim picks the next eviction candidate. A ghost hit against B2
// (the entry was evicted from the frequency side before and is being
// re-admitted into the cache) grows p; a ghost hit against B1 shrinks
// p. The victim itself does not depend on p or on ghost hits: it is
// always the entry least recently accessed.
func (a *arcState) victim(entries map[string]cacheindex.Entry) (cacheindex.Entry, bool) {
	for key := range entries {
		if _, hit := a.b2[key]; hit {
			a.growP()
		} else if _, hit := a.b1[key]; hit {
			a.shrinkP()
		}
	}
	return oldestBy(entries, func(e cacheindex.Entry) time.Time { return e.Metadata.AccessedAt })
}

// onEvict records entry's departure against the ghost list its access
// pattern indicates: an entry read again after its initial write
// behaves like a frequency-list (T2) citizen and is ghosted into B2;
// one evicted without ever being re-read behaves like a recency-list
// (T1) citizen and is ghosted into B1.
func (a *arcState) onEvict(entry cacheindex.Entry) {
	if entry.Key == "" {
		return
	}
	if len(a.b1Order)+len(a.b2Order) >= 2*ghostListCap {
		a.trim()
	}
	if entry.Metadata.AccessedAt.After(entry.Metadata.CreatedAt) {
		a.b2[entry.Key] = struct{}{}
		a.b2Order = append(a.b2Order, entry.Key)
		return
	}
	a.b1[entry.Key] = struct{}{}
	a.b1Order = append(a.b1Order, entry.Key)
}

func (a *arcState) growP() {
	a.p++
}

func (a *arcState) shrinkP() {
	if a.p > 0 {
		a.p--
	}
}

func (a *arcState) trim() {
	if len(a.b1Order) > ghostListCap {
		drop := a.b1Order[:len(a.b1Order)-ghostListCap]
		for _, k := range drop {
			delete(a.b1, k)
		}
		a.b1Order = a.b1Order[len(a.b1Order)-ghostListCap:]
	}
	if len(a.b2Order) > ghostListCap {
		drop := a.b2Order[:len(a.b2Order)-ghostListCap]
		for _, k := range drop {
			delete(a.b2, k)
		}
		a.b2Order = a.b2Order[len(a.b2Order)-ghostListCap:]
	}
}
