// Package catalogue holds the versioned resource that the sync server
// publishes: the catalogue snapshot itself, the store holding the current
// snapshot, and the rotator that drives the store through a schedule.
package catalogue

import (
	"fmt"
	"strconv"
	"time"
)

// Catalogue is one immutable snapshot of the synchronized dataset.
// A given version always maps to the same items; snapshots are replaced
// wholesale and never mutated in place.
type Catalogue struct {
	Version uint64         `json:"version"`
	Items   map[string]int `json:"items"`
}

// ETag returns the validator token for this snapshot.
// The token is simply the decimal form of the version number.
func (c *Catalogue) ETag() string {
	return strconv.FormatUint(c.Version, 10)
}

// Equal reports whether two snapshots carry the same version and items.
func (c *Catalogue) Equal(other *Catalogue) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Version != other.Version || len(c.Items) != len(other.Items) {
		return false
	}
	for name, price := range c.Items {
		if op, ok := other.Items[name]; !ok || op != price {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the snapshot.
// Use it when handing snapshot data to code that might mutate the map.
func (c *Catalogue) Clone() *Catalogue {
	if c == nil {
		return nil
	}
	items := make(map[string]int, len(c.Items))
	for name, price := range c.Items {
		items[name] = price
	}
	return &Catalogue{Version: c.Version, Items: items}
}

// Validate checks the snapshot invariants: non-empty item names and
// non-negative prices.
func (c *Catalogue) Validate() error {
	for name, price := range c.Items {
		if name == "" {
			return fmt.Errorf("catalogue v%d: empty item name", c.Version)
		}
		if price < 0 {
			return fmt.Errorf("catalogue v%d: negative price for %q", c.Version, name)
		}
	}
	return nil
}

// Schedule is the ordered sequence of snapshots a rotator installs,
// plus the fixed delay between installs. Read-only after construction.
type Schedule struct {
	Snapshots []*Catalogue
	Delay     time.Duration
}

// DefaultDelay is the rotation tick used when a schedule does not set one.
const DefaultDelay = 500 * time.Millisecond

// Len returns the number of snapshots in the schedule.
func (s Schedule) Len() int {
	return len(s.Snapshots)
}

var sampleItems = []string{"Tea", "Coffee", "Cocoa", "Mate", "Chai"}

// SampleSchedule builds a deterministic schedule of n snapshots with
// versions 1..n. Prices vary with the version so consecutive snapshots
// never compare equal.
func SampleSchedule(n int, delay time.Duration) Schedule {
	if delay <= 0 {
		delay = DefaultDelay
	}
	snapshots := make([]*Catalogue, 0, n)
	for v := 1; v <= n; v++ {
		items := make(map[string]int, len(sampleItems))
		for i, name := range sampleItems {
			items[name] = 100*(i+1) + v
		}
		snapshots = append(snapshots, &Catalogue{
			Version: uint64(v),
			Items:   items,
		})
	}
	return Schedule{Snapshots: snapshots, Delay: delay}
}
