// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probetable is an auto-resizing open-addressing hash table keyed by
// unsigned integers.
//
// # Layout
//
// A Table owns a single array of slots. Each slot carries an explicit
// occupied flag next to its key and value, so every key (including 0) is
// storable; there is no reserved "empty" key. There is no metadata array and
// there are no tombstones.
//
// # Probing
//
// The home slot of a key is hash(key) mod capacity, where hash is supplied by
// a Hasher (IdentityHasher by default, which makes the home slot simply key
// mod capacity). Lookups and inserts walk forward one slot at a time from the
// home slot, wrapping at the end of the array, until they find the key or an
// empty slot. Correctness rests on the reachability invariant: for every
// occupied slot i holding key k, every slot on the path from home(k) up to
// (but not including) i is occupied.
//
// # Deletion
//
// Emptying a slot in the middle of a run would cut off the keys later in the
// run whose probe paths pass through it. Delete therefore performs a
// backward-shift: after emptying slot i it walks forward over the remainder
// of the run, lifting each entry out and reinserting it from its home slot.
// Each reinsertion lands either in the hole or back in the slot it was just
// lifted from, so the walk never overtakes the hole and stops at the first
// empty slot. Reinsertion during the walk never resizes; the shrink check runs
// once the run has been compacted.
//
// # Resizing
//
// When auto-resize is enabled (the default), an insert that brings the fill
// ratio to MaxFill (1/4 by default) rebuilds the table at double the
// capacity, and a delete that brings it down to MinFill (1/8 by default)
// rebuilds it at half the capacity, never going below the configured floor.
// A rebuild allocates a fresh array and reinserts every live entry.
// Disabling auto-resize is useful for bulk loads into a pre-sized table; it
// is then the caller's responsibility never to insert into a full table.
package probetable

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

const (
	debug = false

	// DefaultCapacity is the initial capacity used by New. It is prime to
	// reduce clustering under the identity hasher.
	DefaultCapacity = 997
	// DefaultMaxFill is the fill ratio at which an insert doubles capacity.
	DefaultMaxFill = 1.0 / 4.0
	// DefaultMinFill is the fill ratio at which a delete halves capacity.
	DefaultMinFill = 1.0 / 8.0
	// DefaultMinCapacity is the default floor for shrinking.
	DefaultMinCapacity = 1
)

var (
	// ErrInvalidConfig is the cause of the panic raised by New and
	// NewWithCapacity when given an unusable configuration.
	ErrInvalidConfig = errors.New("probetable: invalid configuration")
	// ErrTableFull is the cause of the panic raised when a new key is
	// inserted into a full table while auto-resize is disabled.
	ErrTableFull = errors.New("probetable: table is full")
)

// Slot holds a key and value.
type Slot[K constraints.Unsigned, V any] struct {
	key   K
	value V
	full  bool
}

// Table is an unordered map from unsigned integer keys to values with Set,
// Get, GetMut, Delete, and All operations, using linear probing and
// backward-shift deletion.
//
// A Table is NOT goroutine-safe.
type Table[K constraints.Unsigned, V any] struct {
	hasher Hasher
	// The allocator to use for the slots array.
	allocator Allocator[K, V]
	// slots is capacity in length, and capacity is always > 0 until Close.
	slots []Slot[K, V]
	// The number of full slots (i.e. the number of entries in the table).
	used       int
	autoResize bool
	maxFill    float64
	minFill    float64
	// minCapacity is the floor below which Delete never shrinks the table.
	minCapacity int
}

// New constructs a Table with DefaultCapacity slots. It panics with an error
// wrapping ErrInvalidConfig if the options are invalid.
func New[K constraints.Unsigned, V any](options ...option[K, V]) *Table[K, V] {
	return NewWithCapacity[K, V](DefaultCapacity, options...)
}

// NewWithCapacity constructs a Table with exactly capacity slots, all empty.
// It panics with an error wrapping ErrInvalidConfig if capacity is not
// positive or the options are invalid.
func NewWithCapacity[K constraints.Unsigned, V any](
	capacity int, options ...option[K, V],
) *Table[K, V] {
	t := &Table[K, V]{
		hasher:      IdentityHasher{},
		allocator:   defaultAllocator[K, V]{},
		autoResize:  true,
		maxFill:     DefaultMaxFill,
		minFill:     DefaultMinFill,
		minCapacity: DefaultMinCapacity,
	}

	for _, op := range options {
		op.apply(t)
	}
	if err := t.validate(capacity); err != nil {
		panic(err)
	}

	t.slots = t.allocator.AllocSlots(capacity)
	t.checkInvariants()
	return t
}

// Close releases the slot array back to the configured allocator. It is
// unnecessary to close a table using the default allocator. It is invalid to
// use a Table after it has been closed, though Close itself is idempotent.
func (t *Table[K, V]) Close() {
	if t.slots != nil {
		t.allocator.FreeSlots(t.slots)
		t.slots = nil
		t.used = 0
	}
}

// Set inserts an entry into the table, overwriting the existing value if an
// entry with the same key already exists. Overwriting never resizes.
func (t *Table[K, V]) Set(key K, value V) {
	if t.autoResize && t.used == len(t.slots) {
		// Only reachable after filling the table with auto-resize disabled.
		if _, ok := t.find(key); !ok {
			t.rehash(t.growCapacity())
		}
	}
	if t.insert(key, value) && t.autoResize && t.fill(len(t.slots)) >= t.maxFill {
		t.rehash(t.growCapacity())
	}
	t.checkInvariants()
}

// Get retrieves the value for the specified key, returning ok=false if the
// key is not present.
func (t *Table[K, V]) Get(key K) (value V, ok bool) {
	if i, ok := t.find(key); ok {
		return t.slots[i].value, true
	}
	return value, false
}

// GetMut returns a pointer to the value stored for key, or nil if the key is
// not present. The value may be modified in place through the pointer. The
// pointer must not be used after any subsequent Set, Delete, Clear or Close
// as those may relocate the entry or replace the slot array.
func (t *Table[K, V]) GetMut(key K) *V {
	if i, ok := t.find(key); ok {
		return &t.slots[i].value
	}
	return nil
}

// Delete deletes the entry corresponding to the specified key from the
// table. It is a noop to delete a non-existent key.
func (t *Table[K, V]) Delete(key K) {
	i, ok := t.find(key)
	if !ok {
		if debug {
			fmt.Printf("delete(%v): not found\n", key)
		}
		return
	}

	t.slots[i] = Slot[K, V]{}
	t.used--
	if debug {
		fmt.Printf("delete(%v): index=%d used=%d\n", key, i, t.used)
	}

	// Backward-shift the rest of the run. Exactly as many slots are emptied
	// as are filled by the reinsertions, so an empty slot always trails the
	// walk and it terminates even if the table was full before the delete.
	n := len(t.slots)
	for j := t.next(i); t.slots[j].full; j = t.next(j) {
		s := t.slots[j]
		t.slots[j] = Slot[K, V]{}
		t.used--
		t.insert(s.key, s.value)
		if debug {
			fmt.Printf("delete(shifting): key=%v from=%d home=%d\n", s.key, j, t.home(s.key))
		}
	}

	if t.autoResize && t.fill(n) <= t.minFill {
		if c := t.shrinkCapacity(); c < n {
			t.rehash(c)
		}
	}
	t.checkInvariants()
}

// All calls yield sequentially for each key and value present in the table.
// If yield returns false, iteration stops. The iteration order is
// unspecified. The table can be mutated during iteration, though there is no
// guarantee that the mutations will be visible to the iteration.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the slots so that iteration remains valid if the table is
	// rebuilt during iteration.
	slots := t.slots
	for i := range slots {
		if slots[i].full {
			if !yield(slots[i].key, slots[i].value) {
				return
			}
		}
	}
}

// Clear deletes all entries from the table, leaving the capacity unchanged.
func (t *Table[K, V]) Clear() {
	clear(t.slots)
	t.used = 0
	t.checkInvariants()
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int {
	return t.used
}

// Capacity returns the length of the slot array.
func (t *Table[K, V]) Capacity() int {
	return len(t.slots)
}

// SetAutoResize enables or disables growing and shrinking on Set and Delete.
// Re-enabling does not resize immediately; the thresholds are checked on the
// next insert or delete.
func (t *Table[K, V]) SetAutoResize(enabled bool) {
	t.autoResize = enabled
}

// AutoResize reports whether Set and Delete may resize the table.
func (t *Table[K, V]) AutoResize() bool {
	return t.autoResize
}

// home returns the index at which the probe sequence for key starts.
func (t *Table[K, V]) home(key K) int {
	return int(t.hasher.Hash(uint64(key)) % uint64(len(t.slots)))
}

// next returns the index following i, wrapping at the end of the array.
func (t *Table[K, V]) next(i int) int {
	if i++; i == len(t.slots) {
		return 0
	}
	return i
}

// find walks the probe sequence for key. If the key is present it returns
// its index and ok=true. Otherwise it returns the index of the empty slot
// which ended the walk, or -1 if every slot was visited without finding
// either.
func (t *Table[K, V]) find(key K) (i int, ok bool) {
	i = t.home(key)
	if debug {
		fmt.Printf("find(%v): home=%d capacity=%d\n", key, i, len(t.slots))
	}
	for probes := len(t.slots); probes > 0; probes-- {
		s := &t.slots[i]
		if !s.full {
			return i, false
		}
		if s.key == key {
			return i, true
		}
		i = t.next(i)
	}
	return -1, false
}

// insert sets key to value without resizing and reports whether a new entry
// was added (as opposed to an existing value being overwritten).
func (t *Table[K, V]) insert(key K, value V) bool {
	i, ok := t.find(key)
	if ok {
		if debug {
			fmt.Printf("insert(updating): index=%d key=%v\n", i, key)
		}
		t.slots[i].value = value
		return false
	}
	if i < 0 {
		panic(errors.Wrapf(ErrTableFull, "inserting %v with auto-resize disabled (capacity=%d)",
			key, len(t.slots)))
	}
	t.slots[i] = Slot[K, V]{key: key, value: value, full: true}
	t.used++
	if debug {
		fmt.Printf("insert(inserting): index=%d key=%v used=%d\n", i, key, t.used)
	}
	return true
}

// fill returns the fill ratio the current entries would have at the given
// capacity.
func (t *Table[K, V]) fill(capacity int) float64 {
	return float64(t.used) / float64(capacity)
}

// growCapacity returns the smallest doubling of the current capacity at
// which the fill ratio is below maxFill.
func (t *Table[K, V]) growCapacity() int {
	c := 2 * len(t.slots)
	for t.fill(c) >= t.maxFill {
		c *= 2
	}
	return c
}

// shrinkCapacity returns half the current capacity, but never less than the
// floor. Since minFill <= maxFill/2, the live entries always fit.
func (t *Table[K, V]) shrinkCapacity() int {
	return max(len(t.slots)/2, t.minCapacity)
}

// rehash rebuilds the table with newCapacity slots, reinserting every live
// entry, and releases the old slot array.
func (t *Table[K, V]) rehash(newCapacity int) {
	oldSlots := t.slots
	if debug {
		fmt.Printf("rehash: capacity=%d->%d used=%d\n", len(oldSlots), newCapacity, t.used)
	}

	t.slots = t.allocator.AllocSlots(newCapacity)
	t.used = 0
	for i := range oldSlots {
		if s := &oldSlots[i]; s.full {
			t.insert(s.key, s.value)
		}
	}
	t.allocator.FreeSlots(oldSlots)
}

func (t *Table[K, V]) checkInvariants() {
	if invariants {
		if len(t.slots) == 0 {
			panic(errors.AssertionFailedf("invariant failed: zero capacity"))
		}

		// For every full slot, verify the key is unique, that every slot on
		// its probe path is full, and that find locates it.
		seen := make(map[K]int, t.used)
		var used int
		for i := range t.slots {
			s := &t.slots[i]
			if !s.full {
				continue
			}
			used++
			if j, dup := seen[s.key]; dup {
				panic(errors.AssertionFailedf("invariant failed: key %v in slots %d and %d\n%s",
					s.key, j, i, t.debugString()))
			}
			seen[s.key] = i
			for p := t.home(s.key); p != i; p = t.next(p) {
				if !t.slots[p].full {
					panic(errors.AssertionFailedf(
						"invariant failed: slot(%d): %v unreachable, empty slot %d on probe path\n%s",
						i, s.key, p, t.debugString()))
				}
			}
			if j, ok := t.find(s.key); !ok || j != i {
				panic(errors.AssertionFailedf("invariant failed: slot(%d): %v not found\n%s",
					i, s.key, t.debugString()))
			}
		}

		if used != t.used {
			panic(errors.AssertionFailedf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
	}
}

func (t *Table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  auto-resize=%t\n", len(t.slots), t.used, t.autoResize)
	for i := range t.slots {
		if s := &t.slots[i]; s.full {
			fmt.Fprintf(&buf, "  %4d: %v [home=%d] = %v\n", i, s.key, t.home(s.key), s.value)
		} else {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		}
	}
	return buf.String()
}
