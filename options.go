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

package probetable

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// option provide an interface to do work on Table while it is being created.
type option[K constraints.Unsigned, V any] interface {
	apply(t *Table[K, V])
}

type hasherOption[K constraints.Unsigned, V any] struct {
	hasher Hasher
}

func (op hasherOption[K, V]) apply(t *Table[K, V]) {
	t.hasher = op.hasher
}

// WithHasher is an option to specify the Hasher used to compute home slots.
// The default is IdentityHasher.
func WithHasher[K constraints.Unsigned, V any](hasher Hasher) option[K, V] {
	return hasherOption[K, V]{hasher}
}

type fillOption[K constraints.Unsigned, V any] struct {
	max   bool
	ratio float64
}

func (op fillOption[K, V]) apply(t *Table[K, V]) {
	if op.max {
		t.maxFill = op.ratio
	} else {
		t.minFill = op.ratio
	}
}

// WithMaxFill sets the fill ratio at which an insert doubles the capacity.
// Must satisfy 0 < minFill <= maxFill/2 and maxFill <= 1. Defaults to
// DefaultMaxFill.
func WithMaxFill[K constraints.Unsigned, V any](ratio float64) option[K, V] {
	return fillOption[K, V]{max: true, ratio: ratio}
}

// WithMinFill sets the fill ratio at which a delete halves the capacity.
// Must satisfy 0 < minFill <= maxFill/2 and maxFill <= 1, so that halving a
// table at minFill never overfills it. Defaults to DefaultMinFill.
func WithMinFill[K constraints.Unsigned, V any](ratio float64) option[K, V] {
	return fillOption[K, V]{ratio: ratio}
}

type minCapacityOption[K constraints.Unsigned, V any] struct {
	capacity int
}

func (op minCapacityOption[K, V]) apply(t *Table[K, V]) {
	t.minCapacity = op.capacity
}

// WithMinCapacity sets the floor below which a delete never shrinks the
// table. It does not constrain the initial capacity.
func WithMinCapacity[K constraints.Unsigned, V any](capacity int) option[K, V] {
	return minCapacityOption[K, V]{capacity}
}

type autoResizeOption[K constraints.Unsigned, V any] struct {
	enabled bool
}

func (op autoResizeOption[K, V]) apply(t *Table[K, V]) {
	t.autoResize = op.enabled
}

// WithAutoResize sets the initial auto-resize mode. See Table.SetAutoResize.
func WithAutoResize[K constraints.Unsigned, V any](enabled bool) option[K, V] {
	return autoResizeOption[K, V]{enabled}
}

// Allocator specifies an interface for allocating and releasing the slot
// arrays used by a Table. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Table.Close must be called in order to ensure FreeSlots is
// called for the final array.
type Allocator[K constraints.Unsigned, V any] interface {
	// AllocSlots should return a zeroed slice equivalent to
	// make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K constraints.Unsigned, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K constraints.Unsigned, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(t *Table[K, V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Table[K,V].
func WithAllocator[K constraints.Unsigned, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

// validate reports the first configuration problem, wrapping ErrInvalidConfig.
func (t *Table[K, V]) validate(capacity int) error {
	switch {
	case capacity <= 0:
		return errors.Wrapf(ErrInvalidConfig, "capacity must be positive, got %d", capacity)
	case t.hasher == nil:
		return errors.Wrap(ErrInvalidConfig, "nil hasher")
	case t.allocator == nil:
		return errors.Wrap(ErrInvalidConfig, "nil allocator")
	case !(t.minFill > 0 && 2*t.minFill <= t.maxFill && t.maxFill <= 1):
		return errors.Wrapf(ErrInvalidConfig,
			"fill ratios must satisfy 0 < min <= max/2 <= 1/2, got min=%g max=%g", t.minFill, t.maxFill)
	case t.minCapacity < 1:
		return errors.Wrapf(ErrInvalidConfig, "min capacity must be positive, got %d", t.minCapacity)
	}
	return nil
}
