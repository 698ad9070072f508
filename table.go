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

package dictionary

import (
	"fmt"
)

// table is a fixed capacity open-addressing hash table using linear probing.
// A Dictionary owns exactly two of them. The slot states are kept apart from
// the keys and values so that probing touches a dense bit array.
type table[K comparable, V any] struct {
	// states holds the 2-bit state of every slot. A nil states means the
	// table has never been allocated.
	states slotStates
	// keys and values are capacity in length. A slot's key and value are
	// only meaningful while its state is slotUsed.
	keys   []K
	values []V
	// The total number of slots (always 2^N). The capacity-1 is used as a
	// mask to quickly compute h%capacity.
	capacity uint64
	// The number of used slots. Tombstones are not counted.
	size uint64
}

// allocated returns true if the table has backing storage, whether it is in
// use or idle awaiting reuse.
func (t *table[K, V]) allocated() bool {
	return t.states != nil
}

// alloc replaces the table's storage with freshly allocated buffers of the
// specified capacity. The previous buffers, if any, are released only once
// all of the new buffers have been obtained, so that a failed allocation
// leaves the table exactly as it was.
func (t *table[K, V]) alloc(a Allocator[K, V], capacity uint64) error {
	states, err := a.AllocStates(stateWords(capacity))
	if err != nil {
		return fmt.Errorf("%w: states for %d slots: %w", ErrAllocationFailed, capacity, err)
	}
	keys, err := a.AllocKeys(int(capacity))
	if err != nil {
		a.FreeStates(states)
		return fmt.Errorf("%w: keys for %d slots: %w", ErrAllocationFailed, capacity, err)
	}
	values, err := a.AllocValues(int(capacity))
	if err != nil {
		a.FreeStates(states)
		a.FreeKeys(keys)
		return fmt.Errorf("%w: values for %d slots: %w", ErrAllocationFailed, capacity, err)
	}

	t.free(a)
	t.states = slotStates(states)
	t.states.reset()
	t.keys = keys
	t.values = values
	t.capacity = capacity
	t.size = 0
	return nil
}

// free releases the table's buffers back to the allocator and leaves the
// table unallocated.
func (t *table[K, V]) free(a Allocator[K, V]) {
	if !t.allocated() {
		return
	}
	a.FreeStates(t.states)
	a.FreeKeys(t.keys)
	a.FreeValues(t.values)
	*t = table[K, V]{}
}

// clear marks every slot empty. The capacity is retained.
func (t *table[K, V]) clear() {
	if !t.allocated() {
		return
	}
	t.states.reset()
	clear(t.keys)
	clear(t.values)
	t.size = 0
}

// find returns the slot holding key, walking the probe sequence that starts
// at h%capacity. Used slots with a different key and tombstones continue the
// probe while an empty slot terminates it.
func (t *table[K, V]) find(h uint64, key K) (slot uint64, ok bool) {
	if t.capacity == 0 {
		return 0, false
	}

	mask := t.capacity - 1
	origin := h & mask
	i := origin
	for {
		switch t.states.get(i) {
		case slotUsed:
			if t.keys[i] == key {
				return i, true
			}
		case slotEmpty:
			return 0, false
		}
		i = (i + 1) & mask
		if i == origin {
			return 0, false
		}
	}
}

// uncheckedInsert inserts an entry known not to be in the table into the
// first empty or removed slot of its probe sequence and returns a pointer to
// the stored value. Violating the requirement that the key is absent will
// cause the table to hold duplicates.
func (t *table[K, V]) uncheckedInsert(h uint64, key K, value V) *V {
	mask := t.capacity - 1
	origin := h & mask
	i := origin
	for {
		switch t.states.get(i) {
		case slotEmpty:
			// First use of this slot: start from zero values so that nothing
			// left over in a reused buffer is observed.
			var k K
			var v V
			t.keys[i] = k
			t.values[i] = v
			fallthrough
		case slotRemoved:
			t.keys[i] = key
			t.values[i] = value
			t.states.set(i, slotUsed)
			t.size++
			return &t.values[i]
		}
		i = (i + 1) & mask
		if i == origin {
			panic(fmt.Sprintf("invariant failed: no free slot for %v in table with capacity=%d size=%d",
				key, t.capacity, t.size))
		}
	}
}

// removeAt turns the used slot i into a tombstone.
func (t *table[K, V]) removeAt(i uint64) {
	var k K
	var v V
	t.keys[i] = k
	t.values[i] = v
	t.states.set(i, slotRemoved)
	t.size--
}

// forEach calls yield sequentially for each used slot in slot order. If
// yield returns false, iteration stops and forEach returns false.
func (t *table[K, V]) forEach(yield func(key K, value *V) bool) bool {
	for i := uint64(0); i < t.capacity; i++ {
		if t.states.get(i) == slotUsed {
			if !yield(t.keys[i], &t.values[i]) {
				return false
			}
		}
	}
	return true
}

// cloneInto makes dst an independent copy of t using buffers from a.
func (t *table[K, V]) cloneInto(a Allocator[K, V], dst *table[K, V]) error {
	if !t.allocated() {
		dst.free(a)
		return nil
	}
	if err := dst.alloc(a, t.capacity); err != nil {
		return err
	}
	copy(dst.states, t.states)
	copy(dst.keys, t.keys)
	copy(dst.values, t.values)
	dst.size = t.size
	return nil
}
