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

// Package dictionary implements an open-addressing hash table that grows
// without a stop-the-world rehash.
//
// # Tables
//
// A Dictionary owns exactly two fixed capacity tables. Each table is a
// triple of parallel arrays (slot states, keys, values) whose capacity is a
// power of two. Collisions are resolved with linear probing: a key's probe
// sequence starts at hash(key)%capacity and walks forward one slot at a
// time, wrapping at the end of the table. The slot states are packed 2 bits
// per slot into a dense []uint64 which is separate from the keys and values,
// see slotState.
//
// Deletion is performed using tombstones. A removed slot continues probe
// sequences during lookups (otherwise keys inserted past it would become
// unreachable) but is available to receive a new entry. Tombstones are only
// reclaimed when their table is drained by a later growth episode.
//
// # Incremental growth
//
// When the write table (the table receiving new entries) becomes half full,
// Insert starts a growth episode: the other table is allocated at twice the
// write table's capacity (reusing the buffers of a previously drained table
// when possible) and becomes the write table, while the old write table
// becomes the moving-from table. Rather than rehashing every entry at once,
// every subsequent Insert moves at most R live entries (R=2 by default, see
// WithMigrationRate) from the moving-from table into the write table,
// resuming a scan cursor where the previous Insert left off:
//
//	 moving-from (capacity C)              write (capacity 2C)
//	+---+---+---+---+---+---+         +---+---+---+---+---+---+---+---+---
//	| x | x | . | d | a | b |   --->  | c |   |   | x |   | x |   |   | ...
//	+---+---+---+---+---+---+         +---+---+---+---+---+---+---+---+---
//	              ^
//	              movingFromMarker
//
// While a migration is in progress every key lives in exactly one of the two
// tables, so lookups consult the write table and then the moving-from table.
// The moving-from table held at most C/2 entries when the episode started and
// the write table has room for C entries before it reaches its own growth
// threshold. Since every Insert adds at most one entry and drains R >= 1, the
// migration finishes before the write table can grow again. The worst case
// cost of any single Insert is therefore the probe for the new entry plus R
// migrated entries, instead of O(n) for a full rehash.
//
// When the moving-from table becomes empty the migration ends. Its buffers
// are retained, idle, and are reused by the next growth episode.
//
// # Hashing
//
// The Dictionary does not hash keys on its own: a HashFunc is supplied to
// New. StringHash and IntegerHash provide xxhash based functions for common
// key types.
//
// A Dictionary is NOT goroutine-safe.
package dictionary

import (
	"fmt"
	"log/slog"
	"math"
	"math/bits"
)

const (
	debug = false

	// DefaultCapacity is the capacity of a Dictionary created with an
	// initialCapacity <= 0.
	DefaultCapacity = 32

	// A table starts growing once size >= capacity/growthDivisor.
	growthDivisor = 2

	// noTable is the movingFrom value while no migration is in progress.
	noTable = -1
)

// HashFunc hashes a key. It must be deterministic and must return the same
// value for keys that compare equal.
type HashFunc[K any] func(key K) uint64

// Dictionary is an unordered map from keys to values with Insert, Get,
// Remove and ForEach operations that never pays for a full rehash at once.
// See the package documentation for details.
type Dictionary[K comparable, V any] struct {
	hash HashFunc[K]
	// The allocator to use for the table buffers.
	allocator Allocator[K, V]
	logger    *slog.Logger
	// rate is the maximum number of entries migrated per Insert.
	rate uint64

	tables [2]table[K, V]
	// writeTable is the index of the table receiving new entries.
	writeTable int
	// movingFrom is the index of the table being drained, or noTable.
	movingFrom int
	// movingFromMarker is the next slot of the moving-from table to
	// examine. It only moves forward during a growth episode.
	movingFromMarker uint64

	// Counters reported by Stats.
	growths  uint64
	migrated uint64
}

// New constructs a new Dictionary with the specified initial capacity
// rounded up to the next power of two. If initialCapacity is <= 0 the
// Dictionary starts out with DefaultCapacity slots. New panics if hash is
// nil or if the allocator fails to provide the initial table.
func New[K comparable, V any](
	initialCapacity int, hash HashFunc[K], options ...Option[K, V],
) *Dictionary[K, V] {
	if hash == nil {
		panic("dictionary: nil HashFunc")
	}
	d := &Dictionary[K, V]{
		hash:       hash,
		allocator:  defaultAllocator[K, V]{},
		rate:       DefaultMigrationRate,
		movingFrom: noTable,
	}

	for _, op := range options {
		op.apply(d)
	}

	if err := d.tables[0].alloc(d.allocator, roundUpCapacity(initialCapacity)); err != nil {
		panic(err)
	}

	d.checkInvariants()
	return d
}

// NewFromMap constructs a Dictionary holding every entry of entries. The first
// table has twice the next power of two of len(entries) slots, so seeding
// never starts a growth episode. An empty map yields DefaultCapacity slots.
// NewFromMap panics under the same conditions as New.
func NewFromMap[K comparable, V any](
	entries map[K]V, hash HashFunc[K], options ...Option[K, V],
) *Dictionary[K, V] {
	var capacity int
	if n := len(entries); n > 0 {
		capacity = int(roundUpCapacity(n) * growthDivisor)
	}
	d := New[K, V](capacity, hash, options...)
	for k, v := range entries {
		if _, err := d.Insert(k, v); err != nil {
			panic(err)
		}
	}
	return d
}

// roundUpCapacity returns the smallest power of two >= n, or
// DefaultCapacity when n <= 0.
func roundUpCapacity(n int) uint64 {
	if n <= 0 {
		return DefaultCapacity
	}
	return uint64(1) << bits.Len64(uint64(n-1))
}

// Close releases every buffer back to the configured allocator. It is
// unnecessary to close a Dictionary using the default allocator. A closed
// Dictionary is empty and has zero capacity; inserting into it allocates a
// fresh table of DefaultCapacity. Close is idempotent.
func (d *Dictionary[K, V]) Close() {
	d.tables[0].free(d.allocator)
	d.tables[1].free(d.allocator)
	d.writeTable = 0
	d.movingFrom = noTable
	d.movingFromMarker = 0
}

// Insert inserts an entry into the Dictionary, overwriting the existing value
// if an entry with the same key already exists, and returns a pointer to the
// stored value. The pointer remains valid until the key is removed, the
// Dictionary is cleared, or a later Insert migrates the entry into the other
// table while growing. Updating an existing key never starts a growth
// episode.
//
// If Insert needs to grow the Dictionary and the allocator refuses the new
// table, Insert returns an error wrapping ErrAllocationFailed and the
// Dictionary keeps all of its entries.
func (d *Dictionary[K, V]) Insert(key K, value V) (*V, error) {
	h := d.hash(key)
	w := &d.tables[d.writeTable]
	if debug {
		fmt.Printf("insert(%v): hash=%016x write=%d capacity=%d size=%d\n",
			key, h, d.writeTable, w.capacity, w.size)
	}

	// Overwriting an entry of the write table does not change its load, so
	// only new entries are subject to the growth check below.
	var v *V
	if i, ok := w.find(h, key); ok {
		if debug {
			fmt.Printf("insert(updating): index=%d key=%v\n", i, key)
		}
		w.values[i] = value
		v = &w.values[i]
	}

	if v == nil {
		if err := d.maybeGrow(); err != nil {
			return nil, err
		}
		// The key may still be waiting in the moving-from table. Drop that
		// copy so that the key lives in exactly one table.
		if d.movingFrom != noTable {
			m := &d.tables[d.movingFrom]
			if j, ok := m.find(h, key); ok {
				if debug {
					fmt.Printf("insert(superseding): moving-from index=%d key=%v\n", j, key)
				}
				m.removeAt(j)
				if m.size == 0 {
					d.finishMigration()
				}
			}
		}
		v = d.tables[d.writeTable].uncheckedInsert(h, key, value)
	}

	if d.movingFrom != noTable {
		d.migrate(d.rate)
	}

	d.checkInvariants()
	return v, nil
}

// GetOrInsert returns a pointer to the value for key, inserting the zero
// value first if the key is not present. The pointer is valid for as long as
// one returned by Insert.
func (d *Dictionary[K, V]) GetOrInsert(key K) (*V, error) {
	if v := d.Get(key); v != nil {
		return v, nil
	}
	var zero V
	return d.Insert(key, zero)
}

// Remove deletes the entry corresponding to the specified key. It is a noop
// to remove a non-existent key.
func (d *Dictionary[K, V]) Remove(key K) {
	h := d.hash(key)

	w := &d.tables[d.writeTable]
	if i, ok := w.find(h, key); ok {
		if debug {
			fmt.Printf("remove(%v): write index=%d\n", key, i)
		}
		w.removeAt(i)
		d.checkInvariants()
		return
	}

	if d.movingFrom != noTable {
		m := &d.tables[d.movingFrom]
		if i, ok := m.find(h, key); ok {
			if debug {
				fmt.Printf("remove(%v): moving-from index=%d\n", key, i)
			}
			m.removeAt(i)
			if m.size == 0 {
				d.finishMigration()
			}
		}
	}
	d.checkInvariants()
}

// Clear deletes all entries from the Dictionary. The capacity of both
// tables is retained and any migration in progress is abandoned.
func (d *Dictionary[K, V]) Clear() {
	d.tables[0].clear()
	d.tables[1].clear()
	d.movingFrom = noTable
	d.movingFromMarker = 0
	d.checkInvariants()
}

// Get returns a pointer to the value stored for key, or nil if the key is
// not present. The value may be modified through the pointer. The pointer
// remains valid until the key is removed, the Dictionary is cleared, or a
// later Insert migrates the entry into the other table. While Migrating,
// entries still waiting in the old table are moved by the next few Inserts,
// after which the old slot is zeroed and the pointer no longer tracks the
// entry.
func (d *Dictionary[K, V]) Get(key K) *V {
	t, i, ok := d.lookup(key)
	if !ok {
		return nil
	}
	return &t.values[i]
}

// Value retrieves a copy of the value for the specified key, returning
// ok=false if the key is not present.
func (d *Dictionary[K, V]) Value(key K) (value V, ok bool) {
	if v := d.Get(key); v != nil {
		return *v, true
	}
	return value, false
}

// Contains returns true if the key is present.
func (d *Dictionary[K, V]) Contains(key K) bool {
	_, _, ok := d.lookup(key)
	return ok
}

// lookup returns the table and slot holding key. The write table is probed
// first and then, during a migration, the moving-from table.
func (d *Dictionary[K, V]) lookup(key K) (*table[K, V], uint64, bool) {
	h := d.hash(key)
	w := &d.tables[d.writeTable]
	if i, ok := w.find(h, key); ok {
		return w, i, true
	}
	if d.movingFrom != noTable {
		m := &d.tables[d.movingFrom]
		if i, ok := m.find(h, key); ok {
			return m, i, true
		}
	}
	return nil, 0, false
}

// ForEach calls fn for each entry in the Dictionary: first the entries of
// the write table in slot order, then the entries still waiting in the
// moving-from table. If fn returns false, iteration stops. fn may modify the
// value through the supplied pointer but must not insert into or remove from
// the Dictionary. Since migration only happens during Insert, every entry is
// visited exactly once.
func (d *Dictionary[K, V]) ForEach(fn func(key K, value *V, d *Dictionary[K, V]) bool) {
	movingFrom := d.movingFrom
	yield := func(key K, value *V) bool {
		return fn(key, value, d)
	}
	if !d.tables[d.writeTable].forEach(yield) {
		return
	}
	if movingFrom != noTable {
		d.tables[movingFrom].forEach(yield)
	}
}

// All calls yield sequentially for each key and value present in the
// Dictionary. If yield returns false, iteration stops. The signature
// conforms to range-over-func:
//
//	for k, v := range d.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (d *Dictionary[K, V]) All(yield func(key K, value V) bool) {
	d.ForEach(func(key K, value *V, _ *Dictionary[K, V]) bool {
		return yield(key, *value)
	})
}

// Size returns the number of entries in the Dictionary, summed across both
// tables.
func (d *Dictionary[K, V]) Size() int {
	return int(d.tables[0].size + d.tables[1].size)
}

// Len is an alias for Size.
func (d *Dictionary[K, V]) Len() int {
	return d.Size()
}

// Empty returns true if the Dictionary holds no entries.
func (d *Dictionary[K, V]) Empty() bool {
	return d.Size() == 0
}

// Capacity returns the capacity of the write table plus, while a migration
// is in progress, the capacity of the moving-from table. The reported
// capacity drops when a migration completes and the drained table goes
// idle.
func (d *Dictionary[K, V]) Capacity() int {
	c := d.tables[d.writeTable].capacity
	if d.movingFrom != noTable {
		c += d.tables[d.movingFrom].capacity
	}
	return int(c)
}

// Migrating returns true while a growth episode is draining the old table.
func (d *Dictionary[K, V]) Migrating() bool {
	return d.movingFrom != noTable
}

// Clone returns an independent deep copy of the Dictionary, including any
// migration in progress and the idle buffer retained for the next growth.
// The copy uses the same hash function, allocator, logger and migration
// rate.
func (d *Dictionary[K, V]) Clone() (*Dictionary[K, V], error) {
	c := &Dictionary[K, V]{
		hash:             d.hash,
		allocator:        d.allocator,
		logger:           d.logger,
		rate:             d.rate,
		writeTable:       d.writeTable,
		movingFrom:       d.movingFrom,
		movingFromMarker: d.movingFromMarker,
		growths:          d.growths,
		migrated:         d.migrated,
	}
	for i := range d.tables {
		if err := d.tables[i].cloneInto(c.allocator, &c.tables[i]); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.checkInvariants()
	return c, nil
}

// maybeGrow starts a growth episode if the write table has reached its
// growth threshold.
func (d *Dictionary[K, V]) maybeGrow() error {
	w := &d.tables[d.writeTable]
	if w.size < w.capacity/growthDivisor {
		return nil
	}

	// Only one migration can be in flight as there are only two tables.
	// Normally the previous migration has finished long before the threshold
	// is reached again. If it has not, drain what is left first.
	if d.movingFrom != noTable {
		if debug {
			fmt.Printf("grow: draining %d remaining entries\n", d.tables[d.movingFrom].size)
		}
		d.migrate(math.MaxUint64)
	}

	newCapacity := w.capacity * 2
	if newCapacity == 0 {
		// The Dictionary was closed.
		newCapacity = DefaultCapacity
	}

	next := 1 - d.writeTable
	if err := d.tables[next].alloc(d.allocator, newCapacity); err != nil {
		return err
	}

	d.movingFrom = d.writeTable
	d.writeTable = next
	d.movingFromMarker = 0
	d.growths++

	if debug {
		fmt.Printf("grow: capacity=%d->%d size=%d\n", w.capacity, newCapacity, w.size)
	}
	if d.logger != nil {
		d.logger.Debug("dictionary growth started",
			slog.Uint64("from_capacity", w.capacity),
			slog.Uint64("to_capacity", newCapacity),
			slog.Uint64("entries", w.size))
	}

	if w.size == 0 {
		// Tiny tables have a threshold of zero; there is nothing to move.
		d.finishMigration()
	}
	return nil
}

// migrate moves up to n used entries from the moving-from table into the
// write table, resuming at movingFromMarker.
func (d *Dictionary[K, V]) migrate(n uint64) {
	w := &d.tables[d.writeTable]
	m := &d.tables[d.movingFrom]

	var moved uint64
	for ; moved < n && d.movingFromMarker < m.capacity; d.movingFromMarker++ {
		i := d.movingFromMarker
		if m.states.get(i) != slotUsed {
			continue
		}
		key := m.keys[i]
		w.uncheckedInsert(d.hash(key), key, m.values[i])
		m.removeAt(i)
		moved++
	}
	d.migrated += moved

	if debug {
		fmt.Printf("migrate: moved=%d marker=%d/%d remaining=%d\n",
			moved, d.movingFromMarker, m.capacity, m.size)
	}
	if m.size == 0 {
		d.finishMigration()
	}
}

// finishMigration ends the growth episode. The drained table keeps its
// buffers so the next growth episode can reuse them.
func (d *Dictionary[K, V]) finishMigration() {
	if d.logger != nil {
		d.logger.Debug("dictionary migration finished",
			slog.Uint64("capacity", d.tables[d.writeTable].capacity),
			slog.Uint64("entries", d.tables[d.writeTable].size),
			slog.Uint64("migrated", d.migrated))
	}
	d.movingFrom = noTable
	d.movingFromMarker = 0
}
