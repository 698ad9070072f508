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
	"log/slog"
)

// DefaultMigrationRate is the number of entries moved from the old table to
// the new table on each Insert while a growth episode is in progress.
const DefaultMigrationRate = 2

// Option provides an interface to do work on a Dictionary while it is being
// created.
type Option[K comparable, V any] interface {
	apply(d *Dictionary[K, V])
}

type migrationRateOption[K comparable, V any] struct {
	rate int
}

func (op migrationRateOption[K, V]) apply(d *Dictionary[K, V]) {
	d.rate = uint64(op.rate)
}

// WithMigrationRate is an option to specify how many entries are migrated
// per Insert during growth. The rate must be at least 1.
func WithMigrationRate[K comparable, V any](rate int) Option[K, V] {
	if rate < 1 {
		panic(fmt.Sprintf("dictionary: migration rate must be >= 1, got %d", rate))
	}
	return migrationRateOption[K, V]{rate}
}

// Allocator specifies an interface for allocating and releasing the memory
// used by the tables of a Dictionary. The default allocator utilizes Go's
// builtin make() and allows the GC to reclaim memory.
//
// An allocator may refuse an allocation by returning an error. When that
// happens during growth the Insert that triggered it fails with
// ErrAllocationFailed and the Dictionary is left unchanged.
//
// If the allocator is manually managing memory then Dictionary.Close must be
// called in order to ensure the Free methods are called.
type Allocator[K comparable, V any] interface {
	// AllocStates should return a slice equivalent to make([]uint64, n).
	AllocStates(n int) ([]uint64, error)

	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) ([]K, error)

	// AllocValues should return a slice equivalent to make([]V, n).
	AllocValues(n int) ([]V, error)

	// FreeStates can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocStates.
	FreeStates(v []uint64)

	// FreeKeys can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeValues can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocValues.
	FreeValues(v []V)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocStates(n int) ([]uint64, error) {
	return make([]uint64, n), nil
}

func (defaultAllocator[K, V]) AllocKeys(n int) ([]K, error) {
	return make([]K, n), nil
}

func (defaultAllocator[K, V]) AllocValues(n int) ([]V, error) {
	return make([]V, n), nil
}

func (defaultAllocator[K, V]) FreeStates(v []uint64) {
}

func (defaultAllocator[K, V]) FreeKeys(v []K) {
}

func (defaultAllocator[K, V]) FreeValues(v []V) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(d *Dictionary[K, V]) {
	d.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Dictionary[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) Option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K comparable, V any] struct {
	logger *slog.Logger
}

func (op loggerOption[K, V]) apply(d *Dictionary[K, V]) {
	d.logger = op.logger
}

// WithLogger is an option to specify a logger that receives debug records
// when a growth episode starts and when its migration completes. A nil
// logger disables logging, which is the default.
func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return loggerOption[K, V]{logger}
}
