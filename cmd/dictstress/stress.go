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

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cockroachdb/dictionary"
	"lukechampine.com/frand"
)

type workload struct {
	ops         int
	capacity    int
	rate        int
	removeRatio float64
	lookupRatio float64
	keySpace    int
	seed        uint64
}

func (w workload) validate() error {
	switch {
	case w.ops <= 0:
		return fmt.Errorf("--ops must be positive, got %d", w.ops)
	case w.capacity < 0:
		return fmt.Errorf("--capacity must not be negative, got %d", w.capacity)
	case w.rate < 1:
		return fmt.Errorf("--rate must be >= 1, got %d", w.rate)
	case w.removeRatio < 0 || w.lookupRatio < 0 || w.removeRatio+w.lookupRatio >= 1:
		return fmt.Errorf("--remove-ratio and --lookup-ratio must be non-negative and sum to less than 1, got %g and %g",
			w.removeRatio, w.lookupRatio)
	case w.keySpace < 0:
		return fmt.Errorf("--key-space must not be negative, got %d", w.keySpace)
	}
	return nil
}

// rng returns a reproducible generator when a seed is set.
func (w workload) rng() *frand.RNG {
	if w.seed == 0 {
		return frand.New()
	}
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], w.seed)
	return frand.NewCustom(seed[:], 1024, 12)
}

type opKind uint8

const (
	opInsert opKind = iota
	opRemove
	opLookup
)

type op struct {
	key  uint64
	kind opKind
}

// generate returns the operations to replay against every store. Removes and
// lookups target a previously inserted key so that they are not all misses.
func (w workload) generate() []op {
	rng := w.rng()
	ops := make([]op, w.ops)
	inserted := make([]uint64, 0, w.ops)
	for i := range ops {
		if len(inserted) > 0 {
			switch p := rng.Float64(); {
			case p < w.removeRatio:
				ops[i] = op{key: inserted[rng.Intn(len(inserted))], kind: opRemove}
				continue
			case p < w.removeRatio+w.lookupRatio:
				ops[i] = op{key: inserted[rng.Intn(len(inserted))], kind: opLookup}
				continue
			}
		}
		var k uint64
		if w.keySpace > 0 {
			k = rng.Uint64n(uint64(w.keySpace))
		} else {
			k = rng.Uint64n(1 << 63)
		}
		ops[i] = op{key: k, kind: opInsert}
		inserted = append(inserted, k)
	}
	return ops
}

type store interface {
	name() string
	insert(key, value uint64) error
	remove(key uint64)
	lookup(key uint64) bool
	len() int
	summary() []slog.Attr
}

type builtinStore struct {
	m map[uint64]uint64
}

func newBuiltinStore(w workload) *builtinStore {
	return &builtinStore{m: make(map[uint64]uint64, w.capacity)}
}

func (s *builtinStore) name() string { return "builtin" }

func (s *builtinStore) insert(key, value uint64) error {
	s.m[key] = value
	return nil
}

func (s *builtinStore) remove(key uint64) { delete(s.m, key) }

func (s *builtinStore) lookup(key uint64) bool {
	_, ok := s.m[key]
	return ok
}

func (s *builtinStore) len() int { return len(s.m) }

func (s *builtinStore) summary() []slog.Attr { return nil }

type dictionaryStore struct {
	d *dictionary.Dictionary[uint64, uint64]
}

func newDictionaryStore(w workload, logger *slog.Logger) *dictionaryStore {
	return &dictionaryStore{
		d: dictionary.New[uint64, uint64](w.capacity, dictionary.IntegerHash[uint64],
			dictionary.WithMigrationRate[uint64, uint64](w.rate),
			dictionary.WithLogger[uint64, uint64](logger)),
	}
}

func (s *dictionaryStore) name() string { return "dictionary" }

func (s *dictionaryStore) insert(key, value uint64) error {
	_, err := s.d.Insert(key, value)
	return err
}

func (s *dictionaryStore) remove(key uint64) { s.d.Remove(key) }

func (s *dictionaryStore) lookup(key uint64) bool { return s.d.Contains(key) }

func (s *dictionaryStore) len() int { return s.d.Len() }

func (s *dictionaryStore) summary() []slog.Attr {
	st := s.d.Stats()
	return []slog.Attr{
		slog.Int("capacity", st.Capacity),
		slog.Uint64("growths", st.Growths),
		slog.Uint64("migrated", st.Migrated),
		slog.Bool("migrating", st.Migrating),
	}
}

// result holds the latency of Insert calls only. Removes and lookups never
// grow either implementation.
type result struct {
	store   store
	ops     int
	inserts int
	hits    int
	total   time.Duration
	max     time.Duration
	maxAt   int
	average ewma.MovingAverage
}

func (r result) log(logger *slog.Logger) {
	attrs := []slog.Attr{
		slog.String("impl", r.store.name()),
		slog.Int("ops", r.ops),
		slog.Int("inserts", r.inserts),
		slog.Int("lookup_hits", r.hits),
		slog.Int("len", r.store.len()),
		slog.Duration("total", r.total),
		slog.Duration("insert_ewma", time.Duration(r.average.Value())),
		slog.Duration("insert_max", r.max),
		slog.Int("insert_max_at", r.maxAt),
	}
	attrs = append(attrs, r.store.summary()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "workload finished", attrs...)
}

// checkEvery is how many operations run between context checks.
const checkEvery = 4096

func run(ctx context.Context, s store, ops []op) (result, error) {
	r := result{store: s, average: ewma.NewMovingAverage()}
	start := time.Now()
	for i, o := range ops {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return r, err
			}
		}
		r.ops++

		switch o.kind {
		case opRemove:
			s.remove(o.key)
			continue
		case opLookup:
			if s.lookup(o.key) {
				r.hits++
			}
			continue
		}

		t := time.Now()
		err := s.insert(o.key, uint64(i))
		elapsed := time.Since(t)
		if err != nil {
			return r, fmt.Errorf("%s: op %d: %w", s.name(), i, err)
		}
		r.inserts++
		r.average.Add(float64(elapsed))
		if elapsed > r.max {
			r.max, r.maxAt = elapsed, i
		}
	}
	r.total = time.Since(start)
	return r, nil
}
