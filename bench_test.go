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
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=dictionary", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkDictionaryIter[int64], genKeys[int64]))
	})
}

func BenchmarkGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=dictionary", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDictionaryGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkDictionaryGetHit[string], genKeys[string]))
	})
}

func BenchmarkGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=dictionary", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDictionaryGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkDictionaryGetMiss[string], genKeys[string]))
	})
}

func BenchmarkInsertGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapInsertGrow[string], genKeys[string]))
	})
	for _, rate := range []int{1, 2, 8} {
		b.Run(fmt.Sprintf("impl=dictionary/rate=%d", rate), func(b *testing.B) {
			b.Run("t=Int64", benchSizes(benchmarkDictionaryInsertGrow[int64](rate), genKeys[int64]))
			b.Run("t=String", benchSizes(benchmarkDictionaryInsertGrow[string](rate), genKeys[string]))
		})
	}
}

func BenchmarkInsertRemove(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertRemove[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapInsertRemove[string], genKeys[string]))
	})
	b.Run("impl=dictionary", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkDictionaryInsertRemove[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkDictionaryInsertRemove[string], genKeys[string]))
	})
}

type benchTypes interface {
	int64 | string
}

func benchHash[T benchTypes]() HashFunc[T] {
	var t T
	switch any(t).(type) {
	case int64:
		return any(HashFunc[int64](IntegerHash[int64])).(HashFunc[T])
	case string:
		return any(HashFunc[string](StringHash[string])).(HashFunc[T])
	default:
		panic("not reached")
	}
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	keys := make([]T, end-start)
	for i := range keys {
		switch p := any(&keys[i]).(type) {
		case *int64:
			*p = int64(start + i)
		case *string:
			*p = strconv.Itoa(start + i)
		}
	}
	return keys
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	var tmp T
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += k + v
		}
	}
}

func benchmarkDictionaryIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	d := New[T, T](n, benchHash[T]())
	keys := genKeys(0, n)
	for _, k := range keys {
		_, _ = d.Insert(k, k)
	}
	b.ResetTimer()
	perfbench.Open(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		d.All(func(k, v T) bool {
			tmp += k + v
			return true
		})
	}
}

func benchmarkRuntimeMapGetMiss[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%len(miss)]]
	}
}

func benchmarkDictionaryGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	d := New[T, T](0, benchHash[T]())
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for j := range keys {
		_, _ = d.Insert(keys[j], keys[j])
	}
	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		ok = d.Contains(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetHit[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}

	// Go's builtin map has an optimization to avoid string comparisons if
	// there is pointer equality. Defeat this optimization to get a better
	// apples-to-apples comparison.
	keys = genKeys(0, n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[keys[i%n]]
	}
}

func benchmarkDictionaryGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	d := New[T, T](n, benchHash[T]())
	keys := genKeys(0, n)
	for _, k := range keys {
		_, _ = d.Insert(k, k)
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	var v *T
	for i := 0; i < b.N; i++ {
		v = d.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, v != nil)
}

func benchmarkRuntimeMapInsertGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkDictionaryInsertGrow[T benchTypes](
	rate int,
) func(b *testing.B, n int, genKeys func(start, end int) []T) {
	return func(b *testing.B, n int, genKeys func(start, end int) []T) {
		hash := benchHash[T]()
		keys := genKeys(0, n)
		b.ResetTimer()
		perfbench.Open(b)
		for i := 0; i < b.N; i++ {
			d := New[T, T](1, hash, WithMigrationRate[T, T](rate))
			for _, k := range keys {
				_, _ = d.Insert(k, k)
			}
		}
	}
}

func benchmarkRuntimeMapInsertRemove[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkDictionaryInsertRemove[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	d := New[T, T](n, benchHash[T]())
	keys := genKeys(0, n)
	for _, k := range keys {
		_, _ = d.Insert(k, k)
	}
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		d.Remove(keys[j])
		_, _ = d.Insert(keys[j], keys[j])
	}
}
