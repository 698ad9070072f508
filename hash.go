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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Integer is the set of key types accepted by IntegerHash.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// StringHash hashes a string key with xxhash64.
func StringHash[K ~string](key K) uint64 {
	return xxhash.Sum64String(string(key))
}

// SeededStringHash returns a HashFunc which mixes seed into the xxhash64 of
// a string key. Different seeds produce unrelated probe sequences for the
// same keys.
func SeededStringHash[K ~string](seed uint64) HashFunc[K] {
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], seed)
	return func(key K) uint64 {
		d := xxhash.New()
		_, _ = d.Write(prefix[:])
		_, _ = d.WriteString(string(key))
		return d.Sum64()
	}
}

// IntegerHash hashes an integer key with xxhash64 over its 8-byte little
// endian encoding. Sign-extended values hash the same regardless of the
// width of K.
func IntegerHash[K Integer](key K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return xxhash.Sum64(buf[:])
}
