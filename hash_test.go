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
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

type userID string

func TestStringHash(t *testing.T) {
	require.Equal(t, xxhash.Sum64String("abc"), StringHash("abc"))
	require.Equal(t, StringHash("abc"), StringHash(userID("abc")))
	require.NotEqual(t, StringHash("abc"), StringHash("abd"))
}

func TestSeededStringHash(t *testing.T) {
	h1 := SeededStringHash[string](1)
	h2 := SeededStringHash[string](2)
	require.Equal(t, h1("abc"), h1("abc"))
	require.Equal(t, h1("abc"), SeededStringHash[string](1)("abc"))
	require.NotEqual(t, h1("abc"), h2("abc"))
	require.NotEqual(t, StringHash("abc"), h1("abc"))
}

func TestIntegerHash(t *testing.T) {
	require.Equal(t, IntegerHash(int64(-1)), IntegerHash(int32(-1)))
	require.Equal(t, IntegerHash(uint8(7)), IntegerHash(7))
	require.NotEqual(t, IntegerHash(1), IntegerHash(2))
}

func TestHashHelpersDrive(t *testing.T) {
	d := New[userID, int](0, StringHash[userID])
	for i, id := range []userID{"ann", "bob", "cy"} {
		mustInsert(t, d, id, i)
	}
	require.EqualValues(t, 1, *d.Get("bob"))

	s := New[string, bool](0, SeededStringHash[string](42))
	mustInsert(t, s, "x", true)
	require.True(t, s.Contains("x"))
}
