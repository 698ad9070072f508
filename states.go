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

// Each slot in a table has a 2-bit state which can be one of empty, used or
// removed (a tombstone). They have the following bit patterns:
//
//	  empty: 0 0
//	   used: 0 1
//	removed: 1 0
//
// The fourth pattern (1 1) is never written.
type slotState uint64

const (
	slotEmpty   slotState = 0b00
	slotUsed    slotState = 0b01
	slotRemoved slotState = 0b10

	slotStateBits  = 2
	slotStateMask  = 0b11
	statesPerWord  = 64 / slotStateBits
	statesWordLog2 = 5
)

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotUsed:
		return "used"
	case slotRemoved:
		return "removed"
	default:
		return "invalid"
	}
}

// slotStates is a dense bit array holding statesPerWord slot states per
// word. Slot i lives in word i/32 at bit offset 2*(i%32).
type slotStates []uint64

// stateWords returns the number of words needed to hold the states of a
// table with the specified capacity. One extra word is always present so
// that tiny tables still have backing storage.
func stateWords(capacity uint64) int {
	return int(capacity/statesPerWord + 1)
}

func (s slotStates) get(i uint64) slotState {
	word := i >> statesWordLog2
	shift := (i - (word << statesWordLog2)) * slotStateBits
	return slotState((s[word] >> shift) & slotStateMask)
}

func (s slotStates) set(i uint64, v slotState) {
	word := i >> statesWordLog2
	shift := (i - (word << statesWordLog2)) * slotStateBits
	s[word] = (s[word] &^ (slotStateMask << shift)) | (uint64(v) << shift)
}

// reset marks every slot empty.
func (s slotStates) reset() {
	clear(s)
}
