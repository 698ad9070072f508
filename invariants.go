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
	"strings"
)

func (d *Dictionary[K, V]) checkInvariants() {
	if invariants {
		d.verify()
	}
}

// verify panics if the two-table bookkeeping is inconsistent. It is called
// after every mutation when built with the invariants tag, and directly by
// tests.
func (d *Dictionary[K, V]) verify() {
	if d.writeTable != 0 && d.writeTable != 1 {
		panic(fmt.Sprintf("invariant failed: write table %d\n%s", d.writeTable, d.debugString()))
	}
	if d.movingFrom == d.writeTable {
		panic(fmt.Sprintf("invariant failed: moving-from table == write table\n%s", d.debugString()))
	}
	if d.movingFrom != noTable && d.movingFrom != 1-d.writeTable {
		panic(fmt.Sprintf("invariant failed: moving-from table %d\n%s", d.movingFrom, d.debugString()))
	}

	for ti := range d.tables {
		t := &d.tables[ti]
		if t.capacity&(t.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: table %d capacity %d is not a power of two\n%s",
				ti, t.capacity, d.debugString()))
		}
		if !t.allocated() {
			continue
		}
		if len(t.keys) < int(t.capacity) || len(t.values) < int(t.capacity) ||
			len(t.states) < stateWords(t.capacity) {
			panic(fmt.Sprintf("invariant failed: table %d buffers shorter than capacity %d", ti, t.capacity))
		}
		active := ti == d.writeTable || ti == d.movingFrom

		var used uint64
		for i := uint64(0); i < t.capacity; i++ {
			switch s := t.states.get(i); s {
			case slotEmpty, slotRemoved:
			case slotUsed:
				used++
				if !active {
					panic(fmt.Sprintf("invariant failed: idle table %d has used slot %d\n%s",
						ti, i, d.debugString()))
				}
				key := t.keys[i]
				h := d.hash(key)
				if j, ok := t.find(h, key); !ok || j != i {
					panic(fmt.Sprintf("invariant failed: table %d slot %d: %v not found [h=%016x]\n%s",
						ti, i, key, h, d.debugString()))
				}
				if ti == d.movingFrom {
					if _, ok := d.tables[d.writeTable].find(h, key); ok {
						panic(fmt.Sprintf("invariant failed: %v present in both tables\n%s",
							key, d.debugString()))
					}
				}
			default:
				panic(fmt.Sprintf("invariant failed: table %d slot %d: invalid state %02b", ti, i, s))
			}
		}
		if used != t.size {
			panic(fmt.Sprintf("invariant failed: table %d: found %d used slots, but size is %d\n%s",
				ti, used, t.size, d.debugString()))
		}
	}

	if d.movingFrom != noTable && d.tables[d.movingFrom].size == 0 {
		panic(fmt.Sprintf("invariant failed: migrating from an empty table\n%s", d.debugString()))
	}
}

func (d *Dictionary[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "write=%d moving-from=%d marker=%d rate=%d\n",
		d.writeTable, d.movingFrom, d.movingFromMarker, d.rate)
	for ti := range d.tables {
		t := &d.tables[ti]
		fmt.Fprintf(&buf, "table %d: capacity=%d size=%d\n", ti, t.capacity, t.size)
		for i := uint64(0); i < t.capacity; i++ {
			switch s := t.states.get(i); s {
			case slotUsed:
				fmt.Fprintf(&buf, "  %4d: %v [h=%016x]\n", i, t.keys[i], d.hash(t.keys[i]))
			default:
				fmt.Fprintf(&buf, "  %4d: %s\n", i, s)
			}
		}
	}
	return buf.String()
}
