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

import "fmt"

// Stats is a snapshot of the internal bookkeeping of a Dictionary.
type Stats struct {
	// Len is the number of entries across both tables.
	Len int
	// Capacity is the value returned by Dictionary.Capacity.
	Capacity int
	// WriteLen and WriteCapacity describe the table receiving new entries.
	WriteLen      int
	WriteCapacity int
	// MovingFromLen and MovingFromCapacity describe the table being drained.
	// Both are zero when Migrating is false.
	MovingFromLen      int
	MovingFromCapacity int
	// MovingFromMarker is the next slot the migration will examine.
	MovingFromMarker int
	Migrating        bool
	// Growths is the number of growth episodes started since New.
	Growths uint64
	// Migrated is the number of entries moved between tables since New.
	Migrated uint64
}

// Stats returns a snapshot of the Dictionary's bookkeeping.
func (d *Dictionary[K, V]) Stats() Stats {
	w := &d.tables[d.writeTable]
	s := Stats{
		Len:           d.Size(),
		Capacity:      d.Capacity(),
		WriteLen:      int(w.size),
		WriteCapacity: int(w.capacity),
		Migrating:     d.Migrating(),
		Growths:       d.growths,
		Migrated:      d.migrated,
	}
	if s.Migrating {
		m := &d.tables[d.movingFrom]
		s.MovingFromLen = int(m.size)
		s.MovingFromCapacity = int(m.capacity)
		s.MovingFromMarker = int(d.movingFromMarker)
	}
	return s
}

func (s Stats) String() string {
	if !s.Migrating {
		return fmt.Sprintf("len=%d capacity=%d growths=%d migrated=%d",
			s.Len, s.Capacity, s.Growths, s.Migrated)
	}
	return fmt.Sprintf("len=%d capacity=%d write=%d/%d moving-from=%d/%d marker=%d growths=%d migrated=%d",
		s.Len, s.Capacity, s.WriteLen, s.WriteCapacity, s.MovingFromLen, s.MovingFromCapacity,
		s.MovingFromMarker, s.Growths, s.Migrated)
}
