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

import "github.com/pkg/errors"

// ErrAllocationFailed is returned (wrapped) by Insert and GetOrInsert when
// the Allocator refuses the buffers for a larger table. The Dictionary is
// unchanged when this error is returned. Test for it with errors.Is.
var ErrAllocationFailed = errors.New("dictionary: allocation failed")
