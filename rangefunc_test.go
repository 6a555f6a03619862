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

//go:build go1.23

package probetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeFunc(t *testing.T) {
	m := New[uint64, int]()
	for i := uint64(0); i < 10; i++ {
		m.Set(i, int(i)*2)
	}
	var sum int
	for k, v := range m.All {
		require.EqualValues(t, k*2, v)
		sum += v
	}
	require.EqualValues(t, 90, sum)

	var n int
	for range m.All {
		if n++; n == 3 {
			break
		}
	}
	require.EqualValues(t, 3, n)
}
