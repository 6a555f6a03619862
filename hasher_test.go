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

package probetable

import (
	"encoding/binary"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestIdentityHasher(t *testing.T) {
	m := NewWithCapacity[uint64, int](5)
	for _, k := range []uint64{0, 1, 4, 5, 6, 11, 1 << 63} {
		require.EqualValues(t, k%5, m.home(k))
	}
}

func TestXXHasher(t *testing.T) {
	h := XXHasher{}
	require.Equal(t, h.Hash(12345), h.Hash(12345))
	require.NotEqual(t, h.Hash(1), h.Hash(2))
	require.NotEqual(t, XXHasher{Seed: 1}.Hash(7), XXHasher{Seed: 2}.Hash(7))

	// The seed feeds the digest rather than the key, so a seeded hash is not
	// the unseeded hash of some other key.
	for _, seed := range []uint64{1, 0x9e3779b97f4a7c15} {
		for _, k := range []uint64{0, 7, 1 << 40} {
			seeded := XXHasher{Seed: seed}.Hash(k)
			require.NotEqual(t, XXHasher{}.Hash(k^seed), seeded)

			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], k)
			d := xxhash.NewWithSeed(seed)
			_, _ = d.Write(buf[:])
			require.Equal(t, d.Sum64(), seeded)
		}
	}

	// Keys sharing a stride with the capacity all land in one slot under
	// the identity hasher but are scattered by xxhash.
	const capacity = 64
	identity := make(map[uint64]struct{})
	scattered := make(map[uint64]struct{})
	for i := uint64(0); i < 32; i++ {
		k := i * capacity
		identity[IdentityHasher{}.Hash(k)%capacity] = struct{}{}
		scattered[h.Hash(k)%capacity] = struct{}{}
	}
	require.Len(t, identity, 1)
	require.Greater(t, len(scattered), 8)
}

func TestHasherFunc(t *testing.T) {
	var calls int
	m := NewWithCapacity[uint32, int](8, WithHasher[uint32, int](HasherFunc(func(key uint64) uint64 {
		calls++
		return key * 3
	})))
	m.Set(3, 3)
	require.Greater(t, calls, 0)
	require.EqualValues(t, 1, m.home(3))
	v, ok := m.Get(3)
	require.True(t, ok)
	require.EqualValues(t, 3, v)
}
