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

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to a 64-bit hash. A Table reduces the hash modulo its
// capacity to obtain the key's home slot and probes linearly from there, so
// the hasher only controls where a run starts, never how it is walked. A
// Hasher must be deterministic for the lifetime of the table.
type Hasher interface {
	Hash(key uint64) uint64
}

// HasherFunc adapts an ordinary function to the Hasher interface.
type HasherFunc func(key uint64) uint64

// Hash implements Hasher.
func (f HasherFunc) Hash(key uint64) uint64 {
	return f(key)
}

// IdentityHasher is the default Hasher. The home slot of a key is key mod
// capacity.
type IdentityHasher struct{}

// Hash implements Hasher.
func (IdentityHasher) Hash(key uint64) uint64 {
	return key
}

// XXHasher hashes the little-endian encoding of the key with xxHash64 seeded
// with Seed. Use it when keys are clustered (e.g. sequential ids that share a
// stride with the capacity) and key mod capacity would produce long runs.
type XXHasher struct {
	Seed uint64
}

// Hash implements Hasher.
func (h XXHasher) Hash(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	if h.Seed == 0 {
		return xxhash.Sum64(buf[:])
	}
	d := xxhash.NewWithSeed(h.Seed)
	_, _ = d.Write(buf[:])
	return d.Sum64()
}
