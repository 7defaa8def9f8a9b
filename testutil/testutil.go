package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Fill fills buf with pseudo-random bytes.
func (r *RNG) Fill(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(buf)
}

// Sectors returns count sectors of sectorSize pseudo-random bytes.
func (r *RNG) Sectors(count, sectorSize int) []byte {
	buf := make([]byte, count*sectorSize)
	r.Fill(buf)
	return buf
}

// Compressible returns n bytes made of short random runs, the way
// filesystem metadata blocks look: mostly zeros and repeated fields.
func (r *RNG) Compressible(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]byte, n)
	for i := 0; i < n; {
		run := 16 + r.rand.Intn(240)
		if r.rand.Intn(4) == 0 {
			b := byte(r.rand.Intn(256))
			for j := i; j < i+run && j < n; j++ {
				buf[j] = b
			}
		}
		i += run
	}
	return buf
}

// FillSector fills buf with a recognisable pattern derived from tag: each
// byte is tag xor its offset.
func FillSector(buf []byte, tag byte) {
	for i := range buf {
		buf[i] = tag ^ byte(i)
	}
}

// Pattern returns count sectors where sector i carries FillSector(tag+i).
func Pattern(count, sectorSize int, tag byte) []byte {
	buf := make([]byte, count*sectorSize)
	for i := 0; i < count; i++ {
		FillSector(buf[i*sectorSize:(i+1)*sectorSize], tag+byte(i))
	}
	return buf
}
