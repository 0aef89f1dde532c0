// Package entropy provides the injected randomness source for the simulation.
// Economic invariants never depend on it: it only breaks recipe ties, moves
// prices, picks cosmetic styles, and rolls zone growth.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"

	xrand "golang.org/x/exp/rand"
)

// Source is the randomness the simulation consumes. Tests may supply a
// scripted implementation.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Engine is a seeded, reproducible Source.
type Engine struct {
	*xrand.Rand
	seed uint64
}

// New creates an engine from seed. A zero seed draws one from crypto/rand,
// which makes the run non-reproducible; the chosen seed is logged.
func New(seed uint64) *Engine {
	if seed == 0 {
		seed = CryptoSeed()
		slog.Info("entropy seeded from crypto/rand", "seed", seed)
	}
	return &Engine{Rand: xrand.New(xrand.NewSource(seed)), seed: seed}
}

// Seed returns the seed the engine was created with.
func (e *Engine) Seed() uint64 {
	return e.seed
}

// PTrue returns true with probability p.
func PTrue(s Source, p float64) bool {
	return s.Float64() < p
}

// Pick returns a uniformly chosen index in [0, n), or -1 when n is 0.
func Pick(s Source, n int) int {
	if n <= 0 {
		return -1
	}
	if n == 1 {
		return 0
	}
	return s.Intn(n)
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Should never happen; fall back to a fixed seed.
		return 42
	}
	if s := binary.LittleEndian.Uint64(buf[:]); s != 0 {
		return s
	}
	return 42
}

// Fixed is a scripted Source for tests: it replays floats in order and
// answers Intn with the same cursor. When the script runs out it repeats
// the last value.
type Fixed struct {
	Floats []float64
	pos    int
}

// Float64 returns the next scripted value (0 when empty).
func (f *Fixed) Float64() float64 {
	if len(f.Floats) == 0 {
		return 0
	}
	v := f.Floats[min(f.pos, len(f.Floats)-1)]
	f.pos++
	return v
}

// Intn maps the next scripted float onto [0, n).
func (f *Fixed) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(f.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
