// Package verification issues and checks the time-boxed numeric codes that
// prove control of a registered email address.
package verification

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeGenerator yields 6-digit numeric codes drawn uniformly from
// [100000, 999999].
type CodeGenerator interface {
	Generate() string
}

// RandGenerator is a seedable, concurrency-safe CodeGenerator. Equal seeds
// produce equal sequences.
type RandGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandGenerator(seed1, seed2 uint64) *RandGenerator {
	return &RandGenerator{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

// NewSystemGenerator seeds a generator from the runtime's random source.
func NewSystemGenerator() *RandGenerator {
	return NewRandGenerator(rand.Uint64(), rand.Uint64())
}

func (g *RandGenerator) Generate() string {
	g.mu.Lock()
	n := codeMin + g.rnd.IntN(codeMax-codeMin+1)
	g.mu.Unlock()
	return fmt.Sprintf("%06d", n)
}
