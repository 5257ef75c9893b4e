package codec

import (
	"math/rand"
	"sync"
	"time"
)

// SeedSource provides frame seeds. Seed must return a value in [1,255].
type SeedSource interface {
	Seed() byte
}

type RandomSeedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSeedSource(src rand.Source) *RandomSeedSource {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomSeedSource{rng: rand.New(src)}
}

func (r *RandomSeedSource) Seed() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return byte(1 + r.rng.Intn(255))
}

// FixedSeed always returns the same seed.
type FixedSeed byte

func (f FixedSeed) Seed() byte {
	return byte(f)
}

// SeedSequence hands out its seeds in order and wraps around.
type SeedSequence struct {
	mu    sync.Mutex
	seeds []byte
	idx   int
}

func NewSeedSequence(seeds ...byte) *SeedSequence {
	return &SeedSequence{seeds: seeds}
}

func (s *SeedSequence) Seed() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeds) == 0 {
		return 0
	}
	seed := s.seeds[s.idx]
	s.idx = (s.idx + 1) % len(s.seeds)
	return seed
}
