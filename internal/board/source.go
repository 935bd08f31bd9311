// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package board

import "math/rand/v2"

// Source supplies the next piece to spawn.
type Source interface {
	Next() Kind
}

// BagSource deals pieces in shuffled bags of all seven kinds, so no kind is
// starved for long.
type BagSource struct {
	rng *rand.Rand
	bag []Kind
}

// NewBagSource returns a BagSource seeded with seed.
func NewBagSource(seed uint64) *BagSource {
	return &BagSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next implements Source.
func (b *BagSource) Next() Kind {
	if len(b.bag) == 0 {
		b.bag = append(b.bag[:0], Kinds...)
		b.rng.Shuffle(len(b.bag), func(i, j int) { b.bag[i], b.bag[j] = b.bag[j], b.bag[i] })
	}
	k := b.bag[0]
	b.bag = b.bag[1:]
	return k
}

// SequenceSource repeats a fixed list of kinds. Useful for replays and tests.
type SequenceSource struct {
	kinds []Kind
	i     int
}

// NewSequenceSource returns a source cycling through kinds. An empty list
// yields O pieces.
func NewSequenceSource(kinds ...Kind) *SequenceSource {
	if len(kinds) == 0 {
		kinds = []Kind{O}
	}
	return &SequenceSource{kinds: kinds}
}

// Next implements Source.
func (s *SequenceSource) Next() Kind {
	k := s.kinds[s.i%len(s.kinds)]
	s.i++
	return k
}
