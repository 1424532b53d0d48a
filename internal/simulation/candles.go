package simulation

import (
	"math/rand/v2"
	"sync"

	"candle-learning-lab/internal/domain"
)

// Sequence is one simulated run of candles: the pattern followed by the actual outcome.
type Sequence [domain.SequenceLength]domain.Color

// CandleSource produces candle sequences.
type CandleSource interface {
	Sequence() Sequence
}

// RandomCandles draws each candle GREEN or RED with equal probability.
// Safe for concurrent use.
type RandomCandles struct {
	mu  sync.Mutex
	rng *rand.Rand // nil uses the global source
}

// NewRandomCandles returns a source backed by the global random generator.
func NewRandomCandles() *RandomCandles {
	return &RandomCandles{}
}

// NewSeededCandles returns a reproducible source.
func NewSeededCandles(seed uint64) *RandomCandles {
	return &RandomCandles{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sequence returns SequenceLength independent uniform colors.
func (r *RandomCandles) Sequence() Sequence {
	var seq Sequence
	if r.rng == nil {
		for i := range seq {
			seq[i] = coin(rand.IntN(2))
		}
		return seq
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range seq {
		seq[i] = coin(r.rng.IntN(2))
	}
	return seq
}

func coin(n int) domain.Color {
	if n == 0 {
		return domain.ColorGreen
	}
	return domain.ColorRed
}

// FixedCandles replays the given sequences in order, wrapping around.
// Safe for concurrent use.
type FixedCandles struct {
	mu   sync.Mutex
	seqs []Sequence
	next int
}

// NewFixedCandles creates a source over seqs. It panics on an empty list.
func NewFixedCandles(seqs ...Sequence) *FixedCandles {
	if len(seqs) == 0 {
		panic("simulation: NewFixedCandles needs at least one sequence")
	}
	return &FixedCandles{seqs: seqs}
}

// Sequence returns the next configured sequence.
func (f *FixedCandles) Sequence() Sequence {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq := f.seqs[f.next%len(f.seqs)]
	f.next++
	return seq
}

var (
	_ CandleSource = (*RandomCandles)(nil)
	_ CandleSource = (*FixedCandles)(nil)
)
