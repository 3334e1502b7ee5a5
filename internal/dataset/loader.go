package dataset

import (
	"fmt"
	"math/rand"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	// Shuffle permutes the sample order at construction.
	Shuffle bool
	// DropLast discards a trailing partial batch.
	DropLast bool
	// Rand drives shuffling.  nil means a clock-seeded generator.
	Rand *rand.Rand
}

// Loader groups dataset samples into batches following a sample order that
// Reshuffle can permute between epochs.
type Loader[T any] struct {
	ds        Dataset[T]
	batchSize int
	dropLast  bool
	rng       *rand.Rand
	order     []int
}

// NewLoader builds a Loader over ds.
func NewLoader[T any](ds Dataset[T], cfg LoaderConfig) (*Loader[T], error) {
	if cfg.BatchSize < 1 {
		return nil, errors.InvalidParam(fmt.Sprintf("batch size must be >= 1, got %d", cfg.BatchSize))
	}
	l := &Loader[T]{ds: ds, batchSize: cfg.BatchSize, dropLast: cfg.DropLast, rng: cfg.Rand}
	if l.rng == nil {
		l.rng = NewRand()
	}
	l.resetOrder()
	if cfg.Shuffle {
		l.Reshuffle()
	}
	return l, nil
}

func (l *Loader[T]) resetOrder() {
	l.order = make([]int, l.ds.Len())
	for i := range l.order {
		l.order[i] = i
	}
}

// Dataset returns the wrapped dataset.
func (l *Loader[T]) Dataset() Dataset[T] { return l.ds }

// BatchSize returns the configured batch size.
func (l *Loader[T]) BatchSize() int { return l.batchSize }

// Reshuffle draws a fresh permutation of the sample order.  It also picks up
// a dataset whose length changed since the last call.
func (l *Loader[T]) Reshuffle() {
	if len(l.order) != l.ds.Len() {
		l.resetOrder()
	}
	l.rng.Shuffle(len(l.order), func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
}

// NumBatches returns how many batches one pass yields.
func (l *Loader[T]) NumBatches() int {
	n := len(l.order)
	if l.dropLast {
		return n / l.batchSize
	}
	return (n + l.batchSize - 1) / l.batchSize
}

// Batch returns batch b of the current pass.
func (l *Loader[T]) Batch(b int) ([]T, error) {
	if err := checkIndex(b, l.NumBatches()); err != nil {
		return nil, err
	}
	start := b * l.batchSize
	end := start + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	out := make([]T, 0, end-start)
	for _, idx := range l.order[start:end] {
		item, err := l.ds.Get(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
