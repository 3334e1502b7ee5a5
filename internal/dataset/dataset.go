// Package dataset wraps a molecule.Store into the sampling datasets used for
// training: PairDataset for regression-style pairs and TripletDataset for
// anchor/positive/negative triplets, plus a batching Loader.
package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Dataset is a random-access sample source.
type Dataset[T any] interface {
	Len() int
	Get(i int) (T, error)
}

// NewRand returns a generator seeded from the clock.  Datasets fall back to it
// when no generator is injected.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeededRand returns a generator with a fixed seed.
func NewSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return errors.New(errors.ErrCodeIndexOutOfRange, "index out of range").
			WithDetail(fmt.Sprintf("i=%d len=%d", i, n))
	}
	return nil
}

func pick(rng *rand.Rand, from []int) int {
	return from[rng.Intn(len(from))]
}
