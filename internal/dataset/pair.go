package dataset

import (
	"math"
	"math/rand"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
)

// Pair is two fingerprints and the element-wise absolute label difference.
type Pair struct {
	A      []float64
	B      []float64
	Target []float64
}

// PairDataset yields, for index i, record i paired with a uniformly random
// partner j drawn on every call.
type PairDataset struct {
	store *molecule.Store
	rng   *rand.Rand
}

// NewPairDataset wraps store.  A nil rng means a clock-seeded generator.
func NewPairDataset(store *molecule.Store, rng *rand.Rand) *PairDataset {
	if rng == nil {
		rng = NewRand()
	}
	return &PairDataset{store: store, rng: rng}
}

func (d *PairDataset) Len() int               { return d.store.Len() }
func (d *PairDataset) Store() *molecule.Store { return d.store }

// Get returns (features[i], features[j], |labels[i]-labels[j]|).
func (d *PairDataset) Get(i int) (Pair, error) {
	if err := checkIndex(i, d.store.Len()); err != nil {
		return Pair{}, err
	}
	j := d.rng.Intn(d.store.Len())
	li, lj := d.store.Label(i), d.store.Label(j)
	target := make([]float64, len(li))
	for k := range li {
		target[k] = math.Abs(li[k] - lj[k])
	}
	return Pair{A: d.store.Features(i), B: d.store.Features(j), Target: target}, nil
}
