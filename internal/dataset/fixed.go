package dataset

import (
	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// FixedTripletCache is a precomputed, seed-reproducible set of triplets, one
// per store record.  Anchors are the records themselves; positives and
// negatives are kept as indices into the store.
type FixedTripletCache struct {
	store           *molecule.Store
	seed            int64
	positiveIndices []int
	negativeIndices []int

	// anchorLabels is set only when labels are tracked per row.
	anchorLabels []float64
	scalarLabel  float64
}

// BuildFixedTriplets draws, for every record in store order, a positive from
// the record's own partition and then a negative from the opposite one, using
// a generator private to this call and seeded with seed.
//
// Unless perRowLabels is set, every row reports the label of the last record
// as its anchor label.
func BuildFixedTriplets(store *molecule.Store, part molecule.Partition, seed int64, perRowLabels bool) (*FixedTripletCache, error) {
	n := store.Len()
	c := &FixedTripletCache{
		store:           store,
		seed:            seed,
		positiveIndices: make([]int, n),
		negativeIndices: make([]int, n),
	}
	if perRowLabels {
		c.anchorLabels = make([]float64, n)
	}

	rng := NewSeededRand(seed)
	for i := 0; i < n; i++ {
		label := store.FirstLabel(i)
		same, opposite := part.Of(label)
		if len(same) == 0 || len(opposite) == 0 {
			return nil, emptyPartitionError(i, label, part)
		}
		c.positiveIndices[i] = pick(rng, same)
		c.negativeIndices[i] = pick(rng, opposite)
		if perRowLabels {
			c.anchorLabels[i] = label
		}
		c.scalarLabel = label
	}
	return c, nil
}

func (c *FixedTripletCache) Len() int    { return len(c.positiveIndices) }
func (c *FixedTripletCache) Seed() int64 { return c.seed }

// PositiveIndices returns the drawn positive row for every anchor.
func (c *FixedTripletCache) PositiveIndices() []int { return c.positiveIndices }

// NegativeIndices returns the drawn negative row for every anchor.
func (c *FixedTripletCache) NegativeIndices() []int { return c.negativeIndices }

// ScalarAnchorLabel returns the single label shared by all rows, and false
// when the cache tracks labels per row.
func (c *FixedTripletCache) ScalarAnchorLabel() (float64, bool) {
	if c.anchorLabels != nil {
		return 0, false
	}
	return c.scalarLabel, true
}

// Row returns cached triplet i.
func (c *FixedTripletCache) Row(i int) (Triplet, error) {
	if err := checkIndex(i, c.Len()); err != nil {
		return Triplet{}, err
	}
	label := c.scalarLabel
	if c.anchorLabels != nil {
		label = c.anchorLabels[i]
	}
	return Triplet{
		Anchor:      c.store.Features(i),
		Positive:    c.store.Features(c.positiveIndices[i]),
		Negative:    c.store.Features(c.negativeIndices[i]),
		AnchorLabel: label,
	}, nil
}

func emptyPartitionError(i int, label float64, part molecule.Partition) error {
	return errors.Newf(errors.CodeEmptyPartition,
		"cannot draw triplet for record %d (label %g): count0=%d count1=%d",
		i, label, len(part.Indices0), len(part.Indices1))
}
