package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

func TestPairDataset_TargetIsAbsoluteLabelDifference(t *testing.T) {
	recs := []molecule.Record{
		{Features: []float64{0}, Label: []float64{-1.5, 2}, ID: "a"},
		{Features: []float64{1}, Label: []float64{0.5, 2}, ID: "b"},
		{Features: []float64{2}, Label: []float64{3, -1}, ID: "c"},
	}
	store, err := molecule.NewStoreFromRecords(recs)
	require.NoError(t, err)

	ds := NewPairDataset(store, NewSeededRand(1))
	assert.Equal(t, 3, ds.Len())

	for n := 0; n < 50; n++ {
		for i := 0; i < ds.Len(); i++ {
			p, err := ds.Get(i)
			require.NoError(t, err)
			assert.Equal(t, store.Features(i), p.A)

			j := int(p.B[0])
			for k := range p.Target {
				assert.Equal(t, math.Abs(store.Label(i)[k]-store.Label(j)[k]), p.Target[k])
				assert.GreaterOrEqual(t, p.Target[k], 0.0)
			}
		}
	}
}

func TestPairDataset_PartnerIsRedrawnEachCall(t *testing.T) {
	ds := NewPairDataset(binaryStore(t, 50, 50), NewSeededRand(3))

	partners := map[float64]bool{}
	for n := 0; n < 200; n++ {
		p, err := ds.Get(0)
		require.NoError(t, err)
		partners[p.B[0]] = true
	}
	assert.Greater(t, len(partners), 10)
}

func TestPairDataset_OutOfRange(t *testing.T) {
	ds := NewPairDataset(binaryStore(t, 2, 0), nil)
	for _, i := range []int{-1, 2} {
		_, err := ds.Get(i)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeIndexOutOfRange))
	}
}
