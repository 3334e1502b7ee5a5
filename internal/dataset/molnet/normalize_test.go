package molnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
)

func regressionStore(t *testing.T, labels ...[]float64) *molecule.Store {
	t.Helper()
	recs := make([]molecule.Record, len(labels))
	for i, l := range labels {
		recs[i] = molecule.Record{Features: []float64{0}, Label: l, ID: "C"}
	}
	s, err := molecule.NewStoreFromRecords(recs)
	require.NoError(t, err)
	return s
}

func TestNormalizer(t *testing.T) {
	store := regressionStore(t, []float64{1, 5}, []float64{3, 5}, []float64{5, 5})
	n := FitNormalizer(store)

	assert.InDeltaSlice(t, []float64{3, 5}, n.Mean, 1e-12)
	assert.InDelta(t, 1.632993161855452, n.Std[0], 1e-12)
	assert.Equal(t, 1.0, n.Std[1])

	out, err := n.Apply(store)
	require.NoError(t, err)
	assert.InDelta(t, -1.224744871391589, out.Label(0)[0], 1e-12)
	assert.InDelta(t, 0, out.Label(1)[0], 1e-12)
	assert.InDelta(t, 0, out.Label(2)[1], 1e-12)
	assert.InDelta(t, 1, n.Invert(0, out.Label(0)[0]), 1e-12)

	// The input keeps its labels.
	assert.Equal(t, []float64{1, 5}, store.Label(0))
}

func TestNormalizer_EmptyStore(t *testing.T) {
	n := FitNormalizer(regressionStore(t))
	assert.Empty(t, n.Mean)
}
