package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
)

// storeWithLabels builds a store whose row i has features {i} and the given label.
func storeWithLabels(t *testing.T, labels ...float64) *molecule.Store {
	t.Helper()
	recs := make([]molecule.Record, len(labels))
	for i, l := range labels {
		recs[i] = molecule.Record{
			Features: []float64{float64(i)},
			Label:    []float64{l},
			ID:       "mol" + string(rune('A'+i%26)),
		}
	}
	s, err := molecule.NewStoreFromRecords(recs)
	require.NoError(t, err)
	return s
}

// binaryStore returns n0 label-0 rows followed by n1 label-1 rows.
func binaryStore(t *testing.T, n0, n1 int) *molecule.Store {
	t.Helper()
	labels := make([]float64, 0, n0+n1)
	for i := 0; i < n0; i++ {
		labels = append(labels, 0)
	}
	for i := 0; i < n1; i++ {
		labels = append(labels, 1)
	}
	return storeWithLabels(t, labels...)
}

func int64Ptr(v int64) *int64 { return &v }
