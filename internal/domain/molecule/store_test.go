package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

func sampleStore(t *testing.T, labels ...float64) *Store {
	t.Helper()
	recs := make([]Record, len(labels))
	for i, l := range labels {
		recs[i] = Record{Features: []float64{float64(i), float64(i) * 10}, Label: []float64{l}, ID: string(rune('a' + i))}
	}
	s, err := NewStoreFromRecords(recs)
	require.NoError(t, err)
	return s
}

func TestNewStore_LengthMismatch(t *testing.T) {
	_, err := NewStore([][]float64{{1}}, [][]float64{{0}, {1}}, []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreInvariant))
}

func TestNewStore_RaggedRows(t *testing.T) {
	_, err := NewStore([][]float64{{1, 2}, {1}}, [][]float64{{0}, {1}}, []string{"a", "b"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreInvariant))

	_, err = NewStore([][]float64{{1}, {1}}, [][]float64{{0}, {1, 0}}, []string{"a", "b"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoreInvariant))
}

func TestStore_Accessors(t *testing.T) {
	s := sampleStore(t, 0, 1, 0)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, 1, s.NumTasks())
	assert.Equal(t, []float64{1, 10}, s.Features(1))
	assert.Equal(t, 1.0, s.FirstLabel(1))
	assert.Equal(t, "b", s.ID(1))
	assert.Equal(t, Record{Features: []float64{2, 20}, Label: []float64{0}, ID: "c"}, s.Record(2))
}

func TestStore_PartitionIsExclusive(t *testing.T) {
	s := sampleStore(t, 0, 1, 0, 1, 0.5, 0)
	p := s.Partition()

	assert.Equal(t, []int{0, 2, 5}, p.Indices0)
	assert.Equal(t, []int{1, 3}, p.Indices1)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, p.Indices0...), p.Indices1...) {
		assert.False(t, seen[i], "index %d in both partitions", i)
		seen[i] = true
	}
}

func TestStore_PartitionEmpty(t *testing.T) {
	s, err := NewStore(nil, nil, nil)
	require.NoError(t, err)
	p := s.Partition()
	assert.Empty(t, p.Indices0)
	assert.Empty(t, p.Indices1)
}

func TestPartition_Of(t *testing.T) {
	p := Partition{Indices0: []int{0}, Indices1: []int{1}}
	same, opp := p.Of(1)
	assert.Equal(t, []int{1}, same)
	assert.Equal(t, []int{0}, opp)
	same, opp = p.Of(0)
	assert.Equal(t, []int{0}, same)
	assert.Equal(t, []int{1}, opp)
}

func TestStore_SelectRepeats(t *testing.T) {
	s := sampleStore(t, 0, 1)
	sel := s.Select([]int{1, 1, 0})
	assert.Equal(t, 3, sel.Len())
	assert.Equal(t, []string{"b", "b", "a"}, []string{sel.ID(0), sel.ID(1), sel.ID(2)})
	assert.Equal(t, s.Dim(), sel.Dim())
}

func TestStore_WithLabels(t *testing.T) {
	s := sampleStore(t, 0, 1)
	relabeled, err := s.WithLabels([][]float64{{5}, {6}})
	require.NoError(t, err)
	assert.Equal(t, 6.0, relabeled.FirstLabel(1))
	assert.Equal(t, 1.0, s.FirstLabel(1))

	_, err = s.WithLabels([][]float64{{5}})
	assert.Error(t, err)
}
