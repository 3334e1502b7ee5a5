package molnet

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

func smilesStore(t *testing.T, smiles ...string) *molecule.Store {
	t.Helper()
	recs := make([]molecule.Record, len(smiles))
	for i, s := range smiles {
		recs[i] = molecule.Record{Features: []float64{float64(i)}, Label: []float64{float64(i % 2)}, ID: s}
	}
	s, err := molecule.NewStoreFromRecords(recs)
	require.NoError(t, err)
	return s
}

func numberedStore(t *testing.T, n int) *molecule.Store {
	t.Helper()
	smiles := make([]string, n)
	for i := range smiles {
		smiles[i] = "C"
	}
	return smilesStore(t, smiles...)
}

func assertPartition(t *testing.T, n int, parts ...[]int) {
	t.Helper()
	var all []int
	for _, p := range parts {
		all = append(all, p...)
	}
	sort.Ints(all)
	require.Len(t, all, n)
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}

func TestIndexSplitter(t *testing.T) {
	train, valid, test, err := IndexSplitter{}.Split(numberedStore(t, 20), DefaultFractions)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, train)
	assert.Equal(t, []int{16, 17}, valid)
	assert.Equal(t, []int{18, 19}, test)
}

func TestRandomSplitter_Reproducible(t *testing.T) {
	store := numberedStore(t, 50)
	tr1, va1, te1, err := RandomSplitter{Seed: 7}.Split(store, DefaultFractions)
	require.NoError(t, err)
	tr2, va2, te2, err := RandomSplitter{Seed: 7}.Split(store, DefaultFractions)
	require.NoError(t, err)

	assert.Equal(t, tr1, tr2)
	assert.Equal(t, va1, va2)
	assert.Equal(t, te1, te2)
	assert.Len(t, tr1, 40)
	assert.Len(t, va1, 5)
	assert.Len(t, te1, 5)
	assertPartition(t, 50, tr1, va1, te1)

	tr3, _, _, err := RandomSplitter{Seed: 8}.Split(store, DefaultFractions)
	require.NoError(t, err)
	assert.NotEqual(t, tr1, tr3)
}

func TestScaffoldSplitter_KeepsScaffoldsTogether(t *testing.T) {
	store := smilesStore(t,
		"c1ccccc1C", "c1ccccc1CC", "c1ccccc1O", "c1ccccc1N", "c1ccccc1CCC", "c1ccccc1Cl",
		"C1CCCCC1C", "C1CCCCC1O",
		"CCO", "CCN",
	)
	train, valid, test, err := ScaffoldSplitter{}.Split(store, Fractions{Train: 0.6, Valid: 0.2, Test: 0.2})
	require.NoError(t, err)
	assertPartition(t, store.Len(), train, valid, test)

	// The six benzene derivatives form the largest group and fill train.  The
	// acyclic pair ties with the cyclohexanes and goes first on its later
	// first index.
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, train)
	assert.ElementsMatch(t, []int{8, 9}, valid)
	assert.ElementsMatch(t, []int{6, 7}, test)
}

func TestScaffoldSplitter_InvalidSmilesGetOwnGroup(t *testing.T) {
	store := smilesStore(t, "CCO", "CC(", "CCN", "c1ccccc1")
	train, valid, test, err := ScaffoldSplitter{}.Split(store, Fractions{Train: 0.5, Valid: 0.25, Test: 0.25})
	require.NoError(t, err)
	assertPartition(t, 4, train, valid, test)
}

func TestSplitters_RejectBadFractions(t *testing.T) {
	store := numberedStore(t, 10)
	for _, s := range []Splitter{IndexSplitter{}, RandomSplitter{}, ScaffoldSplitter{}} {
		_, _, _, err := s.Split(store, Fractions{Train: 0.9, Valid: 0.2})
		require.Error(t, err, s.Name())
		assert.True(t, errors.IsCode(err, errors.ErrCodeSplitConfigInvalid))
	}
}

func TestNewSplitter(t *testing.T) {
	for _, name := range []string{"", "none"} {
		s, err := NewSplitter(name, 1, nil)
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	for _, name := range []string{"random", "index", "scaffold"} {
		s, err := NewSplitter(name, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := NewSplitter("stratified", 1, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSplitConfigInvalid))
}
