package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/testutil"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

const lastLabelWarning = "fixed triplets use the last record label for every row"

type TripletDatasetTestSuite struct {
	suite.Suite
	logger *testutil.MockLogger
	store  *molecule.Store
}

func (s *TripletDatasetTestSuite) SetupTest() {
	s.logger = testutil.NewMockLogger()
	// 8 label-0 rows, 2 label-1 rows, interleaved.
	s.store = storeWithLabels(s.T(), 0, 1, 0, 0, 0, 0, 1, 0, 0, 0)
}

func (s *TripletDatasetTestSuite) labelOf(features []float64) float64 {
	return s.store.FirstLabel(int(features[0]))
}

func (s *TripletDatasetTestSuite) TestOversampleWithFixedIsConfigError() {
	_, err := NewTripletDataset(s.store, TripletConfig{Oversample: true, UseFixedTriplets: true, Logger: s.logger})
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.CodeInvalidTripletConfig))
	s.Contains(err.Error(), "oversample(value: true)")
	s.Contains(err.Error(), "use_fixed_triplets(value: true)")
}

func (s *TripletDatasetTestSuite) TestPlainModeKeepsStore() {
	ds, err := NewTripletDataset(s.store, TripletConfig{Training: true, Logger: s.logger})
	s.Require().NoError(err)

	s.Equal(10, ds.Len())
	s.Same(s.store, ds.Store())
	s.Equal([]int{0, 2, 3, 4, 5, 7, 8, 9}, ds.Indices0())
	s.Equal([]int{1, 6}, ds.Indices1())
	s.Equal(ModeSampled, ds.Mode())
	s.Nil(ds.FixedTriplets())
	_, ok := ds.FixedSeed()
	s.False(ok)
}

func (s *TripletDatasetTestSuite) TestSampledGetRespectsLabels() {
	for _, training := range []bool{true, false} {
		ds, err := NewTripletDataset(s.store, TripletConfig{Training: training, Rand: NewSeededRand(5), Logger: s.logger})
		s.Require().NoError(err)

		for n := 0; n < 20; n++ {
			for i := 0; i < ds.Len(); i++ {
				tr, err := ds.Get(i)
				s.Require().NoError(err)
				s.Equal(s.store.Features(i), tr.Anchor)
				s.Equal(s.store.FirstLabel(i), tr.AnchorLabel)
				s.Equal(tr.AnchorLabel, s.labelOf(tr.Positive))
				s.NotEqual(tr.AnchorLabel, s.labelOf(tr.Negative))
			}
		}
	}
}

func (s *TripletDatasetTestSuite) TestOversampledMode() {
	ds, err := NewTripletDataset(s.store, TripletConfig{Training: true, Oversample: true, Logger: s.logger})
	s.Require().NoError(err)

	s.Equal(4, ds.Multiplier())
	s.Equal(16, ds.Len())
	s.Len(ds.Indices0(), 8)
	s.Len(ds.Indices1(), 8)
	s.True(ds.Oversampled())

	w, err := ds.PosWeights()
	s.Require().NoError(err)
	s.Equal([2]float64{1, 1}, w)
}

func (s *TripletDatasetTestSuite) TestPosWeights() {
	ds, err := NewTripletDataset(binaryStore(s.T(), 80, 20), TripletConfig{Logger: s.logger})
	s.Require().NoError(err)

	w, err := ds.PosWeights()
	s.Require().NoError(err)
	s.Equal([2]float64{1, 4.0}, w)
}

func (s *TripletDatasetTestSuite) TestPosWeightsWithoutMinority() {
	ds, err := NewTripletDataset(binaryStore(s.T(), 3, 0), TripletConfig{Logger: s.logger})
	s.Require().NoError(err)
	_, err = ds.PosWeights()
	s.True(errors.IsCode(err, errors.ErrCodeMinorityClassMissing))
}

func (s *TripletDatasetTestSuite) TestFixedModeIsDeterministicAcrossInstances() {
	cfg := TripletConfig{UseFixedTriplets: true, FixedSeed: int64Ptr(42), Logger: s.logger}
	a, err := NewTripletDataset(s.store, cfg)
	s.Require().NoError(err)
	b, err := NewTripletDataset(s.store, cfg)
	s.Require().NoError(err)

	s.Equal(ModeFixed, a.Mode())
	for i := 0; i < a.Len(); i++ {
		ta, err := a.Get(i)
		s.Require().NoError(err)
		tb, err := b.Get(i)
		s.Require().NoError(err)
		s.Equal(ta, tb)
	}
	s.Equal(a.FixedTriplets().PositiveIndices(), b.FixedTriplets().PositiveIndices())
	s.Equal(a.FixedTriplets().NegativeIndices(), b.FixedTriplets().NegativeIndices())
}

func (s *TripletDatasetTestSuite) TestFixedModeIgnoresInjectedRand() {
	ds, err := NewTripletDataset(s.store, TripletConfig{
		UseFixedTriplets: true, FixedSeed: int64Ptr(1), Rand: NewSeededRand(99), Logger: s.logger,
	})
	s.Require().NoError(err)

	first, err := ds.Get(3)
	s.Require().NoError(err)
	for n := 0; n < 10; n++ {
		again, err := ds.Get(3)
		s.Require().NoError(err)
		s.Equal(first, again)
	}
}

func (s *TripletDatasetTestSuite) TestFixedTripletsRespectPartitions() {
	ds, err := NewTripletDataset(s.store, TripletConfig{
		UseFixedTriplets: true, FixedSeed: int64Ptr(7), PerRowAnchorLabels: true, Logger: s.logger,
	})
	s.Require().NoError(err)

	cache := ds.FixedTriplets()
	for i := 0; i < ds.Len(); i++ {
		label := s.store.FirstLabel(i)
		s.Equal(label, s.store.FirstLabel(cache.PositiveIndices()[i]))
		s.NotEqual(label, s.store.FirstLabel(cache.NegativeIndices()[i]))

		tr, err := ds.Get(i)
		s.Require().NoError(err)
		s.Equal(label, tr.AnchorLabel)
	}
	_, scalar := cache.ScalarAnchorLabel()
	s.False(scalar)
	s.False(s.logger.HasMessage("warn", lastLabelWarning))
}

func (s *TripletDatasetTestSuite) TestFixedAnchorLabelIsLastRecordLabel() {
	// Last record is label 0, so every row reports 0, including label-1 anchors.
	ds, err := NewTripletDataset(s.store, TripletConfig{UseFixedTriplets: true, FixedSeed: int64Ptr(7), Logger: s.logger})
	s.Require().NoError(err)

	label, scalar := ds.FixedTriplets().ScalarAnchorLabel()
	s.True(scalar)
	s.Equal(0.0, label)

	tr, err := ds.Get(1)
	s.Require().NoError(err)
	s.Equal(0.0, tr.AnchorLabel)
	s.True(s.logger.HasMessage("warn", lastLabelWarning))
}

func (s *TripletDatasetTestSuite) TestRefreshSameSeedReproduces() {
	ds, err := NewTripletDataset(s.store, TripletConfig{UseFixedTriplets: true, FixedSeed: int64Ptr(10), Logger: s.logger})
	s.Require().NoError(err)
	initialPos := append([]int(nil), ds.FixedTriplets().PositiveIndices()...)

	s.Require().NoError(ds.RefreshFixedTriplets(11))
	seed, ok := ds.FixedSeed()
	s.True(ok)
	s.Equal(int64(11), seed)
	firstPos := append([]int(nil), ds.FixedTriplets().PositiveIndices()...)
	firstNeg := append([]int(nil), ds.FixedTriplets().NegativeIndices()...)

	s.Require().NoError(ds.RefreshFixedTriplets(11))
	s.Equal(firstPos, ds.FixedTriplets().PositiveIndices())
	s.Equal(firstNeg, ds.FixedTriplets().NegativeIndices())

	s.Require().NoError(ds.RefreshFixedTriplets(10))
	s.Equal(initialPos, ds.FixedTriplets().PositiveIndices())
}

func (s *TripletDatasetTestSuite) TestRefreshOutsideFixedMode() {
	ds, err := NewTripletDataset(s.store, TripletConfig{Logger: s.logger})
	s.Require().NoError(err)
	err = ds.RefreshFixedTriplets(1)
	s.True(errors.IsCode(err, errors.CodeInvalidState))
}

func (s *TripletDatasetTestSuite) TestFixedWithoutSeedWarns() {
	ds, err := NewTripletDataset(s.store, TripletConfig{UseFixedTriplets: true, Logger: s.logger})
	s.Require().NoError(err)
	_, ok := ds.FixedSeed()
	s.True(ok)
	s.True(s.logger.HasMessageContaining("warn", "without a seed"))
}

func (s *TripletDatasetTestSuite) TestEmptyPartition() {
	only0 := binaryStore(s.T(), 4, 0)

	ds, err := NewTripletDataset(only0, TripletConfig{Logger: s.logger})
	s.Require().NoError(err)
	_, err = ds.Get(0)
	s.True(errors.IsCode(err, errors.CodeEmptyPartition))

	_, err = NewTripletDataset(only0, TripletConfig{UseFixedTriplets: true, FixedSeed: int64Ptr(1), Logger: s.logger})
	s.True(errors.IsCode(err, errors.CodeEmptyPartition))
}

func (s *TripletDatasetTestSuite) TestGetOutOfRange() {
	for _, fixed := range []bool{false, true} {
		ds, err := NewTripletDataset(s.store, TripletConfig{UseFixedTriplets: fixed, FixedSeed: int64Ptr(1), Logger: s.logger})
		s.Require().NoError(err)
		_, err = ds.Get(ds.Len())
		s.True(errors.IsCode(err, errors.ErrCodeIndexOutOfRange))
	}
}

func TestTripletDatasetTestSuite(t *testing.T) {
	suite.Run(t, new(TripletDatasetTestSuite))
}

func TestBuildFixedTriplets_SequentialDraws(t *testing.T) {
	store := binaryStore(t, 3, 2)
	part := store.Partition()

	cache, err := BuildFixedTriplets(store, part, 2024, false)
	require.NoError(t, err)

	rng := NewSeededRand(2024)
	for i := 0; i < store.Len(); i++ {
		same, opposite := part.Of(store.FirstLabel(i))
		assert.Equal(t, same[rng.Intn(len(same))], cache.PositiveIndices()[i], "positive %d", i)
		assert.Equal(t, opposite[rng.Intn(len(opposite))], cache.NegativeIndices()[i], "negative %d", i)
	}
	assert.Equal(t, int64(2024), cache.Seed())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "fixed", ModeFixed.String())
	assert.Equal(t, "sampled", ModeSampled.String())
}
