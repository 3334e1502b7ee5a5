package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Triplet is an anchor with a same-label positive and an opposite-label negative.
type Triplet struct {
	Anchor      []float64
	Positive    []float64
	Negative    []float64
	AnchorLabel float64
}

// Mode tells how a TripletDataset produces samples.
type Mode int

const (
	// ModeSampled draws positive and negative on every Get.
	ModeSampled Mode = iota
	// ModeFixed serves rows of a FixedTripletCache.
	ModeFixed
)

func (m Mode) String() string {
	if m == ModeFixed {
		return "fixed"
	}
	return "sampled"
}

// TripletConfig configures NewTripletDataset.
type TripletConfig struct {
	// Training marks the training split.  Sampling behaves the same in both
	// cases; the flag is reported for bookkeeping only.
	Training bool

	// Oversample replaces the store with its oversampled form.
	Oversample bool

	// UseFixedTriplets builds a FixedTripletCache eagerly from FixedSeed.
	UseFixedTriplets bool

	// FixedSeed seeds the cache.  nil means a clock-derived seed.
	FixedSeed *int64

	// PerRowAnchorLabels makes fixed rows carry their own label instead of
	// the label of the last record.
	PerRowAnchorLabels bool

	// Rand drives on-the-fly sampling.  nil means a clock-seeded generator.
	Rand *rand.Rand

	Logger logging.Logger
}

// TripletDataset samples triplets from a store partitioned by first-task label.
type TripletDataset struct {
	store      *molecule.Store
	part       molecule.Partition
	training   bool
	oversample bool
	useFixed   bool
	perRow     bool
	fixedSeed  *int64
	multiplier int
	cache      *FixedTripletCache
	rng        *rand.Rand
	logger     logging.Logger
}

// NewTripletDataset wraps store.  Oversample and UseFixedTriplets together is
// a configuration error.
func NewTripletDataset(store *molecule.Store, cfg TripletConfig) (*TripletDataset, error) {
	if cfg.Oversample && cfg.UseFixedTriplets {
		return nil, errors.New(errors.CodeInvalidTripletConfig, "triplet dataset initiated with wrong parameters").
			WithDetail(fmt.Sprintf("oversample(value: %t) and use_fixed_triplets(value: %t)", cfg.Oversample, cfg.UseFixedTriplets))
	}

	d := &TripletDataset{
		store:      store,
		training:   cfg.Training,
		oversample: cfg.Oversample,
		useFixed:   cfg.UseFixedTriplets,
		perRow:     cfg.PerRowAnchorLabels,
		rng:        cfg.Rand,
		logger:     logging.OrDefault(cfg.Logger).Named("triplets"),
	}
	if d.rng == nil {
		d.rng = NewRand()
	}

	if cfg.Oversample {
		over, mult, err := Oversample(store)
		if err != nil {
			return nil, err
		}
		d.store, d.multiplier = over, mult
		if mult == 0 {
			d.logger.Warn("oversampling multiplier is 0; label-1 records were dropped",
				logging.Int("records", store.Len()))
		}
	}
	d.part = d.store.Partition()

	if cfg.UseFixedTriplets {
		seed := time.Now().UnixNano()
		if cfg.FixedSeed != nil {
			seed = *cfg.FixedSeed
		} else {
			d.logger.Warn("fixed triplets requested without a seed; triplets are not reproducible",
				logging.Int64("seed", seed))
		}
		if err := d.RefreshFixedTriplets(seed); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *TripletDataset) Len() int                      { return d.store.Len() }
func (d *TripletDataset) Store() *molecule.Store        { return d.store }
func (d *TripletDataset) Partition() molecule.Partition { return d.part }
func (d *TripletDataset) Indices0() []int               { return d.part.Indices0 }
func (d *TripletDataset) Indices1() []int               { return d.part.Indices1 }
func (d *TripletDataset) Training() bool                { return d.training }
func (d *TripletDataset) Oversampled() bool             { return d.oversample }
func (d *TripletDataset) Multiplier() int               { return d.multiplier }

// FixedTriplets returns the current cache, nil outside fixed mode.
func (d *TripletDataset) FixedTriplets() *FixedTripletCache { return d.cache }

// Mode reports whether Get serves cached rows or samples on the fly.
func (d *TripletDataset) Mode() Mode {
	if d.useFixed {
		return ModeFixed
	}
	return ModeSampled
}

// FixedSeed returns the seed of the current cache.
func (d *TripletDataset) FixedSeed() (int64, bool) {
	if d.fixedSeed == nil {
		return 0, false
	}
	return *d.fixedSeed, true
}

// Get returns triplet i.  In fixed mode it is cache row i; otherwise the
// positive comes from the anchor's partition and the negative from the
// opposite one, both drawn uniformly.
func (d *TripletDataset) Get(i int) (Triplet, error) {
	if d.useFixed {
		return d.cache.Row(i)
	}
	if err := checkIndex(i, d.store.Len()); err != nil {
		return Triplet{}, err
	}
	label := d.store.FirstLabel(i)
	same, opposite := d.part.Of(label)
	if len(same) == 0 || len(opposite) == 0 {
		return Triplet{}, emptyPartitionError(i, label, d.part)
	}
	pos := pick(d.rng, same)
	neg := pick(d.rng, opposite)
	return Triplet{
		Anchor:      d.store.Features(i),
		Positive:    d.store.Features(pos),
		Negative:    d.store.Features(neg),
		AnchorLabel: label,
	}, nil
}

// PosWeights returns (1, count0/count1).
func (d *TripletDataset) PosWeights() ([2]float64, error) {
	if len(d.part.Indices1) == 0 {
		return [2]float64{}, errors.New(errors.ErrCodeMinorityClassMissing, "positive weight undefined without label-1 records")
	}
	return [2]float64{1, float64(len(d.part.Indices0)) / float64(len(d.part.Indices1))}, nil
}

// RefreshFixedTriplets rebuilds the cache from seed and records the seed.
// Two datasets over the same store refreshed with the same seed serve
// identical rows.
func (d *TripletDataset) RefreshFixedTriplets(seed int64) error {
	if !d.useFixed {
		return errors.InvalidState("fixed triplets are not enabled for this dataset")
	}
	cache, err := BuildFixedTriplets(d.store, d.part, seed, d.perRow)
	if err != nil {
		return err
	}
	d.cache = cache
	d.fixedSeed = &seed
	if label, scalar := cache.ScalarAnchorLabel(); scalar && cache.Len() > 0 {
		d.logger.Warn("fixed triplets use the last record label for every row",
			logging.Float64("anchor_label", label),
			logging.Int64("seed", seed))
	}
	return nil
}
