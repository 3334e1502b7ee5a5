package molnet

import (
	"math/rand"
	"sort"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Fractions are the train/valid/test proportions of a split.
type Fractions struct {
	Train, Valid, Test float64
}

// DefaultFractions is the 80/10/10 split.
var DefaultFractions = Fractions{Train: 0.8, Valid: 0.1, Test: 0.1}

func (f Fractions) validate() error {
	sum := f.Train + f.Valid + f.Test
	if f.Train <= 0 || f.Valid < 0 || f.Test < 0 || sum < 0.999 || sum > 1.001 {
		return errors.Newf(errors.ErrCodeSplitConfigInvalid,
			"split fractions must be non-negative and sum to 1, got %g/%g/%g", f.Train, f.Valid, f.Test)
	}
	return nil
}

// cutoffs returns the exclusive ends of the train and valid ranges over n rows.
func (f Fractions) cutoffs(n int) (int, int) {
	return int(f.Train * float64(n)), int((f.Train + f.Valid) * float64(n))
}

// Splitter partitions a store into train, valid and test row indices.
type Splitter interface {
	Split(store *molecule.Store, frac Fractions) (train, valid, test []int, err error)
	Name() string
}

// NewSplitter returns the splitter named by cfg ("random", "index",
// "scaffold"), or nil for "none" and "".
func NewSplitter(name string, seed int64, log logging.Logger) (Splitter, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "random":
		return RandomSplitter{Seed: seed}, nil
	case "index":
		return IndexSplitter{}, nil
	case "scaffold":
		return ScaffoldSplitter{Logger: log}, nil
	}
	return nil, errors.Newf(errors.ErrCodeSplitConfigInvalid, "unknown splitter %q", name)
}

// IndexSplitter keeps store order.
type IndexSplitter struct{}

func (IndexSplitter) Name() string { return "index" }

func (IndexSplitter) Split(store *molecule.Store, frac Fractions) ([]int, []int, []int, error) {
	if err := frac.validate(); err != nil {
		return nil, nil, nil, err
	}
	order := make([]int, store.Len())
	for i := range order {
		order[i] = i
	}
	a, b := frac.cutoffs(len(order))
	return order[:a], order[a:b], order[b:], nil
}

// RandomSplitter cuts a seeded permutation of the rows.
type RandomSplitter struct {
	Seed int64
}

func (RandomSplitter) Name() string { return "random" }

func (s RandomSplitter) Split(store *molecule.Store, frac Fractions) ([]int, []int, []int, error) {
	if err := frac.validate(); err != nil {
		return nil, nil, nil, err
	}
	perm := rand.New(rand.NewSource(s.Seed)).Perm(store.Len())
	a, b := frac.cutoffs(len(perm))
	return perm[:a], perm[a:b], perm[b:], nil
}

// ScaffoldSplitter groups molecules by Bemis-Murcko scaffold and fills train,
// then valid, then test with whole groups, largest group first.
type ScaffoldSplitter struct {
	Logger logging.Logger
}

func (ScaffoldSplitter) Name() string { return "scaffold" }

func (s ScaffoldSplitter) Split(store *molecule.Store, frac Fractions) ([]int, []int, []int, error) {
	if err := frac.validate(); err != nil {
		return nil, nil, nil, err
	}
	groups := make(map[string][]int)
	for i := 0; i < store.Len(); i++ {
		key, err := molecule.ScaffoldKey(store.ID(i))
		if err != nil {
			logging.OrDefault(s.Logger).Debug("scaffold unavailable, using own group",
				logging.String("smiles", store.ID(i)), logging.Err(err))
			key = "!" + store.ID(i)
		}
		groups[key] = append(groups[key], i)
	}
	sets := make([][]int, 0, len(groups))
	for _, g := range groups {
		sets = append(sets, g)
	}
	// Largest first; ties broken by the later first member first.
	sort.Slice(sets, func(a, b int) bool {
		if len(sets[a]) != len(sets[b]) {
			return len(sets[a]) > len(sets[b])
		}
		return sets[a][0] > sets[b][0]
	})

	n := store.Len()
	trainCut := frac.Train * float64(n)
	validCut := (frac.Train + frac.Valid) * float64(n)
	var train, valid, test []int
	for _, set := range sets {
		switch {
		case float64(len(train)+len(set)) <= trainCut:
			train = append(train, set...)
		case float64(len(train)+len(valid)+len(set)) <= validCut:
			valid = append(valid, set...)
		default:
			test = append(test, set...)
		}
	}
	return train, valid, test, nil
}
