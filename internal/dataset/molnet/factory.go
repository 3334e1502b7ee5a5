package molnet

import (
	"context"
	"math/rand"
	"time"

	"github.com/turtacn/CrossSiameseNet/internal/dataset"
	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// EvalFixedSeed seeds the fixed triplets of the valid and test splits.
const EvalFixedSeed int64 = 123

// Request selects a dataset and how to wrap it.
type Request struct {
	Name string

	// Splitter partitions the featurized store; nil keeps it whole.
	Splitter  Splitter
	Fractions Fractions

	Radius int
	Size   int

	TripletLoss           bool
	Oversample            bool
	UseFixedTrainTriplets bool
	FixedSeed             *int64
	PerRowAnchorLabels    bool

	// Rand drives on-the-fly sampling in the wrapped datasets.
	Rand *rand.Rand
}

// TripletSplits holds the triplet view of each split.
type TripletSplits struct {
	Train, Valid, Test *dataset.TripletDataset
}

// PairSplits holds the plain view of each split.
type PairSplits struct {
	Train, Valid, Test *dataset.PairDataset
}

// Result is a loaded dataset.  Without a splitter only Full is set; with one
// the split stores and exactly one of Triplets or Pairs are set.
type Result struct {
	Spec       Spec
	Featurizer *molecule.CircularFingerprint
	Full       *molecule.Store

	Train, Valid, Test *molecule.Store
	Triplets           *TripletSplits
	Pairs              *PairSplits

	Normalizer *Normalizer
	Dropped    int
}

// Tasks returns the task names of the loaded dataset.
func (r *Result) Tasks() []string { return r.Spec.Tasks }

// Split reports whether the result carries train/valid/test splits.
func (r *Result) Split() bool { return r.Full == nil }

// Factory loads catalog datasets through Source.
type Factory struct {
	Source  Source
	Logger  logging.Logger
	Metrics *prometheus.TrainingMetrics
}

// NewFactory returns a Factory reading from src.
func NewFactory(src Source, log logging.Logger, metrics *prometheus.TrainingMetrics) *Factory {
	return &Factory{Source: src, Logger: log, Metrics: metrics}
}

// GetDataset resolves, fetches, featurizes, splits and wraps a dataset.
//
// Fixed triplets for a non-triplet dataset are not supported: the call logs a
// warning and returns a nil result with a NotImplemented error.
func (f *Factory) GetDataset(ctx context.Context, req Request) (*Result, error) {
	log := logging.OrDefault(f.Logger).Named("molnet").With(logging.String("dataset", req.Name))
	metrics := prometheus.OrNop(f.Metrics)

	if req.UseFixedTrainTriplets && !req.TripletLoss {
		log.Warn("Fixed triplets for regular dataset not implemented yet")
		return nil, errors.New(errors.CodeNotImplemented, "fixed triplets for regular dataset not implemented yet")
	}
	spec, err := Resolve(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Radius == 0 {
		req.Radius = molecule.DefaultRadius
	}
	if req.Size == 0 {
		req.Size = molecule.DefaultSize
	}
	if req.Fractions == (Fractions{}) {
		req.Fractions = DefaultFractions
	}
	if req.Rand == nil {
		req.Rand = dataset.NewRand()
	}
	fp, err := molecule.NewCircularFingerprint(req.Radius, req.Size)
	if err != nil {
		return nil, err
	}
	if f.Source == nil {
		return nil, errors.New(errors.CodeInvalidState, "dataset source is not configured")
	}

	start := time.Now()
	raw, err := f.Source.Fetch(ctx, spec.File)
	if err != nil {
		return nil, err
	}
	rows, err := ParseCSV(raw, spec.SmilesCol, spec.Tasks)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "load dataset").WithDetail(spec.File)
	}
	store, dropped, err := Featurize(ctx, rows, fp, log)
	if err != nil {
		return nil, err
	}
	metrics.DatasetLoad.WithLabelValues(spec.Name, f.Source.Kind()).Observe(time.Since(start).Seconds())
	if dropped > 0 {
		metrics.InvalidMolecules.WithLabelValues(spec.Name).Add(float64(dropped))
	}
	log.Info("dataset featurized",
		logging.Int("molecules", store.Len()),
		logging.Int("dropped", dropped),
		logging.Duration("elapsed", time.Since(start)))

	res := &Result{Spec: spec, Featurizer: fp, Dropped: dropped}

	if req.Splitter == nil {
		if spec.Regression {
			res.Normalizer = FitNormalizer(store)
			if store, err = res.Normalizer.Apply(store); err != nil {
				return nil, err
			}
		}
		res.Full = store
		metrics.DatasetMolecules.WithLabelValues(spec.Name, "full").Set(float64(store.Len()))
		return res, nil
	}

	tr, va, te, err := req.Splitter.Split(store, req.Fractions)
	if err != nil {
		return nil, err
	}
	res.Train, res.Valid, res.Test = store.Select(tr), store.Select(va), store.Select(te)
	if spec.Regression {
		res.Normalizer = FitNormalizer(res.Train)
		for _, s := range []**molecule.Store{&res.Train, &res.Valid, &res.Test} {
			if *s, err = res.Normalizer.Apply(*s); err != nil {
				return nil, err
			}
		}
	}
	metrics.DatasetMolecules.WithLabelValues(spec.Name, "train").Set(float64(res.Train.Len()))
	metrics.DatasetMolecules.WithLabelValues(spec.Name, "valid").Set(float64(res.Valid.Len()))
	metrics.DatasetMolecules.WithLabelValues(spec.Name, "test").Set(float64(res.Test.Len()))
	log.Info("dataset split",
		logging.String("splitter", req.Splitter.Name()),
		logging.Int("train", res.Train.Len()),
		logging.Int("valid", res.Valid.Len()),
		logging.Int("test", res.Test.Len()))

	if !req.TripletLoss {
		res.Pairs = &PairSplits{
			Train: dataset.NewPairDataset(res.Train, req.Rand),
			Valid: dataset.NewPairDataset(res.Valid, req.Rand),
			Test:  dataset.NewPairDataset(res.Test, req.Rand),
		}
		return res, nil
	}

	train, err := dataset.NewTripletDataset(res.Train, dataset.TripletConfig{
		Training:           true,
		Oversample:         req.Oversample,
		UseFixedTriplets:   req.UseFixedTrainTriplets,
		FixedSeed:          req.FixedSeed,
		PerRowAnchorLabels: req.PerRowAnchorLabels,
		Rand:               req.Rand,
		Logger:             log,
	})
	if err != nil {
		return nil, err
	}
	valid, err := evalTriplets(res.Valid, req, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "build valid triplets")
	}
	test, err := evalTriplets(res.Test, req, log)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "build test triplets")
	}
	res.Triplets = &TripletSplits{Train: train, Valid: valid, Test: test}
	return res, nil
}

// evalTriplets oversamples an evaluation split and pins its triplets to
// EvalFixedSeed.
func evalTriplets(store *molecule.Store, req Request, log logging.Logger) (*dataset.TripletDataset, error) {
	over, _, err := dataset.Oversample(store)
	if err != nil {
		return nil, err
	}
	seed := EvalFixedSeed
	return dataset.NewTripletDataset(over, dataset.TripletConfig{
		Training:           false,
		UseFixedTriplets:   true,
		FixedSeed:          &seed,
		PerRowAnchorLabels: req.PerRowAnchorLabels,
		Rand:               req.Rand,
		Logger:             log,
	})
}
