package training

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CrossSiameseNet/internal/dataset"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// DefaultLearningRate is the Adam step size used when Config leaves it zero.
const DefaultLearningRate = 1e-5

// TripletSource is the training dataset contract: triplets plus the label
// partition and the fixed-triplet controls.
type TripletSource interface {
	dataset.Dataset[dataset.Triplet]
	Indices0() []int
	Indices1() []int
	FixedSeed() (int64, bool)
	RefreshFixedTriplets(seed int64) error
}

// Config parameterizes one training run.
type Config struct {
	Epochs         int
	DatasetName    string
	CheckpointsDir string
	LearningRate   float64
	Margin         float64

	// UseFixedTrainingTriplets rebuilds the train triplets before every epoch
	// after the first, seeded with the original seed plus the epoch.
	UseFixedTrainingTriplets bool
	// CumulativeSeeds derives each refresh seed from the previous one
	// instead of the original (seed_e = seed_{e-1} + e).
	CumulativeSeeds bool
}

// Deps are the collaborators of a Trainer.  Checkpoints, Shaper, Report,
// Events, Metrics, Logger and Now are optional.
type Deps struct {
	Model       Model
	TrainLoader *dataset.Loader[dataset.Triplet]
	TestLoader  *dataset.Loader[dataset.Triplet]
	Checkpoints CheckpointStore
	Shaper      BatchShaper
	Report      *ReportWriter
	Events      EventPublisher
	Metrics     *prometheus.TrainingMetrics
	Logger      logging.Logger
	Now         func() time.Time
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	TrainLoss   []float64
	TestLoss    []float64
	Checkpoints []string
	ReportPath  string
	Weight1     float64
}

// Trainer runs the triplet training loop.
type Trainer struct {
	cfg   Config
	deps  Deps
	train TripletSource
	loss  *WeightedTripletMarginLoss
	opt   *Adam
	log   logging.Logger
	mx    *prometheus.TrainingMetrics
}

// NewTrainer validates cfg and deps.  The loss weight for label-1 anchors is
// |Indices0| / |Indices1| of the train dataset.
func NewTrainer(cfg Config, deps Deps) (*Trainer, error) {
	if cfg.Epochs < 1 {
		return nil, errors.InvalidParam("epochs must be >= 1")
	}
	if cfg.DatasetName == "" {
		return nil, errors.InvalidParam("dataset name is required")
	}
	if deps.Model == nil || deps.TrainLoader == nil || deps.TestLoader == nil {
		return nil, errors.InvalidParam("model, train loader and test loader are required")
	}
	train, ok := deps.TrainLoader.Dataset().(TripletSource)
	if !ok {
		return nil, errors.InvalidParam("train loader must wrap a triplet dataset")
	}
	if len(train.Indices1()) == 0 {
		return nil, errors.New(errors.ErrCodeMinorityClassMissing, "train dataset has no label-1 records")
	}
	if cfg.UseFixedTrainingTriplets {
		if _, fixed := train.FixedSeed(); !fixed {
			return nil, errors.InvalidState("fixed training triplets requested but the train dataset is not in fixed mode")
		}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.Margin == 0 {
		cfg.Margin = 1
	}
	if cfg.CheckpointsDir == "" {
		cfg.CheckpointsDir = "checkpoints"
	}
	if deps.Checkpoints == nil {
		deps.Checkpoints = &FileCheckpointStore{Dir: cfg.CheckpointsDir}
	}
	if deps.Shaper == nil {
		deps.Shaper = StackShaper{}
	}
	if deps.Report == nil {
		deps.Report = &ReportWriter{Logger: deps.Logger}
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	w1 := float64(len(train.Indices0())) / float64(len(train.Indices1()))
	return &Trainer{
		cfg:   cfg,
		deps:  deps,
		train: train,
		loss:  &WeightedTripletMarginLoss{Margin: cfg.Margin, Weight1: w1},
		opt:   NewAdam(deps.Model.Parameters(), cfg.LearningRate),
		log:   logging.OrDefault(deps.Logger).Named("trainer").With(logging.String("dataset", cfg.DatasetName)),
		mx:    prometheus.OrNop(deps.Metrics),
	}, nil
}

// Weight1 returns the loss weight of label-1 anchors.
func (t *Trainer) Weight1() float64 { return t.loss.Weight1 }

// Run trains for cfg.Epochs epochs, saving a checkpoint after each and the
// report at the end.  Cancellation is checked between batches.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New().String(), Weight1: t.loss.Weight1}
	log := t.log.With(logging.String("run_id", res.RunID))
	log.Info("training started",
		logging.Int("epochs", t.cfg.Epochs),
		logging.Float64("weight_1", t.loss.Weight1),
		logging.Bool("fixed_triplets", t.cfg.UseFixedTrainingTriplets))
	t.publish(ctx, kafka.EventRunStarted, res.RunID, RunStartedPayload{
		RunID:         res.RunID,
		Dataset:       t.cfg.DatasetName,
		Epochs:        t.cfg.Epochs,
		FixedTriplets: t.cfg.UseFixedTrainingTriplets,
		Timestamp:     t.deps.Now().UTC(),
	})

	err := t.run(ctx, res, log)
	finished := RunFinishedPayload{
		RunID:      res.RunID,
		Dataset:    t.cfg.DatasetName,
		Epochs:     len(res.TestLoss),
		ReportPath: res.ReportPath,
		Timestamp:  t.deps.Now().UTC(),
	}
	if err != nil {
		finished.Error = err.Error()
		log.Error("training failed", logging.Err(err))
	}
	t.publish(context.WithoutCancel(ctx), kafka.EventRunFinished, res.RunID, finished)
	if err != nil {
		return nil, err
	}
	log.Info("training finished", logging.String("report", res.ReportPath))
	return res, nil
}

func (t *Trainer) run(ctx context.Context, res *Result, log logging.Logger) error {
	seed, _ := t.train.FixedSeed()
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		timer := prometheus.NewTimer(t.mx.EpochDuration.WithLabelValues(t.cfg.DatasetName))

		if epoch > 0 && t.cfg.UseFixedTrainingTriplets {
			next := seed + int64(epoch)
			if t.cfg.CumulativeSeeds {
				seed = next
			}
			if err := t.train.RefreshFixedTriplets(next); err != nil {
				return errors.Wrap(err, errors.CodeUnknown, "refresh fixed triplets")
			}
			log.Debug("fixed triplets refreshed", logging.Int("epoch", epoch), logging.Int64("seed", next))
		}

		for _, phase := range []Phase{PhaseTrain, PhaseTest} {
			loss, err := t.runPhase(ctx, epoch, phase)
			if err != nil {
				return err
			}
			log.Info("epoch phase finished",
				logging.Int("epoch", epoch),
				logging.String("state", string(phase)),
				logging.Float64("loss", loss))
			t.mx.EpochLoss.WithLabelValues(t.cfg.DatasetName, string(phase)).Set(loss)
			if phase == PhaseTrain {
				res.TrainLoss = append(res.TrainLoss, loss)
			} else {
				res.TestLoss = append(res.TestLoss, loss)
			}
		}

		cp := &Checkpoint{
			Epoch:                     epoch,
			ModelStateDict:            t.deps.Model.StateDict(),
			Dataset:                   t.cfg.DatasetName,
			TrainLoss:                 append([]float64(nil), res.TrainLoss...),
			TestLoss:                  append([]float64(nil), res.TestLoss...),
			UsedFixedTrainingTriplets: t.cfg.UseFixedTrainingTriplets,
			SaveDttm:                  t.deps.Now().Format(SaveTimeLayout),
			RunID:                     res.RunID,
		}
		loc, err := t.deps.Checkpoints.Save(ctx, CheckpointName(t.cfg.DatasetName, epoch), cp)
		if err != nil {
			return err
		}
		res.Checkpoints = append(res.Checkpoints, loc)
		t.mx.CheckpointsTotal.WithLabelValues(t.cfg.DatasetName, t.deps.Checkpoints.Kind()).Inc()
		t.mx.CurrentEpoch.WithLabelValues(t.cfg.DatasetName).Set(float64(epoch))
		elapsed := timer.ObserveDuration()
		log.Debug("checkpoint saved", logging.Int("epoch", epoch), logging.String("location", loc),
			logging.Duration("elapsed", elapsed))

		t.publish(ctx, kafka.EventEpochCompleted, res.RunID, EpochPayload{
			RunID:     res.RunID,
			Dataset:   t.cfg.DatasetName,
			Epoch:     epoch,
			TrainLoss: res.TrainLoss[epoch],
			TestLoss:  res.TestLoss[epoch],
			Timestamp: t.deps.Now().UTC(),
		})
	}

	rows, err := ReportRows(res.TrainLoss, res.TestLoss)
	if err != nil {
		return err
	}
	path, err := t.deps.Report.Write(ctx, t.cfg.CheckpointsDir, t.cfg.DatasetName, rows)
	if err != nil {
		return err
	}
	res.ReportPath = path
	return nil
}

// runPhase makes one pass over the phase's loader and returns the mean batch
// loss rounded to 5 decimals.
func (t *Trainer) runPhase(ctx context.Context, epoch int, phase Phase) (float64, error) {
	loader := t.deps.TestLoader
	if phase == PhaseTrain {
		loader = t.deps.TrainLoader
		t.deps.Model.Train()
		loader.Reshuffle()
	} else {
		t.deps.Model.Eval()
	}

	n := loader.NumBatches()
	if n == 0 {
		return 0, errors.Newf(errors.ErrCodeEmptyLoader, "%s loader yields no batches", phase).
			WithDetail("epoch " + strconv.Itoa(epoch))
	}
	batches := t.mx.BatchesTotal.WithLabelValues(t.cfg.DatasetName, string(phase))
	batchLoss := t.mx.BatchLoss.WithLabelValues(t.cfg.DatasetName, string(phase))

	var running float64
	for b := 0; b < n; b++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeCanceled, "training interrupted").
				WithDetail(string(phase) + " epoch " + strconv.Itoa(epoch))
		}
		batch, err := loader.Batch(b)
		if err != nil {
			return 0, err
		}
		if phase == PhaseTrain {
			t.opt.ZeroGrad()
		}
		shaped, err := t.deps.Shaper.ShapeBatch(batch, t.deps.Model, phase)
		if err != nil {
			return 0, err
		}
		out, err := t.loss.Compute(shaped)
		if err != nil {
			return 0, err
		}
		if phase == PhaseTrain {
			if err := t.backward(shaped, out); err != nil {
				return 0, err
			}
			t.opt.Step()
		}
		running += out.Loss
		batches.Inc()
		batchLoss.Observe(out.Loss)
	}
	return roundTo(running/float64(n), 5), nil
}

func (t *Trainer) backward(b *ShapedBatch, out *LossResult) error {
	m := t.deps.Model
	if err := m.Backward(b.Anchor, out.GradAnchor); err != nil {
		return err
	}
	if err := m.Backward(b.Positive, out.GradPos); err != nil {
		return err
	}
	return m.Backward(b.Negative, out.GradNeg)
}

func (t *Trainer) publish(ctx context.Context, eventType, runID string, payload interface{}) {
	result := "ok"
	if err := t.deps.Events.Publish(ctx, eventType, runID, payload); err != nil {
		result = "error"
		t.log.Warn("failed to publish training event", logging.String("event_type", eventType), logging.Err(err))
	}
	t.mx.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
