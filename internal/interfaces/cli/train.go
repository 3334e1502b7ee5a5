package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/CrossSiameseNet/internal/config"
	"github.com/turtacn/CrossSiameseNet/internal/dataset"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/training"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

type trainOptions struct {
	dataset         string
	epochs          int
	batchSize       int
	learningRate    float64
	margin          float64
	embeddingDim    int
	checkpointsDir  string
	splitter        string
	splitSeed       int64
	seed            int64
	oversample      bool
	fixedTriplets   bool
	fixedSeed       int64
	cumulativeSeeds bool
	perRowLabels    bool
}

// NewTrainCmd creates the train command.  Flags override the training
// section of the configuration only when given explicitly.
func NewTrainCmd() *cobra.Command {
	return newTrainCmd(&trainOptions{})
}

func newTrainCmd(opts *trainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the triplet embedding on a MoleculeNet dataset",
		Example: "  csn train --dataset tox21_NR-AR --epochs 10\n" +
			"  csn train --dataset hiv --fixed-triplets --fixed-seed 42 --splitter scaffold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			applyTrainFlags(cmd, opts, &cliCtx.Config.Training)
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			if cliCtx.ConfigPath != "" {
				watchLogLevel(cliCtx.ConfigPath, cliCtx.Logger)
			}
			summary, err := runTrain(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			return PrintResult(cmd, summary)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dataset, "dataset", "d", "", "dataset name, e.g. hiv or tox21_NR-AR")
	f.IntVar(&opts.epochs, "epochs", 0, "number of epochs")
	f.IntVar(&opts.batchSize, "batch-size", 0, "mini-batch size")
	f.Float64Var(&opts.learningRate, "lr", 0, "Adam learning rate")
	f.Float64Var(&opts.margin, "margin", 0, "triplet margin")
	f.IntVar(&opts.embeddingDim, "embedding-dim", 0, "embedding dimension")
	f.StringVar(&opts.checkpointsDir, "checkpoints-dir", "", "directory for checkpoints and the report")
	f.StringVar(&opts.splitter, "splitter", "", "split strategy: random|index|scaffold|none")
	f.Int64Var(&opts.splitSeed, "split-seed", 0, "seed of the random splitter")
	f.Int64Var(&opts.seed, "seed", 0, "seed for sampling, shuffling and weight init (0 uses the clock)")
	f.BoolVar(&opts.oversample, "oversample", false, "replicate the minority class in the train split")
	f.BoolVar(&opts.fixedTriplets, "fixed-triplets", false, "use fixed train triplets refreshed every epoch")
	f.Int64Var(&opts.fixedSeed, "fixed-seed", 0, "seed of the fixed train triplets")
	f.BoolVar(&opts.cumulativeSeeds, "cumulative-seeds", false, "derive each refresh seed from the previous one")
	f.BoolVar(&opts.perRowLabels, "per-row-anchor-labels", false, "keep one anchor label per fixed triplet")
	return cmd
}

func applyTrainFlags(cmd *cobra.Command, opts *trainOptions, tc *config.TrainingConfig) {
	f := cmd.Flags()
	if f.Changed("dataset") {
		tc.Dataset = opts.dataset
	}
	if f.Changed("epochs") {
		tc.Epochs = opts.epochs
	}
	if f.Changed("batch-size") {
		tc.BatchSize = opts.batchSize
	}
	if f.Changed("lr") {
		tc.LearningRate = opts.learningRate
	}
	if f.Changed("margin") {
		tc.Margin = opts.margin
	}
	if f.Changed("embedding-dim") {
		tc.EmbeddingDim = opts.embeddingDim
	}
	if f.Changed("checkpoints-dir") {
		tc.CheckpointsDir = opts.checkpointsDir
	}
	if f.Changed("splitter") {
		tc.Splitter = opts.splitter
	}
	if f.Changed("split-seed") {
		tc.SplitSeed = opts.splitSeed
	}
	if f.Changed("seed") {
		tc.Seed = opts.seed
	}
	if f.Changed("oversample") {
		tc.Oversample = opts.oversample
	}
	if f.Changed("fixed-triplets") {
		tc.FixedTrainTriplets = opts.fixedTriplets
	}
	if f.Changed("fixed-seed") {
		seed := opts.fixedSeed
		tc.FixedSeed = &seed
	}
	if f.Changed("cumulative-seeds") {
		tc.CumulativeSeeds = opts.cumulativeSeeds
	}
	if f.Changed("per-row-anchor-labels") {
		tc.PerRowAnchorLabels = opts.perRowLabels
	}
}

// watchLogLevel applies log level edits to the running process.
func watchLogLevel(path string, log logging.Logger) {
	config.Watch(path, func(c *config.Config) {
		if logging.SetLevel(log, c.Log.Level) {
			log.Info("log level changed", logging.String("level", c.Log.Level))
		}
	}, func(err error) {
		log.Warn("ignoring invalid config change", logging.Err(err))
	})
}

func validateTrainConfig(tc config.TrainingConfig) error {
	if tc.Dataset == "" {
		return errors.InvalidParam("a dataset is required (--dataset or training.dataset)")
	}
	if !tc.TripletLoss {
		return errors.InvalidParam("training requires triplet_loss")
	}
	if tc.Splitter == "none" {
		return errors.InvalidParam("training requires a splitter")
	}
	return nil
}

func runTrain(ctx context.Context, cfg *config.Config, log logging.Logger) (*trainSummary, error) {
	tc := cfg.Training
	if err := validateTrainConfig(tc); err != nil {
		return nil, err
	}

	st := newStack(cfg, log)
	defer st.Close(context.Background())
	if err := st.withMetrics(); err != nil {
		return nil, err
	}
	if err := st.withSource(ctx); err != nil {
		return nil, err
	}
	if err := st.withArtifacts(ctx); err != nil {
		return nil, err
	}
	if err := st.withEvents(); err != nil {
		return nil, err
	}

	rng := newRand(tc.Seed)
	req, err := datasetRequest(cfg, log, rng)
	if err != nil {
		return nil, err
	}
	loadCtx := ctx
	if cfg.Data.Timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, cfg.Data.Timeout)
		defer cancel()
	}
	res, err := st.factory().GetDataset(loadCtx, req)
	if err != nil {
		return nil, err
	}
	if res.Triplets == nil {
		return nil, errors.InvalidState("dataset was not wrapped into triplets")
	}

	trainLoader, err := dataset.NewLoader[dataset.Triplet](res.Triplets.Train, dataset.LoaderConfig{
		BatchSize: tc.BatchSize,
		Shuffle:   true,
		Rand:      rng,
	})
	if err != nil {
		return nil, err
	}
	testLoader, err := dataset.NewLoader[dataset.Triplet](res.Triplets.Test, dataset.LoaderConfig{BatchSize: tc.BatchSize})
	if err != nil {
		return nil, err
	}
	model, err := training.NewEmbeddingModel(res.Featurizer.Size(), tc.EmbeddingDim, rng)
	if err != nil {
		return nil, err
	}

	trainer, err := training.NewTrainer(training.Config{
		Epochs:                   tc.Epochs,
		DatasetName:              tc.Dataset,
		CheckpointsDir:           tc.CheckpointsDir,
		LearningRate:             tc.LearningRate,
		Margin:                   tc.Margin,
		UseFixedTrainingTriplets: tc.FixedTrainTriplets,
		CumulativeSeeds:          tc.CumulativeSeeds,
	}, training.Deps{
		Model:       model,
		TrainLoader: trainLoader,
		TestLoader:  testLoader,
		Checkpoints: st.checkpointStore(tc.CheckpointsDir),
		Report:      st.reportWriter(),
		Events:      st.eventPublisher(),
		Metrics:     st.metrics,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := trainer.Run(ctx)
	if err != nil {
		return nil, err
	}
	return newTrainSummary(tc.Dataset, res.Train.Len(), res.Test.Len(), out, time.Since(start)), nil
}

// trainSummary is the printable outcome of a training run.
type trainSummary struct {
	RunID       string        `json:"run_id"`
	Dataset     string        `json:"dataset"`
	TrainSize   int           `json:"train_size"`
	TestSize    int           `json:"test_size"`
	Weight1     float64       `json:"weight1"`
	TrainLoss   []float64     `json:"train_loss"`
	TestLoss    []float64     `json:"test_loss"`
	Checkpoints []string      `json:"checkpoints"`
	ReportPath  string        `json:"report_path"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

func newTrainSummary(ds string, trainSize, testSize int, r *training.Result, elapsed time.Duration) *trainSummary {
	return &trainSummary{
		RunID:       r.RunID,
		Dataset:     ds,
		TrainSize:   trainSize,
		TestSize:    testSize,
		Weight1:     r.Weight1,
		TrainLoss:   r.TrainLoss,
		TestLoss:    r.TestLoss,
		Checkpoints: r.Checkpoints,
		ReportPath:  r.ReportPath,
		Elapsed:     elapsed,
	}
}

func (s *trainSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s on %s (train=%d test=%d, w1=%s) finished in %s\n",
		s.RunID, s.Dataset, s.TrainSize, s.TestSize, formatFloat(s.Weight1), s.Elapsed.Round(time.Millisecond))
	for i := range s.TrainLoss {
		fmt.Fprintf(&sb, "  epoch %d  train %s  test %s\n", i, formatFloat(s.TrainLoss[i]), formatFloat(s.TestLoss[i]))
	}
	fmt.Fprintf(&sb, "report: %s", s.ReportPath)
	return sb.String()
}

func (s *trainSummary) TableHeaders() []string {
	return []string{"Epoch", "Train Loss", "Test Loss", "Checkpoint"}
}

func (s *trainSummary) TableRows() [][]string {
	rows := make([][]string, len(s.TrainLoss))
	for i := range s.TrainLoss {
		cp := ""
		if i < len(s.Checkpoints) {
			cp = s.Checkpoints[i]
		}
		rows[i] = []string{strconv.Itoa(i), formatFloat(s.TrainLoss[i]), formatFloat(s.TestLoss[i]), cp}
	}
	return rows
}
