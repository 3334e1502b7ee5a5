package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/CrossSiameseNet/internal/config"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/training"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// NewCheckpointCmd creates the checkpoint command group.
func NewCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect training checkpoints and reports",
	}
	cmd.AddCommand(newCheckpointShowCmd(), newCheckpointReportCmd())
	return cmd
}

func newCheckpointShowCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "show <path|name>",
		Short: "Print the metadata and parameter shapes of a checkpoint",
		Long: "Reads a checkpoint file from disk, or with --remote the checkpoint\n" +
			"named <dataset>_<epoch> from the artifact bucket.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			var cp *training.Checkpoint
			if remote {
				cp, err = loadRemoteCheckpoint(ctx, cliCtx.Config, cliCtx.Logger, args[0])
			} else {
				cp, err = training.ReadCheckpointFile(args[0])
			}
			if err != nil {
				return err
			}
			return PrintResult(cmd, newCheckpointView(cp))
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "load from the artifact bucket instead of the filesystem")
	return cmd
}

func loadRemoteCheckpoint(ctx context.Context, cfg *config.Config, log logging.Logger, name string) (*training.Checkpoint, error) {
	if !cfg.Storage.Enabled {
		return nil, errors.InvalidParam("--remote requires storage.enabled")
	}
	st := newStack(cfg, log)
	defer st.Close(context.Background())
	if err := st.withArtifacts(ctx); err != nil {
		return nil, err
	}
	store := &training.ObjectCheckpointStore{Store: st.artifacts, Prefix: checkpointPrefix}
	return store.Load(ctx, name)
}

type parameterView struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type checkpointView struct {
	Dataset       string          `json:"dataset"`
	Epoch         int             `json:"epoch"`
	RunID         string          `json:"run_id,omitempty"`
	SavedAt       string          `json:"save_dttm"`
	FixedTriplets bool            `json:"used_fixed_training_triplets"`
	TrainLoss     []float64       `json:"train_loss"`
	TestLoss      []float64       `json:"test_loss"`
	Parameters    []parameterView `json:"parameters"`
}

func newCheckpointView(cp *training.Checkpoint) *checkpointView {
	v := &checkpointView{
		Dataset:       cp.Dataset,
		Epoch:         cp.Epoch,
		RunID:         cp.RunID,
		SavedAt:       cp.SaveDttm,
		FixedTriplets: cp.UsedFixedTrainingTriplets,
		TrainLoss:     cp.TrainLoss,
		TestLoss:      cp.TestLoss,
	}
	for name, t := range cp.ModelStateDict {
		v.Parameters = append(v.Parameters, parameterView{Name: name, Shape: t.Shape})
	}
	sort.Slice(v.Parameters, func(i, j int) bool { return v.Parameters[i].Name < v.Parameters[j].Name })
	return v
}

func (v *checkpointView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s epoch %d saved %s", v.Dataset, v.Epoch, v.SavedAt)
	if v.RunID != "" {
		fmt.Fprintf(&sb, " (run %s)", v.RunID)
	}
	fmt.Fprintf(&sb, "\n  fixed training triplets: %t\n", v.FixedTriplets)
	for _, p := range v.Parameters {
		fmt.Fprintf(&sb, "  %-16s %v\n", p.Name, p.Shape)
	}
	if n := len(v.TrainLoss); n > 0 && len(v.TestLoss) == n {
		fmt.Fprintf(&sb, "  last loss: train %s test %s", formatFloat(v.TrainLoss[n-1]), formatFloat(v.TestLoss[n-1]))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (v *checkpointView) TableHeaders() []string {
	return []string{"Epoch", "Train Loss", "Test Loss"}
}

func (v *checkpointView) TableRows() [][]string {
	return lossRows(v.TrainLoss, v.TestLoss)
}

func lossRows(train, test []float64) [][]string {
	rows := make([][]string, 0, len(train))
	for i := range train {
		te := ""
		if i < len(test) {
			te = formatFloat(test[i])
		}
		rows = append(rows, []string{strconv.Itoa(i), formatFloat(train[i]), te})
	}
	return rows
}

func newCheckpointReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <xlsx>",
		Short: "Print the per-epoch losses of a training report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := training.ReadReport(args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, reportView(rows))
		},
	}
}

type reportView []training.ReportRow

func (r reportView) String() string {
	var sb strings.Builder
	for _, row := range r {
		fmt.Fprintf(&sb, "epoch %d  train %s  test %s\n", row.Epoch, formatFloat(row.TrainLoss), formatFloat(row.TestLoss))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r reportView) TableHeaders() []string {
	return []string{"Epoch", "Train Loss", "Test Loss"}
}

func (r reportView) TableRows() [][]string {
	train := make([]float64, len(r))
	test := make([]float64, len(r))
	for i, row := range r {
		train[i], test[i] = row.TrainLoss, row.TestLoss
	}
	return lossRows(train, test)
}
