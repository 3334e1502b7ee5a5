package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/CrossSiameseNet/internal/config"
	"github.com/turtacn/CrossSiameseNet/internal/dataset/molnet"
	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
)

// NewDatasetCmd creates the dataset command group.
func NewDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect the MoleculeNet dataset catalog",
	}
	cmd.AddCommand(newDatasetListCmd(), newDatasetStatsCmd())
	return cmd
}

func newDatasetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the datasets that can be loaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, catalogListing(molnet.Catalog()))
		},
	}
}

type catalogListing []molnet.Spec

func (c catalogListing) String() string {
	var sb strings.Builder
	for _, s := range c {
		kind := "classification"
		if s.Regression {
			kind = "regression"
		}
		fmt.Fprintf(&sb, "%-10s %-24s %-14s %s\n", s.Name, s.File, kind, s.Description)
	}
	fmt.Fprintf(&sb, "single Tox21 tasks: tox21_<task> with task in %s", strings.Join(molnet.Tox21Tasks(), ", "))
	return sb.String()
}

func (c catalogListing) TableHeaders() []string {
	return []string{"Name", "File", "Tasks", "Regression", "Description"}
}

func (c catalogListing) TableRows() [][]string {
	rows := make([][]string, len(c))
	for i, s := range c {
		rows[i] = []string{s.Name, s.File, strconv.Itoa(len(s.Tasks)), strconv.FormatBool(s.Regression), s.Description}
	}
	return rows
}

func newDatasetStatsCmd() *cobra.Command {
	var splitter string
	cmd := &cobra.Command{
		Use:   "stats <name>",
		Short: "Load a dataset and report split sizes and label balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := *cliCtx.Config
			cfg.Training.Dataset = args[0]
			if cmd.Flags().Changed("splitter") {
				cfg.Training.Splitter = splitter
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			stats, err := runDatasetStats(ctx, &cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			return PrintResult(cmd, stats)
		},
	}
	cmd.Flags().StringVar(&splitter, "splitter", "", "split strategy: random|index|scaffold|none")
	return cmd
}

// splitStats counts one store by first-task label.
type splitStats struct {
	Split     string `json:"split"`
	Molecules int    `json:"molecules"`
	Label0    int    `json:"label0"`
	Label1    int    `json:"label1"`
}

func newSplitStats(name string, s *molecule.Store) splitStats {
	p := s.Partition()
	return splitStats{Split: name, Molecules: s.Len(), Label0: len(p.Indices0), Label1: len(p.Indices1)}
}

type datasetStats struct {
	Dataset    string             `json:"dataset"`
	Tasks      []string           `json:"tasks"`
	Regression bool               `json:"regression"`
	Dropped    int                `json:"dropped"`
	Splits     []splitStats       `json:"splits"`
	Normalizer *molnet.Normalizer `json:"normalizer,omitempty"`
}

// runDatasetStats loads the dataset without wrapping it into triplets.
func runDatasetStats(ctx context.Context, cfg *config.Config, log logging.Logger) (*datasetStats, error) {
	st := newStack(cfg, log)
	defer st.Close(context.Background())
	if err := st.withSource(ctx); err != nil {
		return nil, err
	}
	req, err := datasetRequest(cfg, log, newRand(cfg.Training.Seed))
	if err != nil {
		return nil, err
	}
	req.TripletLoss, req.Oversample, req.UseFixedTrainTriplets = false, false, false

	res, err := st.factory().GetDataset(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &datasetStats{
		Dataset:    req.Name,
		Tasks:      res.Tasks(),
		Regression: res.Spec.Regression,
		Dropped:    res.Dropped,
		Normalizer: res.Normalizer,
	}
	if res.Split() {
		out.Splits = []splitStats{
			newSplitStats("train", res.Train),
			newSplitStats("valid", res.Valid),
			newSplitStats("test", res.Test),
		}
	} else {
		out.Splits = []splitStats{newSplitStats("full", res.Full)}
	}
	return out, nil
}

func (d *datasetStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d task(s), %d invalid molecule(s) dropped\n", color.CyanString(d.Dataset), len(d.Tasks), d.Dropped)
	for _, s := range d.Splits {
		if d.Regression {
			fmt.Fprintf(&sb, "  %-5s %6d molecules\n", s.Split, s.Molecules)
			continue
		}
		fmt.Fprintf(&sb, "  %-5s %6d molecules  label0=%d label1=%d\n", s.Split, s.Molecules, s.Label0, s.Label1)
	}
	if d.Normalizer != nil {
		fmt.Fprintf(&sb, "  normalizer mean=%v std=%v\n", d.Normalizer.Mean, d.Normalizer.Std)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (d *datasetStats) TableHeaders() []string {
	return []string{"Split", "Molecules", "Label 0", "Label 1"}
}

func (d *datasetStats) TableRows() [][]string {
	rows := make([][]string, len(d.Splits))
	for i, s := range d.Splits {
		rows[i] = []string{s.Split, strconv.Itoa(s.Molecules), strconv.Itoa(s.Label0), strconv.Itoa(s.Label1)}
	}
	return rows
}
