package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CrossSiameseNet/internal/training"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// NewEventsCmd creates the events command group.
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow training events published to Kafka",
	}
	cmd.AddCommand(newEventsWatchCmd())
	return cmd
}

type watchOptions struct {
	group      string
	fromLatest bool
	runID      string
}

func newEventsWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print training events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			kc := cliCtx.Config.Kafka
			if len(kc.Brokers) == 0 {
				return errors.InvalidParam("kafka.brokers is required to watch events")
			}
			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:    kc.Brokers,
				Topic:      kc.Topic,
				GroupID:    opts.group,
				FromLatest: opts.fromLatest,
			}, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			w := &eventWriter{out: cmd.OutOrStdout(), json: cliCtx.OutputFormat == "json", runID: opts.runID}
			return consumer.Run(ctx, w.handle)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.group, "group", "", "consumer group; empty reads without committing offsets")
	f.BoolVar(&opts.fromLatest, "from-latest", false, "start at the end of the topic")
	f.StringVar(&opts.runID, "run", "", "only print events of this run id")
	return cmd
}

// eventWriter prints one line per received envelope.
type eventWriter struct {
	out   io.Writer
	json  bool
	runID string
}

func (w *eventWriter) handle(_ context.Context, msg *kafka.ReceivedMessage) error {
	env, err := kafka.DecodeEnvelope(msg)
	if err != nil {
		return err
	}
	if w.runID != "" && env.Metadata["run_id"] != w.runID {
		return nil
	}
	if w.json {
		line, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode event")
		}
		_, err = fmt.Fprintln(w.out, string(line))
		return err
	}
	line, err := describeEvent(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, line)
	return err
}

// describeEvent renders a training event as one human-readable line.
// Unknown event types are printed by type and id only.
func describeEvent(env *kafka.EventEnvelope) (string, error) {
	ts := env.Timestamp.Format("15:04:05")
	switch env.EventType {
	case kafka.EventRunStarted:
		var p training.RunStartedPayload
		if err := env.DecodePayload(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s run %s on %s for %d epoch(s), fixed triplets %t",
			ts, color.CyanString("started"), p.RunID, p.Dataset, p.Epochs, p.FixedTriplets), nil
	case kafka.EventEpochCompleted:
		var p training.EpochPayload
		if err := env.DecodePayload(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s epoch   run %s %s #%d train %s test %s",
			ts, p.RunID, p.Dataset, p.Epoch, formatFloat(p.TrainLoss), formatFloat(p.TestLoss)), nil
	case kafka.EventRunFinished:
		var p training.RunFinishedPayload
		if err := env.DecodePayload(&p); err != nil {
			return "", err
		}
		if p.Error != "" {
			return fmt.Sprintf("%s %s run %s on %s: %s", ts, color.RedString("failed"), p.RunID, p.Dataset, p.Error), nil
		}
		return fmt.Sprintf("%s %s run %s on %s, report %s",
			ts, color.GreenString("finished"), p.RunID, p.Dataset, p.ReportPath), nil
	default:
		return fmt.Sprintf("%s %s %s", ts, env.EventType, env.EventID), nil
	}
}
