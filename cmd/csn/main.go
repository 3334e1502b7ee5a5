// Command csn is the CrossSiameseNet command line: dataset inspection,
// triplet training and training event monitoring.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/CrossSiameseNet/internal/interfaces/cli"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(errors.ExitStatusForCode(errors.GetCode(err)))
	}
}
