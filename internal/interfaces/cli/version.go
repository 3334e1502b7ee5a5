package cli

import "github.com/spf13/cobra"

// NewVersionCmd prints the build information.  It needs no configuration.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := BuildInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate}
			if f := cmd.Flag("output"); f != nil && f.Value.String() == "json" {
				return printJSON(cmd, info)
			}
			return printText(cmd, info)
		},
	}
}
