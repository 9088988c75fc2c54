package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enex/errcapture/internal/version"
)

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(c *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.OutOrStdout(), "%s version v%s\n", appName, version.String())
			return err
		},
	}

	return cmd
}
