package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/codetalk/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "codetalk\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Schema: %s\n", storage.CurrentSchemaVersion)
		},
	}
}

// formatMB renders a size in megabytes with two decimals
func formatMB(mb float64) string {
	return strconv.FormatFloat(mb, 'f', 2, 64) + " MB"
}
