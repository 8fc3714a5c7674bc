package main

import (
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scan",
		Aliases: []string{"rebuild"},
		Short:   "Rebuild the index from the configured codebase",
		Long:    "Clear the existing index, scan the configured codebase and build a fresh index.",
		Args:    cobra.NoArgs,
		RunE:    runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p := printer(cmd)
	p.Title("Scanning codebase and creating vector store...")

	report, err := a.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	printBuildReport(p, report)
	return nil
}
