package main

import (
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the index",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}
}

func runClear(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Clear(); err != nil {
		return err
	}
	printer(cmd).Success("Vector store at %s has been cleared.", a.Store().Dir())
	return nil
}
