package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/codetalk/internal/mcp"
	"github.com/dshills/codetalk/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; everything else goes to stderr
	a, logger, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	logger.Info("codetalk MCP server starting", "version", version, "build_mode", storage.BuildMode)
	return mcp.NewServer(a, version, logger).Serve(cmd.Context())
}
