package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codetalk/internal/storage"
	"github.com/dshills/codetalk/internal/vectorstore"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the index holds",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p := printer(cmd)
	status, err := a.Status(cmd.Context())
	if errors.Is(err, vectorstore.ErrStoreNotFound) {
		p.Warn("No index found at %s. Run \"codetalk scan\" to build one.", a.Store().Dir())
		return nil
	}
	if err != nil {
		return err
	}

	p.Title("Index %s", a.Store().Path())
	if snap := status.Snapshot; snap != nil {
		p.Field("Snapshot", snap.ID)
		p.Field("Codebase", snap.RootPath)
		p.Field("Built", snap.CreatedAt.Local().Format(time.RFC1123))
		p.Field("Embeddings", snap.Provider+"/"+snap.Model)
		p.Field("Dimension", snap.Dimension)
		p.Field("Tokens", snap.TotalTokens)
		p.Field("Budget reached", snap.BudgetReached)
	}
	p.Field("Documents", status.DocumentsCount)
	p.Field("Vectors", status.EmbeddingsCount)
	p.Field("Size", formatMB(status.IndexSizeMB))
	p.Field("Storage", storage.BuildMode+" ("+storage.DriverName+")")
	return nil
}
