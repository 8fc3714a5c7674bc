package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codetalk/internal/app"
	"github.com/dshills/codetalk/internal/config"
	"github.com/dshills/codetalk/internal/logging"
	"github.com/dshills/codetalk/internal/ui"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codetalk",
		Short: "Ask questions about a codebase",
		Long: `codetalk indexes the source files of a codebase and answers questions about
them with a chat model, using the files most relevant to each question as
context. Settings are read from codetalk.json in the working directory or
~/.codetalk, or from the file named by $CODETALK_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newAskCmd(),
		newScanCmd(),
		newClearCmd(),
		newStatusCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

// openApp loads configuration and builds the application. Any error here is
// a configuration problem and ends the command.
func openApp(stderr io.Writer) (*app.App, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(stderr, logging.ParseLevel(cfg.LogLevel))

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// printBuildReport shows the files that went into a new index
func printBuildReport(p *ui.Printer, r *app.BuildReport) {
	p.Title("Files added to vector store:")
	p.Tree(r.Scan.Tree)

	docs := len(r.Scan.Documents)
	if r.Scan.BudgetReached {
		p.Warn("Processed %d documents before reaching token limit.", docs)
	} else {
		p.Stats("Found %d documents to process. Total estimated tokens: %d", docs, r.Scan.TotalTokens)
	}
	if r.Scan.FilesSkipped > 0 {
		p.Warn("Skipped %d unreadable files.", r.Scan.FilesSkipped)
	}
	p.Success("Vector store saved (%d documents, %s).", r.Stats.DocumentsIndexed, r.Stats.Duration.Round(time.Millisecond))
}
