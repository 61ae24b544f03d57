package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ingestuc "github.com/kailas-cloud/listbot/internal/usecase/ingest"
)

func indexCmd() *cobra.Command {
	var (
		file  string
		batch int
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load a JSONL corpus export into the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, envFlag(cmd), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(filepath.Clean(file))
				if err != nil {
					return fmt.Errorf("open corpus: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			if reset {
				if err := a.reset(ctx); err != nil {
					return fmt.Errorf("reset corpus: %w", err)
				}
				a.logger.Info("Corpus reset before load", zap.String("driver", a.cfg.Database.Driver))
			}

			if batch <= 0 {
				batch = a.cfg.Index.IngestBatchSize
			}
			loader := ingestuc.New(a.sink, a.docEmb, a.prepare, batch, a.logger)

			rep, err := loader.Load(ctx, in)
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}

			total, err := a.counter.Count(ctx)
			if err != nil {
				a.logger.Warn("Failed to count corpus documents", zap.Error(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"loaded %d, deleted %d, skipped %d, embedded %d (%d tokens); corpus size %d\n",
				rep.Loaded, rep.Deleted, rep.Skipped, rep.Embedded, rep.Tokens, total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSONL file to load, - for stdin")
	cmd.Flags().IntVar(&batch, "batch", 0, "documents per upsert (default from config)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing corpus before loading")
	return cmd
}
