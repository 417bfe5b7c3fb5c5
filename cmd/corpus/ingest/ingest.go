// Package ingestcmder provides the ingest command for building index versions
// from a document directory.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/chunker"
	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
	"github.com/inkwellco/corpus/pkg/dotdir"
	embeddingutils "github.com/inkwellco/corpus/pkg/embeddings/utils"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/ingest"
	"github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/source"
	vectorutils "github.com/inkwellco/corpus/pkg/vector/utils"
)

type ingestCommander struct {
	storeProvider string
	storeTarget   string
	storePath     string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	chunkMaxSize uint
	chunkOverlap uint

	sourceRoot string
	configDir  string
	activate   bool
	watch      bool
	debug      bool
	logger     *slog.Logger
}

const ingestLongDesc string = `Ingest documents from a directory into a new index version.

Every invocation builds a fresh version: documents are chunked, embedded,
and written into a new collection, then the version is finalized as READY.
Existing versions are never modified. Pass --activate to swap the live
pointer to the new version once the batch succeeds.

With --watch, the command keeps running after the initial batch and
re-ingests (and activates) whenever files under the directory change.

Supported file types: .md, .txt, .rst, .adoc, .html

Examples:
  corpus ingest ./docs
  corpus ingest ./docs --activate
  corpus ingest ./docs --activate --watch
  corpus ingest ./docs --store sqlite --embedding-model nomic-embed-text`

const ingestShortDesc string = "Ingest documents into a new index version"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	flagKeys := []string{
		config.FlagStoreProvider,
		config.FlagStoreTarget,
		config.FlagStorePath,
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
		config.FlagEmbeddingDims,
		config.FlagChunkMaxSize,
		config.FlagChunkOverlap,
	}

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

			cfg := config.FromViper(v)
			cmder.storeProvider = cfg.Storage.Provider
			cmder.storeTarget = cfg.Storage.Target
			cmder.storePath = cfg.Storage.Path
			cmder.embeddingProvider = cfg.Embedding.Provider
			cmder.embeddingTarget = cfg.Embedding.Target
			cmder.embeddingModel = cfg.Embedding.Model
			cmder.embeddingDims = cfg.Embedding.Dimensions
			cmder.chunkMaxSize = cfg.Chunking.MaxSize
			cmder.chunkOverlap = cfg.Chunking.Overlap
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.sourceRoot = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTarget, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorePath, &cmder.storePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkMaxSize, &cmder.chunkMaxSize)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	cmd.Flags().BoolVarP(&cmder.activate, "activate", "a", false, "Swap the live pointer to the new version on success")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep running and re-ingest on file changes")

	return cmd
}

func (c *ingestCommander) run() error {
	c.logger = logger.New(
		logger.WithPretty(true),
		logger.WithDebug(c.debug),
	)

	ddm := dotdir.NewManager()
	corpusDir, err := ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving .corpus directory: %w", err)
	}
	if corpusDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		corpusDir = filepath.Join(home, ".corpus")
	}

	if c.storeProvider == "sqlite" && c.storePath == "" {
		c.storePath = filepath.Join(corpusDir, "corpus.db")
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: c.storeProvider,
		TargetURL:    c.storeTarget,
		DBPath:       c.storePath,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector driver: %w", err)
	}
	defer driver.Close()

	store, err := index.NewStore(index.Opts{
		Driver:     driver,
		Dir:        filepath.Join(corpusDir, "index"),
		Dimensions: int(c.embeddingDims),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer store.Close()

	embedder := embeddingutils.Lazy(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
	})
	defer embedder.Close()

	chk, err := chunker.New(int(c.chunkMaxSize), int(c.chunkOverlap))
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}

	coordinator, err := ingest.NewCoordinator(ingest.Opts{
		Store:    store,
		Embedder: embedder,
		Chunker:  chk,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	src, err := source.NewFilesystem(source.FilesystemOpts{
		Root:   c.sourceRoot,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("opening document source: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.ingestOnce(ctx, src, coordinator, store); err != nil {
		return err
	}

	if !c.watch {
		return nil
	}

	watcher, err := ingest.NewWatcher(ingest.WatcherOpts{
		Root:        c.sourceRoot,
		Coordinator: coordinator,
		Store:       store,
		Source:      src,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		c.logger.Info("received signal, stopping watcher", "signal", sig.String())
		cancel()
	}()

	fmt.Printf("\n  Watching %s for changes. Press Ctrl-C to stop.\n\n", c.sourceRoot)
	return watcher.Run(ctx)
}

func (c *ingestCommander) ingestOnce(
	ctx context.Context,
	src *source.Filesystem,
	coordinator *ingest.Coordinator,
	store *index.Store,
) error {
	var docs []source.Document
	err := cliui.Step(os.Stdout, fmt.Sprintf("Collecting documents from %s", c.sourceRoot), func() error {
		var err error
		docs, err = src.Documents(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("collecting documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("  No documents found. Nothing to ingest.")
		return nil
	}

	var report *ingest.Report
	err = cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %d documents", len(docs)), func() error {
		var err error
		report, err = coordinator.IngestBatch(ctx, docs)
		return err
	})
	if err != nil {
		if errors.Is(err, ingest.ErrBatchFailed) && report != nil {
			printReport(report)
		}
		return err
	}

	printReport(report)

	if c.activate {
		if err := store.Activate(ctx, report.VersionID); err != nil {
			return fmt.Errorf("activating %s: %w", report.VersionID, err)
		}
		fmt.Printf("  %s Activated %s\n\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(report.VersionID),
		)
	}

	return nil
}

func printReport(r *ingest.Report) {
	fmt.Printf("\n  %s  %s\n",
		cliui.KeyStyle.Render("Version:"),
		cliui.ValueStyle.Render(r.VersionID),
	)
	fmt.Printf("  %s  %d documents, %d records in %s\n",
		cliui.KeyStyle.Render("Ingested:"),
		len(r.Succeeded),
		r.Records,
		cliui.FormatDuration(r.Duration),
	)

	if len(r.Empty) > 0 {
		fmt.Printf("  %s  %d empty documents skipped\n",
			cliui.KeyStyle.Render("Empty:"),
			len(r.Empty),
		)
	}

	for _, f := range r.Failed {
		fmt.Printf("  %s %s: %s\n",
			cliui.FailMark,
			f.Source,
			cliui.DimStyle.Render(f.Reason),
		)
	}

	fmt.Println()
}
