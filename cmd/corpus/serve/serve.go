// Package servecmder provides the serve command for running the corpus API
// and MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/api"
	"github.com/inkwellco/corpus/api/mcp"
	"github.com/inkwellco/corpus/pkg/chunker"
	"github.com/inkwellco/corpus/pkg/config"
	"github.com/inkwellco/corpus/pkg/dotdir"
	embeddingutils "github.com/inkwellco/corpus/pkg/embeddings/utils"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/ingest"
	"github.com/inkwellco/corpus/pkg/logger"
	"github.com/inkwellco/corpus/pkg/retrieve"
	"github.com/inkwellco/corpus/pkg/source"
	vectorutils "github.com/inkwellco/corpus/pkg/vector/utils"
)

type ServeCommander struct {
	listen string

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
	watch      bool
	debug      bool
	logger     *slog.Logger
}

const serveLongDesc string = `Run the corpus API and MCP server.

Serves the REST API (search, ingest, version management) and mounts a
Model Context Protocol endpoint at /mcp so agents can search the corpus
as a tool.

The optional directory argument is the document source used by
POST /v1/ingest; it defaults to the current directory. With --watch,
file changes under the source directory trigger automatic re-ingestion
and activation of a fresh version.

Configuration follows flag > environment (CORPUS_*) > config.toml > default
precedence.

Examples:
  corpus serve
  corpus serve ./docs --listen :8091
  corpus serve ./docs --watch --store sqlite
  corpus serve --store chroma --store-target http://localhost:8000`

const serveShortDesc string = "Run the corpus API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	flagKeys := []string{
		config.FlagAPIListen,
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
		Use:   "serve [dir]",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

			cfg := config.FromViper(v)
			cmder.listen = cfg.API.Listen
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
			cmder.sourceRoot = "."
			if len(args) == 1 {
				cmder.sourceRoot = args[0]
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTarget, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorePath, &cmder.storePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkMaxSize, &cmder.chunkMaxSize)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Re-ingest and activate on source file changes")

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.New(
		logger.WithPretty(true),
		logger.WithDebug(c.debug),
	)

	corpusDir, err := resolveCorpusDir(c.configDir)
	if err != nil {
		return err
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

	c.logger.Info("using vector store",
		"provider", c.storeProvider,
	)

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

	retriever, err := retrieve.NewRetriever(retrieve.Opts{
		Store:    store,
		Embedder: embedder,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating retriever: %w", err)
	}

	src, err := source.NewFilesystem(source.FilesystemOpts{
		Root:   c.sourceRoot,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("opening document source: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Retriever: retriever,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Opts{
		Config:      api.Config{ListenAddr: c.listen},
		Store:       store,
		Coordinator: coordinator,
		Retriever:   retriever,
		Source:      src,
		MCP:         mcpServer,
		Logger:      c.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if c.watch {
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

		go func() {
			if err := watcher.Run(ctx); err != nil {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		return server.Shutdown()
	}
}

// resolveCorpusDir picks the .corpus/ directory for persistent state,
// falling back to ~/.corpus when no local directory exists.
func resolveCorpusDir(configDir string) (string, error) {
	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving .corpus directory: %w", err)
	}
	if target != "" {
		return target, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".corpus"), nil
}
