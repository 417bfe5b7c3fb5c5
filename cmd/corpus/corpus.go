// Package corpuscmder
package corpuscmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/inkwellco/corpus/cmd/corpus/config"
	ingestcmder "github.com/inkwellco/corpus/cmd/corpus/ingest"
	initcmder "github.com/inkwellco/corpus/cmd/corpus/init"
	searchcmder "github.com/inkwellco/corpus/cmd/corpus/search"
	servecmder "github.com/inkwellco/corpus/cmd/corpus/serve"
	versionscmder "github.com/inkwellco/corpus/cmd/corpus/versions"
	versioncmder "github.com/inkwellco/corpus/cmd/version"
)

const corpusLongDesc string = `Corpus is a versioned document ingestion and retrieval pipeline.

Documents are chunked, embedded, and written into immutable index versions.
Retrieval always runs against the live version, and the live pointer swaps
atomically so readers never see a half-built index.

Common workflows:
  corpus init                   Initialize a local .corpus/ directory
  corpus ingest ./docs          Build a new index version from a directory
  corpus serve ./docs           Run the API and MCP server
  corpus search "query text"    Search the live version via the API
  corpus versions list          Inspect index versions`

const corpusShortDesc string = "Corpus - versioned document retrieval"

func NewCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: corpusShortDesc,
		Long:  corpusLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .corpus/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(versionscmder.NewVersionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
