// Package configcmder provides the config command for managing persistent
// corpus configuration stored in the .corpus/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent corpus configuration.

Configuration is stored as config.toml in the .corpus/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.target, storage.path,
  api.listen, client.api_target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  chunking.max_size, chunking.overlap,
  retrieval.top_k, retention.keep

Use subcommands to get, set, or list configuration values:
  corpus config set <key> <value>    Set a configuration value
  corpus config get <key>            Get a configuration value
  corpus config list                 List all configuration values

Examples:
  corpus config set storage.provider sqlite
  corpus config set embedding.model nomic-embed-text
  corpus config get embedding.dimensions
  corpus config list`

const configShortDesc string = "Manage persistent corpus configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
