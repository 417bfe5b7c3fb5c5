// Package searchcmder provides the search command for semantic search over
// the live corpus version.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	apisearch "github.com/inkwellco/corpus/api/search"
	"github.com/inkwellco/corpus/pkg/config"
	"github.com/inkwellco/corpus/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query string
	topK  uint
	quiet bool

	apiTarget string
}

const searchLongDesc string = `Search the live corpus version via the API.

Runs semantic search over the live index version, returning the most
relevant chunks for the query text. Requires a running corpus server
("corpus serve") with at least one activated version.

Use --quiet to output only chunk ids, one per line, for piping into
other commands.

Examples:
  corpus search "how to configure logging"
  corpus search "error handling patterns" --api-target http://localhost:8091
  corpus search "how to configure logging" --top-k 10
  corpus search "atomic pointer swap" --quiet`

const searchShortDesc string = "Search the live corpus version"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			if !cmd.Flags().Changed("top-k") && cfg.Retrieval.TopK > 0 {
				cmder.topK = cfg.Retrieval.TopK
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only chunk ids, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run() error {
	output, err := SearchAPI(c.apiTarget, c.query, int(c.topK))
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Println(result.ChunkID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		sourceStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result apisearch.SearchResult) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		sourceStyle.Render(result.Source),
	)

	preview := strings.ReplaceAll(utils.Truncate(result.Text, 157), "\n", " ")

	fmt.Printf("  %s\n", previewStyle.Render(preview))
	fmt.Printf("  %s\n\n", dimStyle.Render(fmt.Sprintf(
		"%s  chunk %d  [%d:%d)", result.ChunkID, result.Seq, result.Start, result.End,
	)))
}

// SearchAPI calls the corpus search API and returns the parsed output.
// Exported so other commands can reuse it.
func SearchAPI(apiTarget, query string, topK int) (*apisearch.SearchOutput, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("top_k", strconv.Itoa(topK))
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to corpus API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output apisearch.SearchOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
