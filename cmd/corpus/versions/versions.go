// Package versionscmder provides the versions command family for inspecting
// and managing index versions through the corpus API.
package versionscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/config"
)

const versionsLongDesc string = `Inspect and manage index versions.

Every ingestion batch builds a new immutable version. These subcommands
talk to a running corpus server ("corpus serve") to list versions, swap
the live pointer, roll back, delete, and prune.

Use subcommands:
  corpus versions list              List all versions and the live pointer
  corpus versions activate <id>     Swap the live pointer to a READY version
  corpus versions rollback <id>     Roll the live pointer back to a prior version
  corpus versions delete <id>       Delete a non-live version
  corpus versions prune             Retire READY versions beyond the keep window

Examples:
  corpus versions list
  corpus versions activate v000042
  corpus versions prune --keep 3`

const versionsShortDesc string = "Inspect and manage index versions"

func NewVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: versionsShortDesc,
		Long:  versionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newActivateCmd())
	cmd.AddCommand(newRollbackCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newPruneCmd())

	return cmd
}

// resolveAPITarget applies config file precedence to the api-target flag.
func resolveAPITarget(cmd *cobra.Command, apiTarget *string) error {
	if cmd.Flags().Changed("api-target") {
		return nil
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	*apiTarget = cfg.Client.APITarget
	return nil
}

// callAPI issues a JSON request against the corpus API and decodes the
// response body into out when out is non-nil.
func callAPI(apiTarget, method, path string, body, out any) error {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	target.Path = path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, target.String(), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to corpus API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
