package versionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
	"github.com/inkwellco/corpus/pkg/index"
)

const listLongDesc string = `List all index versions and the live pointer.

Shows every version the manifest knows about, its lifecycle status,
record count, and creation time. The live version is marked.

Examples:
  corpus versions list`

const listShortDesc string = "List all index versions"

func newListCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveAPITarget(cmd, &apiTarget)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(apiTarget)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

type listResponse struct {
	Versions []index.Version `json:"versions"`
	Live     string          `json:"live"`
}

func runList(apiTarget string) error {
	var resp listResponse
	if err := callAPI(apiTarget, "GET", "/v1/versions", nil, &resp); err != nil {
		return err
	}

	if len(resp.Versions) == 0 {
		fmt.Println("No versions. Run \"corpus ingest\" to build one.")
		return nil
	}

	fmt.Println()
	for _, v := range resp.Versions {
		marker := " "
		if v.ID == resp.Live {
			marker = cliui.SuccessMark
		}

		fmt.Printf("  %s %s  %-8s  %6d records  %s\n",
			marker,
			cliui.KeyStyle.Render(v.ID),
			statusLabel(v.Status),
			v.Records,
			cliui.DimStyle.Render(v.CreatedAt.Format("2006-01-02 15:04:05")),
		)
	}

	fmt.Println()
	if resp.Live != "" {
		fmt.Printf("  Live: %s\n\n", cliui.ValueStyle.Render(resp.Live))
	} else {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No live version. Activate one to serve queries."))
	}

	return nil
}

func statusLabel(s index.Status) string {
	switch s {
	case index.StatusReady:
		return cliui.ValueStyle.Render(string(s))
	case index.StatusFailed:
		return cliui.FailMark + " " + string(s)
	default:
		return cliui.DimStyle.Render(string(s))
	}
}
