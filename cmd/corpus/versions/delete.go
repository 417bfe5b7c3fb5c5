package versionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
)

const deleteLongDesc string = `Delete a non-live version.

Drops the version's records from the vector store and removes its
manifest entry. The live version and versions still building cannot
be deleted.

Examples:
  corpus versions delete v000040`

const deleteShortDesc string = "Delete a non-live version"

func newDeleteCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveAPITarget(cmd, &apiTarget)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runDelete(apiTarget, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runDelete(apiTarget, id string) error {
	var resp struct {
		Deleted string `json:"deleted"`
	}
	if err := callAPI(apiTarget, "DELETE", "/v1/versions/"+id, nil, &resp); err != nil {
		return err
	}

	fmt.Printf("  %s Deleted %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(resp.Deleted),
	)
	return nil
}
