package versionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
)

const rollbackLongDesc string = `Roll the live pointer back to a prior READY version.

Rollback is the same atomic swap as activation, pointed at an older
version. The version being rolled back to must still be READY; retired
or deleted versions cannot serve queries again.

Examples:
  corpus versions rollback v000041`

const rollbackShortDesc string = "Roll the live pointer back to a prior version"

func newRollbackCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "rollback <id>",
		Short: rollbackShortDesc,
		Long:  rollbackLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveAPITarget(cmd, &apiTarget)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runRollback(apiTarget, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runRollback(apiTarget, id string) error {
	var resp struct {
		Live string `json:"live"`
	}
	if err := callAPI(apiTarget, "POST", "/v1/versions/"+id+"/activate", nil, &resp); err != nil {
		return err
	}

	fmt.Printf("  %s Rolled back, live version is now %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(resp.Live),
	)
	return nil
}
