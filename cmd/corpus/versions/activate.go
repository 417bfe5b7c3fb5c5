package versionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
)

const activateLongDesc string = `Swap the live pointer to a READY version.

Activation is atomic: queries in flight finish against the previous
version, and new queries see the activated one. Only READY versions
can be activated.

Examples:
  corpus versions activate v000042`

const activateShortDesc string = "Swap the live pointer to a READY version"

func newActivateCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: activateShortDesc,
		Long:  activateLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return resolveAPITarget(cmd, &apiTarget)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runActivate(apiTarget, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runActivate(apiTarget, id string) error {
	var resp struct {
		Live string `json:"live"`
	}
	if err := callAPI(apiTarget, "POST", "/v1/versions/"+id+"/activate", nil, &resp); err != nil {
		return err
	}

	fmt.Printf("  %s Live version is now %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(resp.Live),
	)
	return nil
}
