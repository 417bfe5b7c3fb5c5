package versionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwellco/corpus/pkg/cliui"
	"github.com/inkwellco/corpus/pkg/config"
)

const pruneLongDesc string = `Retire READY versions beyond the keep window.

Keeps the most recent READY versions (the live version never counts
against the window and is never retired) and retires the rest: their
records are dropped from the vector store while the manifest entry
remains for history.

Examples:
  corpus versions prune
  corpus versions prune --keep 5`

const pruneShortDesc string = "Retire READY versions beyond the keep window"

func newPruneCmd() *cobra.Command {
	var (
		apiTarget string
		keep      uint
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: pruneShortDesc,
		Long:  pruneLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := resolveAPITarget(cmd, &apiTarget); err != nil {
				return err
			}

			if !cmd.Flags().Changed("keep") {
				configDir, _ := cmd.Flags().GetString("config-dir")
				cfger, err := config.NewConfiger(configDir)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg, err := cfger.LoadConfig()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				if cfg.Retention.Keep > 0 {
					keep = cfg.Retention.Keep
				}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPrune(apiTarget, keep)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagRetentionKeep, &keep)

	return cmd
}

func runPrune(apiTarget string, keep uint) error {
	var resp struct {
		Retired []string `json:"retired"`
	}
	body := map[string]any{"keep": keep}
	if err := callAPI(apiTarget, "POST", "/v1/versions/prune", body, &resp); err != nil {
		return err
	}

	if len(resp.Retired) == 0 {
		fmt.Println("  Nothing to prune.")
		return nil
	}

	for _, id := range resp.Retired {
		fmt.Printf("  %s Retired %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(id),
		)
	}
	return nil
}
