package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/download"
	"github.com/thecodenomad/neurobik/pkg/provider"
)

func newDownloadCmd() *cobra.Command {
	var configPath string
	var assumeYes bool
	c := &cobra.Command{
		Use:   "download",
		Short: "Download incomplete models and pull or build OCI images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, configPath, assumeYes)
		},
	}
	c.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Process every candidate without prompting")
	_ = c.MarkFlagRequired("config")
	return c
}

func runDownload(cmd *cobra.Command, configPath string, assumeYes bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	opts := download.Options{Log: logrus.NewEntry(log)}
	if cfg.ModelProvider != "" {
		opts.Models, err = provider.ForModels(provider.Kind(cfg.ModelProvider), log.WithField("component", "model-provider"))
		if err != nil {
			return err
		}
	}
	if len(cfg.OCI) > 0 {
		opts.OCI, err = provider.ForOCI(provider.Kind(cfg.OCIProvider), log.WithField("component", "oci-provider"))
		if err != nil {
			return err
		}
	}
	orch := download.New(cfg, opts)

	candidates := orch.Candidates()
	if len(candidates) == 0 {
		cmd.Println("No items to download.")
		return nil
	}

	selection := candidates
	if !assumeYes {
		selection, err = promptSelection(cmd.InOrStdin(), cmd.OutOrStdout(), candidates)
		if err != nil {
			return err
		}
	}
	if len(selection) == 0 {
		cmd.Println("Nothing selected.")
		return nil
	}

	// Verify required tools once, before any transfer starts.
	if err := provider.CheckTools(orch.RequiredTools(selection)...); err != nil {
		return err
	}

	summary := orch.Run(cmd.Context(), selection)

	cmd.Println()
	failures := 0
	for _, res := range summary.Results {
		switch res.Outcome {
		case download.OutcomeSuccess:
			cmd.Printf("  ok       %s\n", res.Item)
		case download.OutcomeSkipped:
			cmd.Printf("  skipped  %s (already complete)\n", res.Item)
		case download.OutcomeFailed:
			failures++
			cmd.Printf("  failed   %s: %v\n", res.Item, res.Err)
		}
	}
	if summary.DefaultModelPath != "" {
		cmd.Printf("\nDefault model: %s\n", summary.DefaultModelPath)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d items failed; failed items will be offered again on the next run", failures, len(summary.Results))
	}
	return nil
}
