package commands

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/confirm"
)

func newStatusCmd() *cobra.Command {
	var configPath string
	c := &cobra.Command{
		Use:   "status",
		Short: "Show completion state for every configured item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}
	c.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	_ = c.MarkFlagRequired("config")
	return c
}

func runStatus(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store := confirm.Store{}

	for _, m := range cfg.Models {
		cmd.Printf("  %-9s model: %s\n", markerState(store, m.ConfirmationFile), m.ModelName)
	}
	for _, o := range cfg.OCI {
		cmd.Printf("  %-9s oci:   %s\n", markerState(store, o.ConfirmationFile), o.Image)
	}

	if marker := cfg.ProviderConfirmationFile(); marker != "" {
		cmd.Printf("  %-9s provider ready marker\n", markerState(store, marker))
	}
	if dir := cfg.ModelsDir(); dir != "" {
		if entries, err := os.ReadDir(dir); err == nil {
			for _, e := range entries {
				if e.Type()&os.ModeSymlink == 0 || !strings.HasPrefix(e.Name(), "default-model.") {
					continue
				}
				if target, err := os.Readlink(filepath.Join(dir, e.Name())); err == nil {
					cmd.Printf("  default model: %s -> %s\n", e.Name(), target)
				}
			}
		}
	}
	return nil
}

func markerState(store confirm.Store, path string) string {
	if store.Exists(path) {
		return "complete"
	}
	return "pending"
}
