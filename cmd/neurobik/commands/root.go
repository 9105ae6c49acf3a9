// Package commands implements the neurobik CLI: declarative, idempotent
// downloading of model artifacts and OCI images.
package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "neurobik",
		Short:        "Download AI models and OCI images from a declarative config",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		newDownloadCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
