package commands

import (
	"github.com/spf13/cobra"
)

var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the neurobik version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("neurobik version %s\n", Version)
		},
	}
}
