package cli

import (
	"fmt"

	"github.com/legacy-guard/guard-client/pkg/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print guard client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guard client version: %s\n", config.Version)
	},
}
