package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var follow bool

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show the status and findings of a submitted analysis",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = initHandler(cmd, args); err != nil {
			return
		}
		if follow {
			_, err = guardHandler.Follow(cmd.Context(), args[0])
			return
		}
		_, err = guardHandler.Fetch(cmd.Context(), args[0])
		return
	},
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("exactly one project id is mandatory")
		}
		return nil
	},
}

func init() {
	statusCmd.PersistentFlags().BoolVarP(&follow, "follow", "f", false, "keep polling while the job is running instead of a one-shot fetch")
}
