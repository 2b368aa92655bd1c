package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var noFollow bool

var submitCmd = &cobra.Command{
	Use:   "submit [targets]",
	Short: "Submit archives, source folders, git repositories or s3:// objects for analysis",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = initHandler(cmd, args); err != nil {
			return
		}
		if len(args) == 0 {
			args = guardConfig.Paths
		}
		for _, target := range args {
			if noFollow {
				if _, err = guardHandler.SubmitTarget(cmd.Context(), target); err != nil {
					logger.Error("error during submission", slog.String("target", target), slog.String("error", err.Error()))
					return
				}
				continue
			}
			if _, err = guardHandler.SubmitAndFollow(cmd.Context(), target); err != nil {
				logger.Error("error during analysis", slog.String("target", target), slog.String("error", err.Error()))
				return
			}
		}
		return
	},
	Args: checkTargets,
}

func init() {
	submitCmd.PersistentFlags().BoolVar(&noFollow, "no-follow", false, "submit and print the job id without waiting for the analysis to settle")
	submitCmd.PersistentFlags().StringVarP(&guardConfig.Branch, "branch", "b", "", "branch to clone when the target is a git repository (empty for the remote default branch)")
}
