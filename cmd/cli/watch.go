package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folders]",
	Short: "Watch folders and submit dropped archives for analysis",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		logger.Debug("config", slog.Any("config", guardConfig))
		guardConfig.Paths = append(guardConfig.Paths, args...)
		if err = initHandler(cmd, args); err != nil {
			return
		}
		if err = guardHandler.Start(cmd.Context()); err != nil {
			return fmt.Errorf("could not start watching, err: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			if e := guardHandler.Stop(stopCtx); e != nil {
				logger.Error("error stopping watch", slog.String("error", e.Error()))
			}
		}()
		<-cmd.Context().Done()
		return
	},
	Args: checkTargets,
}
