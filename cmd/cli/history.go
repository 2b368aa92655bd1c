package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyExport string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded submissions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err = initHandler(cmd, args); err != nil {
			return
		}
		if historyExport != "" {
			dst, createErr := os.Create(filepath.Clean(historyExport))
			if createErr != nil {
				return fmt.Errorf("could not open export location, error: %w", createErr)
			}
			defer dst.Close()
			return guardHandler.ExportHistory(dst)
		}
		entries, err := guardHandler.History()
		if err != nil {
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROJECT ID\tNAME\tLANGUAGE\tSUBMITTED\tSTATUS\tVULNERABILITIES")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				entry.ProjectID,
				entry.ProjectName,
				entry.Language,
				entry.SubmittedAt.Format("2006-01-02 15:04:05"),
				entry.Status,
				entry.VulnerabilitiesFound,
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyExport, "export", "", "write the recorded submissions as a JSON export to this file instead of listing them")
}
