package cli

import (
	"fmt"
	"time"

	"sms_crm_agent/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

var correctionsLimit int

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Inspect classification corrections",
}

var correctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent corrections, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := sqlite.NewStore(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.RecentCorrections(cmd.Context(), correctionsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(out, "No corrections recorded.")
			return nil
		}
		for _, r := range recs {
			fmt.Fprintf(out, "%s  %s -> %s  %q\n", r.CreatedAt.Format(time.RFC3339), r.OriginalLabel, r.CorrectLabel, r.Message)
		}
		return nil
	},
}

func init() {
	correctionsListCmd.Flags().IntVarP(&correctionsLimit, "limit", "n", 20, "maximum number of corrections to show")
	correctionsCmd.AddCommand(correctionsListCmd)
	rootCmd.AddCommand(correctionsCmd)
}
