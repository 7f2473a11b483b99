package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"snowstream/internal/snowflake"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Detect and repair cross-table inconsistencies",
	Long: "Removes orphaned orders, orphaned order items and duplicate orders\n" +
		"left behind by partially failed ingestion runs, then reports the\n" +
		"final row counts. Safe to run repeatedly; a second pass over\n" +
		"consistent tables changes nothing.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc := snowflake.NewService(cfg.Profile)
		if err := svc.Connect(ctx); err != nil {
			return err
		}
		defer svc.Close()

		return runReconciliation(ctx, cfg, svc, logrus.NewEntry(logrus.StandardLogger()))
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
