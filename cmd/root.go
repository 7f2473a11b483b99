package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"snowstream/internal/config"
	"snowstream/internal/ui"
)

var (
	propertiesFile string
	profileFile    string
	verbose        bool

	rootCmd = &cobra.Command{
		Use:   "snowstream",
		Short: "Stream synthetic order data into Snowflake",
		Long: "SnowStream - a load harness that generates synthetic e-commerce orders,\n" +
			"streams them into Snowflake over offset-tracked channels and reconciles\n" +
			"the resulting tables back to a consistent state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&propertiesFile, "config", "config.properties",
		"path to the streaming properties file")
	rootCmd.PersistentFlags().StringVar(&profileFile, "profile", "profile.json",
		"path to the connection profile")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// loadConfig loads and validates both configuration files for commands that
// talk to the warehouse.
func loadConfig() (*config.Config, error) {
	return config.Load(propertiesFile, profileFile)
}
