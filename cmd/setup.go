package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"snowstream/internal/config"
	"snowstream/internal/ui"
	"snowstream/pkg/errors"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup for the connection profile and properties",
	Long: "Walks through the warehouse connection details and pipe/channel\n" +
		"names, then writes the profile and properties files used by the\n" +
		"other commands.",
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ui.ShowHeader("SnowStream Setup")

	var answers struct {
		Account        string
		User           string
		URL            string
		PrivateKeyPath string
		Database       string
		Schema         string
		Warehouse      string
		Role           string
	}

	questions := []*survey.Question{
		{
			Name:     "account",
			Prompt:   &survey.Input{Message: "Snowflake account identifier:"},
			Validate: survey.Required,
		},
		{
			Name:     "user",
			Prompt:   &survey.Input{Message: "Username:"},
			Validate: survey.Required,
		},
		{
			Name:     "url",
			Prompt:   &survey.Input{Message: "Account URL (e.g. xy12345.snowflakecomputing.com):"},
			Validate: survey.Required,
		},
		{
			Name: "privateKeyPath",
			Prompt: &survey.Input{
				Message: "Path to the PKCS#8 private key (PEM):",
				Default: "rsa_key.p8",
			},
			Validate: survey.Required,
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database:", Default: "AUTOMATED_INTELLIGENCE"},
			Validate: survey.Required,
		},
		{
			Name:     "schema",
			Prompt:   &survey.Input{Message: "Schema:", Default: "RAW"},
			Validate: survey.Required,
		},
		{
			Name:     "warehouse",
			Prompt:   &survey.Input{Message: "Warehouse:"},
			Validate: survey.Required,
		},
		{
			Name:   "role",
			Prompt: &survey.Input{Message: "Role:", Default: config.DefaultRole},
		},
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "setup aborted")
	}

	key, err := os.ReadFile(answers.PrivateKeyPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read private key %s", answers.PrivateKeyPath))
	}

	profile := map[string]string{
		"account":     answers.Account,
		"user":        answers.User,
		"url":         answers.URL,
		"private_key": string(key),
		"database":    answers.Database,
		"schema":      answers.Schema,
		"warehouse":   answers.Warehouse,
		"role":        answers.Role,
	}

	if err := writeIfConfirmed(profileFile, func() ([]byte, error) {
		return json.MarshalIndent(profile, "", "  ")
	}); err != nil {
		return err
	}

	if err := writeIfConfirmed(propertiesFile, func() ([]byte, error) {
		return []byte(defaultProperties), nil
	}); err != nil {
		return err
	}

	ui.ShowSuccess("setup complete")
	ui.ShowInfo("run 'snowstream seed <count>' to populate customers, then 'snowstream stream'")
	return nil
}

// defaultProperties is the properties file written by setup. The timing
// values are the tuned defaults; edit the file to override them.
const defaultProperties = `# SnowStream streaming properties
pipe.orders.name=ORDERS_PIPE
pipe.order_items.name=ORDER_ITEMS_PIPE
channel.orders.name=ORDERS_CHANNEL
channel.order_items.name=ORDER_ITEMS_CHANNEL

orders.batch.size=10000
insert.pause.millis=100
flush.wait.seconds=5
worker.flush.wait.seconds=2
batch.max.retries=3
batch.retry.delay.millis=1000
backpressure.max.attempts=5
backpressure.initial.delay.millis=1000
backpressure.max.delay.millis=30000
`

// writeIfConfirmed writes the rendered content, asking before overwriting an
// existing file.
func writeIfConfirmed(path string, render func() ([]byte, error)) error {
	if _, err := os.Stat(path); err == nil {
		overwrite := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%s already exists, overwrite?", path),
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "setup aborted")
		}
		if !overwrite {
			ui.ShowWarning("kept existing " + path)
			return nil
		}
	}

	data, err := render()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to render "+path)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write "+path)
	}
	ui.ShowSuccess("wrote " + path)
	return nil
}
