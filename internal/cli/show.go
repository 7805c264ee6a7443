package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Show prints the merged configuration after the config file, environment
variables and flags are applied.`,
	RunE: showConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func showConfig(cmd *cobra.Command, args []string) error {
	settings := viper.AllSettings()

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
