package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging .adtconfig over the built-in defaults.
The API key itself is never printed, only the variable it is read from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return fmt.Errorf("configuration not loaded")
		}
		data, err := yaml.Marshal(Config)
		if err != nil {
			return fmt.Errorf("formatting configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# base path: %s\n%s", BasePath, data)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and model access",
	Long: `Validate .adtconfig and check that the configured model can be reached:
the API key must resolve for the http provider, and the claude CLI must be
on PATH for the claude-cli provider.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil || ConfigMgr == nil {
			return fmt.Errorf("configuration not loaded")
		}
		if err := core.NewModelAccess(ConfigMgr, Config).Check(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (provider %s, model %s)\n", Config.Model.Provider, Config.Model.Name)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
