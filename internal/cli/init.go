package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize an adt workspace",
	Long: `Initialize a new or existing directory as an adt workspace: a .adtconfig,
a knowledge_base/ directory for retrieval documents, a prompts/ directory for
persona template overrides and a projects/ output root.

Safe to run on existing workspaces -- files and directories that already
exist are skipped and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if WorkspaceInit == nil {
			return fmt.Errorf("workspace initializer not initialized")
		}

		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		name, _ := cmd.Flags().GetString("name")
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		baseURL, _ := cmd.Flags().GetString("base-url")
		keyEnv, _ := cmd.Flags().GetString("api-key-env")

		result, err := WorkspaceInit.Init(core.InitConfig{
			BasePath:  absPath,
			Name:      name,
			Provider:  models.ModelProvider(provider),
			Model:     model,
			BaseURL:   baseURL,
			APIKeyEnv: keyEnv,
		})
		if err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(result.Created) > 0 {
			fmt.Fprintln(out, "Created:")
			for _, p := range result.Created {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}
		if len(result.Skipped) > 0 {
			fmt.Fprintln(out, "Skipped (already exist):")
			for _, p := range result.Skipped {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}

		fmt.Fprintf(out, "\nWorkspace initialized at %s\n", absPath)
		return nil
	},
}

func init() {
	initCmd.Flags().String("name", "", "Workspace name (defaults to directory basename)")
	initCmd.Flags().String("provider", string(models.ProviderHTTP), "Model provider: http or claude-cli")
	initCmd.Flags().String("model", "", "Model name (defaults to the built-in default)")
	initCmd.Flags().String("base-url", "", "OpenAI-compatible endpoint for the http provider")
	initCmd.Flags().String("api-key-env", "", "Environment variable holding the API key")
	rootCmd.AddCommand(initCmd)
}
