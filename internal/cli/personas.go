package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the pipeline personas",
	Long: `List the personas in pipeline order. Templates can be overridden with
<prompts>/<persona>.txt files or a personas.yaml overlay.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range core.AllPersonas {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
	},
}

var personasShowCmd = &cobra.Command{
	Use:   "show <persona>",
	Short: "Print the prompt template a persona will use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Templates == nil {
			return fmt.Errorf("template manager not initialized")
		}
		tmpl, err := Templates.GetTemplate(core.Persona(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tmpl)
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personasShowCmd)
	rootCmd.AddCommand(personasCmd)
}
