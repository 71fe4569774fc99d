package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askProject string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the agent a question over CRM data and project documents",
	Long: `Ask routes the question to either the CRM database (counts, budgets,
statuses) or the ingested project brochures, and prints the synthesized
answer.

Examples:
  nurture ask "How many leads are connected?"
  nurture ask "What amenities does the project have?" --project "Marina Heights"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askProject, "project", "p", "", "scope the question to one project")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ag, err := getAgent()
	if err != nil {
		return err
	}

	answer, err := ag.Query(cmd.Context(), args[0], askProject)
	if err != nil {
		return err
	}

	fmt.Println(answer.Response)
	fmt.Printf("\n[tool: %s]\n", answer.Tool)
	return nil
}
