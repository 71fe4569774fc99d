package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nurtureai/nurture-go/internal/rag"
)

var ingestProject string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a project brochure for document retrieval",
	Long: `Ingest extracts text from a PDF, markdown, or plain-text brochure,
splits it into chunks, embeds each chunk, and stores them for the
agent's document retrieval tool.

Examples:
  nurture ingest brochures/marina-heights.pdf --project "Marina Heights"
  nurture ingest docs/payment-plans.md --project "Palm Vista"`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "project the document belongs to (required)")
	_ = ingestCmd.MarkFlagRequired("project")
}

func runIngest(cmd *cobra.Command, args []string) error {
	e, err := getEmbedder()
	if err != nil {
		return err
	}

	ingestor := rag.NewIngestor(rag.NewChunkStore(st.DB()), e)
	count, err := ingestor.IngestFile(cmd.Context(), args[0], ingestProject)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: %d chunks stored for %q\n", args[0], count, ingestProject)
	return nil
}
