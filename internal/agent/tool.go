package agent

import (
	"context"
	"errors"
)

// Tool identifiers. The set is closed: routing only ever picks one of
// these two.
const (
	ToolTextToSQL   = "text_to_sql"
	ToolDocumentRAG = "document_rag"
)

// ErrToolExecution indicates a retrieval tool failed (malformed generated
// query, empty retrieval set, backend error). The agent recovers locally:
// it proceeds to synthesis with a no-data marker instead of failing the
// whole query.
var ErrToolExecution = errors.New("tool execution failed")

// Tool is a retrieval backend the agent can route a query to.
type Tool interface {
	Name() string
	Execute(ctx context.Context, query, projectName string) (string, error)
}

// Generator is the LLM capability the agent and tools need.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
