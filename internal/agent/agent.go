// Package agent implements the query-routing workflow: classify a query's
// shape, execute one of two retrieval tools, and synthesize a natural
// language answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrSynthesis indicates the final response could not be generated. This
// is the one unrecoverable failure in the pipeline; callers get no
// partial response.
var ErrSynthesis = errors.New("response synthesis failed")

// noDataMarker replaces the tool result when execution fails, so the
// synthesized response degrades gracefully instead of erroring out.
const noDataMarker = "NO DATA FOUND: the retrieval tool returned no usable data for this query."

// node is a step in the agent workflow.
type node int

const (
	nodeRoute node = iota
	nodeExecute
	nodeSynthesize
	nodeDone
)

// State carries a single query through the workflow. It is created per
// call and discarded once the answer is returned.
type State struct {
	Query       string
	ProjectName string
	ToolChoice  string
	Result      string
	Response    string
}

// Answer is the agent's output for one query.
type Answer struct {
	Tool     string `json:"tool_used"`
	Response string `json:"response"`
}

// Agent routes queries between the text-to-SQL and document retrieval
// tools and synthesizes final responses.
type Agent struct {
	llm   Generator
	tools map[string]Tool
}

// New creates an Agent over the two retrieval tools.
func New(llm Generator, sqlTool, ragTool Tool) *Agent {
	return &Agent{
		llm: llm,
		tools: map[string]Tool{
			sqlTool.Name(): sqlTool,
			ragTool.Name(): ragTool,
		},
	}
}

// Query runs the full workflow for one query. The only error it returns
// wraps ErrSynthesis (possibly over a provider-unavailable cause); tool
// failures degrade into the response text instead.
func (a *Agent) Query(ctx context.Context, query, projectName string) (Answer, error) {
	state := &State{Query: query, ProjectName: projectName}

	for n := nodeRoute; n != nodeDone; {
		switch n {
		case nodeRoute:
			a.route(ctx, state)
			n = nodeExecute
		case nodeExecute:
			a.executeTool(ctx, state)
			n = nodeSynthesize
		case nodeSynthesize:
			if err := a.synthesize(ctx, state); err != nil {
				return Answer{}, err
			}
			n = nodeDone
		}
	}

	return Answer{Tool: state.ToolChoice, Response: state.Response}, nil
}

// route decides which tool handles the query. The LLM gets the first
// word; if it fails or answers ambiguously, a deterministic keyword
// heuristic decides, with document retrieval as the tie-break default.
func (a *Agent) route(ctx context.Context, state *State) {
	prompt := fmt.Sprintf(`Analyze this query and determine if it should use:
1. sql: questions about data, statistics, counts, lists of leads, campaign data
2. rag: questions about property features, amenities, project details, brochures

Query: %q
Project: %s

Respond with ONLY "sql" or "rag" (no quotes, no explanation).`, state.Query, state.ProjectName)

	answer, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		state.ToolChoice = routeHeuristic(state.Query)
		slog.Warn("routing LLM failed, using heuristic", "tool", state.ToolChoice, "error", err)
		return
	}

	switch normalized := strings.ToLower(strings.TrimSpace(answer)); {
	case strings.Contains(normalized, "sql"):
		state.ToolChoice = ToolTextToSQL
	case strings.Contains(normalized, "rag"):
		state.ToolChoice = ToolDocumentRAG
	default:
		state.ToolChoice = routeHeuristic(state.Query)
		slog.Warn("ambiguous routing answer, using heuristic", "answer", answer, "tool", state.ToolChoice)
	}
}

// aggregateVocabulary marks queries that want counts, aggregates, lists,
// or structured filters.
var aggregateVocabulary = []string{
	"how many",
	"count",
	"average",
	"total",
	"sum of",
	"list all",
	"list the",
	"number of",
	"minimum",
	"maximum",
	"statistics",
	"between", // budget/price range filters
}

// routeHeuristic routes on query vocabulary alone. Ties resolve toward
// document retrieval, the context-grounded default.
func routeHeuristic(query string) string {
	q := strings.ToLower(query)
	for _, word := range aggregateVocabulary {
		if strings.Contains(q, word) {
			return ToolTextToSQL
		}
	}
	return ToolDocumentRAG
}

// executeTool invokes the chosen tool. Failures do not retry the other
// tool; the result degrades to the no-data marker.
func (a *Agent) executeTool(ctx context.Context, state *State) {
	tool := a.tools[state.ToolChoice]
	result, err := tool.Execute(ctx, state.Query, state.ProjectName)
	if err != nil {
		slog.Warn("tool execution failed, degrading to no-data synthesis", "tool", state.ToolChoice, "error", err)
		state.Result = noDataMarker
		return
	}
	state.Result = result
}

func (a *Agent) synthesize(ctx context.Context, state *State) error {
	systemPrompt := `You are a helpful real estate assistant answering a customer's question.
Answer based ONLY on the provided data. If the data says no data was found,
apologize briefly, suggest rephrasing, and offer to connect the customer with
the sales team. Be concise, conversational, and friendly.`

	userPrompt := fmt.Sprintf(`Data:
%s

Customer question: %s

Answer:`, state.Result, state.Query)

	response, err := a.llm.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	state.Response = strings.TrimSpace(response)
	return nil
}
