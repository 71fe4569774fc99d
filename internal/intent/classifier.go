// Package intent classifies inbound customer messages so the reply
// pipeline can decide between escalating to sales and answering.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ErrClassification indicates the model's output could not be parsed into
// a valid classification. Callers treat it as intent=question with zero
// confidence; it must never default to goal_reached.
var ErrClassification = errors.New("intent classification failed")

// Intent labels.
const (
	IntentGoalReached = "goal_reached"
	IntentQuestion    = "question"
)

// Goal subtypes, meaningful only when intent is goal_reached.
const (
	GoalViewing   = "viewing"
	GoalSalesCall = "sales_call"
	GoalOther     = "other"
)

// Result is the classification of a single customer message.
type Result struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	GoalType   string  `json:"goal_type,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Generator is the LLM capability the classifier needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier determines message intent via an LLM call.
type Classifier struct {
	llm Generator
}

// NewClassifier creates a Classifier on top of the given LLM chain.
func NewClassifier(llm Generator) *Classifier {
	return &Classifier{llm: llm}
}

// Classify labels the message as goal_reached or question with a
// confidence score. On any failure it returns the safe default
// (question, confidence 0) together with an error wrapping
// ErrClassification.
func (c *Classifier) Classify(ctx context.Context, message, projectName, leadName string) (Result, error) {
	safe := Result{Intent: IntentQuestion, Confidence: 0}

	raw, err := c.llm.Generate(ctx, buildPrompt(message, projectName, leadName))
	if err != nil {
		return safe, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	result, err := parseResult(raw)
	if err != nil {
		slog.Warn("unparseable classification output", "error", err, "output", truncate(raw, 200))
		return safe, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	slog.Debug("classified intent", "intent", result.Intent, "confidence", result.Confidence, "goal_type", result.GoalType)
	return result, nil
}

func buildPrompt(message, projectName, leadName string) string {
	return fmt.Sprintf(`Analyze this customer email message and classify the intent.

Customer Message: %q
Project: %s
Lead Name: %s

Classify the intent into one of two categories:

1. "goal_reached": The customer has clearly expressed intent to:
   - Schedule a property viewing/site visit
   - Book a sales call/meeting
   - Request a callback
   - Express strong buying interest with next steps

2. "question": The customer is asking about:
   - Property features, amenities, facilities
   - Pricing, payment plans, offers
   - Location, unit types, specifications
   - General inquiries that need information retrieval

Respond in JSON format:
{
    "intent": "goal_reached" or "question",
    "confidence": 0.0 to 1.0,
    "reasoning": "Brief explanation",
    "goal_type": "viewing" or "sales_call" or "other" (only if intent is goal_reached, else null)
}

Be strict: only classify as "goal_reached" if the customer has clearly expressed
intent to take action. Questions about scheduling ("when can I visit?") are
"question" unless they explicitly ask to book.`, message, projectName, leadName)
}

// parseResult extracts and normalizes the JSON object from model output,
// tolerating surrounding prose and markdown fences.
func parseResult(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in output")
	}

	var result Result
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return Result{}, fmt.Errorf("unmarshal classification: %w", err)
	}

	result.Intent = strings.ToLower(strings.TrimSpace(result.Intent))
	if result.Intent != IntentGoalReached && result.Intent != IntentQuestion {
		result.Intent = IntentQuestion
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	if result.Intent != IntentGoalReached {
		result.GoalType = ""
	}

	return result, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
