package intent

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"
)

// fakeGenerator returns a canned response or error.
type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestClassifyGoalReached(t *testing.T) {
	c := NewClassifier(&fakeGenerator{
		response: `{"intent": "goal_reached", "confidence": 0.85, "reasoning": "asks to book", "goal_type": "viewing"}`,
	})

	result, err := c.Classify(context.Background(), "I'd like to schedule a viewing this weekend", "Marina Heights", "Ava")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Intent != IntentGoalReached {
		t.Errorf("intent = %q, want goal_reached", result.Intent)
	}
	if result.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", result.Confidence)
	}
	if result.GoalType != GoalViewing {
		t.Errorf("goal_type = %q, want viewing", result.GoalType)
	}
}

func TestClassifyTolerantOfSurroundingProse(t *testing.T) {
	c := NewClassifier(&fakeGenerator{
		response: "Here is my analysis:\n```json\n{\"intent\": \"question\", \"confidence\": 0.9, \"reasoning\": \"asks about amenities\", \"goal_type\": null}\n```\nHope this helps!",
	})

	result, err := c.Classify(context.Background(), "What amenities are there?", "", "")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Intent != IntentQuestion {
		t.Errorf("intent = %q, want question", result.Intent)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}
}

func TestClassifyMalformedOutputSafeDefault(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no json", "I think this customer wants a viewing"},
		{"broken json", `{"intent": "goal_reached", "confidence":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeGenerator{response: tt.response})

			result, err := c.Classify(context.Background(), "book me in", "", "")
			if !errors.Is(err, ErrClassification) {
				t.Fatalf("err = %v, want ErrClassification", err)
			}
			// Never defaults to goal_reached on ambiguity.
			if result.Intent != IntentQuestion {
				t.Errorf("intent = %q, want question", result.Intent)
			}
			if result.Confidence != 0 {
				t.Errorf("confidence = %v, want 0", result.Confidence)
			}
		})
	}
}

func TestClassifyProviderError(t *testing.T) {
	c := NewClassifier(&fakeGenerator{err: errors.New("all providers down")})

	result, err := c.Classify(context.Background(), "hello", "", "")
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("err = %v, want ErrClassification", err)
	}
	if result.Intent != IntentQuestion || result.Confidence != 0 {
		t.Errorf("safe default = %+v, want question/0", result)
	}
}

func TestParseResultNormalization(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantIntent     string
		wantConfidence float64
		wantGoalType   string
	}{
		{
			"unknown label becomes question",
			`{"intent": "complaint", "confidence": 0.6, "goal_type": "viewing"}`,
			IntentQuestion, 0.6, "",
		},
		{
			"uppercase label normalized",
			`{"intent": "GOAL_REACHED", "confidence": 0.8, "goal_type": "sales_call"}`,
			IntentGoalReached, 0.8, GoalSalesCall,
		},
		{
			"confidence clamped high",
			`{"intent": "question", "confidence": 1.7}`,
			IntentQuestion, 1, "",
		},
		{
			"confidence clamped low",
			`{"intent": "question", "confidence": -0.2}`,
			IntentQuestion, 0, "",
		},
		{
			"goal type cleared for question",
			`{"intent": "question", "confidence": 0.5, "goal_type": "viewing"}`,
			IntentQuestion, 0.5, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult(tt.raw)
			if err != nil {
				t.Fatalf("parseResult: %v", err)
			}
			if result.Intent != tt.wantIntent {
				t.Errorf("intent = %q, want %q", result.Intent, tt.wantIntent)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
			if result.GoalType != tt.wantGoalType {
				t.Errorf("goal_type = %q, want %q", result.GoalType, tt.wantGoalType)
			}
		})
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"café latte", 4, "caf..."},
		{"’’’", 4, "’..."},
	}

	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", tt.in, tt.n, got)
		}
	}
}
