package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nurtureai/nurture-go/internal/models"
	"github.com/nurtureai/nurture-go/internal/store"
)

// cannedSQL always answers with the same generated SQL.
type cannedSQL struct {
	sql string
	err error
}

func (c *cannedSQL) Generate(ctx context.Context, prompt string) (string, error) {
	return c.sql, c.err
}

func (c *cannedSQL) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("not used")
}

func newSQLToolStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for _, lead := range []models.Lead{
		{LeadID: "L-001", Name: "Ava", Email: "ava@example.com", Status: models.LeadStatusConnected},
		{LeadID: "L-002", Name: "Ben", Email: "ben@example.com", Status: models.LeadStatusConnected},
		{LeadID: "L-003", Name: "Chloe", Email: "chloe@example.com", Status: models.LeadStatusNotInterested},
	} {
		if _, err := s.CreateLead(ctx, lead); err != nil {
			t.Fatalf("seed lead: %v", err)
		}
	}
	return s
}

func TestSQLToolExecute(t *testing.T) {
	s := newSQLToolStore(t)
	tool := NewSQLTool(s.DB(), &cannedSQL{
		sql: "```sql\nSELECT COUNT(*) AS connected FROM leads WHERE status = 'Connected';\n```",
	})

	result, err := tool.Execute(context.Background(), "how many connected leads?", "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result, "connected") {
		t.Errorf("result should include column header, got %q", result)
	}
	if !strings.Contains(result, "2") {
		t.Errorf("result should include the count, got %q", result)
	}
	if !strings.Contains(result, "1 row(s)") {
		t.Errorf("result should include row count, got %q", result)
	}
}

func TestSQLToolRejectsNonSelect(t *testing.T) {
	s := newSQLToolStore(t)

	tests := []struct {
		name string
		sql  string
	}{
		{"delete", "DELETE FROM leads"},
		{"update", "UPDATE leads SET status = 'Purchased'"},
		{"multi statement", "SELECT 1; DROP TABLE leads;"},
		{"empty", "```\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewSQLTool(s.DB(), &cannedSQL{sql: tt.sql})
			_, err := tool.Execute(context.Background(), "anything", "")
			if !errors.Is(err, ErrToolExecution) {
				t.Fatalf("err = %v, want ErrToolExecution", err)
			}
		})
	}
}

func TestSQLToolRejectsMutatingCTE(t *testing.T) {
	s := newSQLToolStore(t)
	tool := NewSQLTool(s.DB(), &cannedSQL{
		sql: "WITH t AS (SELECT id FROM leads) DELETE FROM leads WHERE id IN (SELECT id FROM t)",
	})

	_, err := tool.Execute(context.Background(), "clean up the leads", "")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM leads").Scan(&count); err != nil {
		t.Fatalf("count leads: %v", err)
	}
	if count != 3 {
		t.Errorf("leads table has %d rows after rejected statement, want 3", count)
	}
}

func TestSQLToolGenerationFailure(t *testing.T) {
	s := newSQLToolStore(t)
	tool := NewSQLTool(s.DB(), &cannedSQL{err: errors.New("providers down")})

	_, err := tool.Execute(context.Background(), "how many leads?", "")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}

func TestSQLToolBadGeneratedQuery(t *testing.T) {
	s := newSQLToolStore(t)
	tool := NewSQLTool(s.DB(), &cannedSQL{sql: "SELECT nope FROM missing_table"})

	_, err := tool.Execute(context.Background(), "how many leads?", "")
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
}

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  SELECT 1;  ", "SELECT 1;"},
	}

	for _, tt := range tests {
		if got := cleanSQL(tt.in); got != tt.want {
			t.Errorf("cleanSQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateSelect(t *testing.T) {
	valid := []string{
		"SELECT * FROM leads",
		"select count(*) from leads;",
		"WITH c AS (SELECT 1) SELECT * FROM c",
		"WITH a AS (SELECT 1), b AS (SELECT 2) SELECT * FROM a JOIN b",
		"WITH deleted_leads AS (SELECT id FROM leads) SELECT COUNT(*) FROM deleted_leads",
	}
	for _, sql := range valid {
		if err := validateSelect(sql); err != nil {
			t.Errorf("validateSelect(%q) = %v, want nil", sql, err)
		}
	}

	invalid := []string{
		"",
		"DROP TABLE leads",
		"INSERT INTO leads (name) VALUES ('x')",
		"SELECT 1; SELECT 2",
		"WITH t AS (SELECT id FROM leads) DELETE FROM leads WHERE id IN (SELECT id FROM t)",
		"WITH t AS (SELECT 1) UPDATE leads SET status = 'Purchased'",
		"WITH t AS (SELECT 1) INSERT INTO leads (name) SELECT 'x'",
	}
	for _, sql := range invalid {
		if err := validateSelect(sql); err == nil {
			t.Errorf("validateSelect(%q) = nil, want error", sql)
		}
	}
}
