package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// maxSQLRows caps how many rows a generated query may feed into
// synthesis.
const maxSQLRows = 100

// schemaContext is the prompt context for SQL generation: the CRM schema
// plus documentation and examples covering the common query shapes.
const schemaContext = `CREATE TABLE leads (
    id INTEGER PRIMARY KEY,
    lead_id TEXT UNIQUE,
    name TEXT,
    email TEXT,
    country_code TEXT,
    phone TEXT,
    project_name TEXT,
    unit_type TEXT,
    budget_min REAL,
    budget_max REAL,
    status TEXT,
    created_at TEXT,
    updated_at TEXT
);

CREATE TABLE campaigns (
    id INTEGER PRIMARY KEY,
    name TEXT,
    project_name TEXT,
    channel TEXT,
    offer_details TEXT,
    is_active INTEGER,
    created_at TEXT,
    updated_at TEXT
);

CREATE TABLE campaign_leads (
    id INTEGER PRIMARY KEY,
    campaign_id INTEGER,
    lead_id INTEGER,
    message_sent INTEGER,
    message_sent_at TEXT,
    created_at TEXT
);

Documentation:
- The leads table holds potential customers with contact details, budget range, preferred unit type, and project interest.
- status is one of: Not Connected, Connected, Visit scheduled, Visit done not purchased, Purchased, Not interested.
- channel in campaigns is 'email' or 'whatsapp'.
- campaign_leads links leads to campaigns.

Examples:
SELECT COUNT(*) FROM leads WHERE status = 'Connected';
SELECT project_name, COUNT(*) AS count FROM leads GROUP BY project_name;
SELECT * FROM leads WHERE budget_min >= 1000000 AND budget_max <= 5000000;
SELECT unit_type, COUNT(*) FROM leads GROUP BY unit_type;
SELECT * FROM campaigns WHERE is_active = 1;`

// SQLTool converts natural language queries to SELECT statements and runs
// them against the CRM database.
type SQLTool struct {
	db  *sql.DB
	llm Generator
}

// NewSQLTool creates the text-to-SQL tool over the CRM database handle.
func NewSQLTool(db *sql.DB, llm Generator) *SQLTool {
	return &SQLTool{db: db, llm: llm}
}

// Name implements Tool.
func (t *SQLTool) Name() string { return ToolTextToSQL }

// Execute generates a SELECT for the query, runs it, and formats the rows
// as text. All failures wrap ErrToolExecution.
func (t *SQLTool) Execute(ctx context.Context, query, projectName string) (string, error) {
	prompt := fmt.Sprintf(`Given the following database schema and examples:

%s

Convert this natural language query to SQL: %q

Rules:
- Only generate SELECT queries
- Use proper SQLite syntax
- Return only the SQL query, no explanations
- If the query mentions a project name, filter on the project_name column
- Be precise with table and column names`, schemaContext, contextualize(query, projectName))

	generated, err := t.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: generate SQL: %v", ErrToolExecution, err)
	}

	sqlQuery := cleanSQL(generated)
	if err := validateSelect(sqlQuery); err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	slog.Debug("executing generated SQL", "sql", sqlQuery)

	rows, err := t.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return "", fmt.Errorf("%w: execute %q: %v", ErrToolExecution, sqlQuery, err)
	}
	defer rows.Close()

	formatted, err := formatRows(rows)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	return fmt.Sprintf("SQL executed: %s\n\n%s", sqlQuery, formatted), nil
}

func contextualize(query, projectName string) string {
	if projectName == "" {
		return query
	}
	return fmt.Sprintf("%s (project: %s)", query, projectName)
}

// cleanSQL strips markdown fences and surrounding whitespace from model
// output.
func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// validateSelect rejects anything but a single SELECT statement. WITH
// is allowed only when the statement after the CTE list is itself a
// SELECT: SQLite lets a CTE prefix DELETE, UPDATE, and INSERT.
func validateSelect(sqlQuery string) error {
	if sqlQuery == "" {
		return fmt.Errorf("empty generated SQL")
	}

	upper := strings.ToUpper(sqlQuery)
	switch {
	case strings.HasPrefix(upper, "SELECT"):
	case strings.HasPrefix(upper, "WITH"):
		if statementAfterCTEs(upper) != "SELECT" {
			return fmt.Errorf("generated SQL is not a SELECT: %q", sqlQuery)
		}
	default:
		return fmt.Errorf("generated SQL is not a SELECT: %q", sqlQuery)
	}

	// One statement only: a semicolon may appear solely at the end.
	if idx := strings.Index(sqlQuery, ";"); idx >= 0 && idx != len(sqlQuery)-1 {
		return fmt.Errorf("generated SQL contains multiple statements: %q", sqlQuery)
	}

	return nil
}

// statementAfterCTEs returns the first statement keyword that appears
// outside the parenthesized CTE bodies of a WITH clause. upper must be
// the uppercased statement.
func statementAfterCTEs(upper string) string {
	depth := 0
	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\'':
			for i++; i < len(upper) && upper[i] != '\''; i++ {
			}
		default:
			if depth != 0 {
				continue
			}
			for _, kw := range []string{"SELECT", "DELETE", "INSERT", "UPDATE", "REPLACE"} {
				if isKeywordAt(upper, i, kw) {
					return kw
				}
			}
		}
	}
	return ""
}

// isKeywordAt reports whether word occurs at s[i:] as a whole word.
func isKeywordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	end := i + len(word)
	return end == len(s) || !isIdentByte(s[end])
}

func isIdentByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// formatRows renders a result set as a pipe-separated table with a row
// count line.
func formatRows(rows *sql.Rows) (string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("result columns: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(columns, " | "))
	sb.WriteString("\n")

	count := 0
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() && count < maxSQLRows {
		if err := rows.Scan(pointers...); err != nil {
			return "", fmt.Errorf("scan result row: %w", err)
		}

		fields := make([]string, len(columns))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				fields[i] = ""
			case []byte:
				fields[i] = string(val)
			default:
				fields[i] = fmt.Sprint(val)
			}
		}
		sb.WriteString(strings.Join(fields, " | "))
		sb.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate result rows: %w", err)
	}

	fmt.Fprintf(&sb, "\n%d row(s)", count)
	return sb.String(), nil
}
