package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nurtureai/nurture-go/internal/models"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import leads from a CSV file",
	Long: `Import reads leads from a CSV file with a header row. Recognized
columns: lead_id, name, email, country_code, phone, project_name,
unit_type, budget_min, budget_max, status. Name and email are required;
missing lead IDs are generated.

Example:
  nurture import leads.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["name"]; !ok {
		return fmt.Errorf("missing required column: name")
	}
	if _, ok := columns["email"]; !ok {
		return fmt.Errorf("missing required column: email")
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var imported, skipped int
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", line, err)
		}

		lead := models.Lead{
			LeadID:      field(record, "lead_id"),
			Name:        field(record, "name"),
			Email:       field(record, "email"),
			CountryCode: field(record, "country_code"),
			Phone:       field(record, "phone"),
			ProjectName: field(record, "project_name"),
			UnitType:    field(record, "unit_type"),
			Status:      field(record, "status"),
		}
		if lead.Name == "" || lead.Email == "" {
			fmt.Fprintf(os.Stderr, "Skipping line %d: name and email are required\n", line)
			skipped++
			continue
		}
		if lead.LeadID == "" {
			lead.LeadID = uuid.NewString()
		}
		if lead.Status == "" {
			lead.Status = models.LeadStatusNotConnected
		}
		if v := field(record, "budget_min"); v != "" {
			if lead.BudgetMin, err = strconv.ParseFloat(v, 64); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping line %d: bad budget_min %q\n", line, v)
				skipped++
				continue
			}
		}
		if v := field(record, "budget_max"); v != "" {
			if lead.BudgetMax, err = strconv.ParseFloat(v, 64); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping line %d: bad budget_max %q\n", line, v)
				skipped++
				continue
			}
		}

		if _, err := st.CreateLead(cmd.Context(), lead); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping line %d: %v\n", line, err)
			skipped++
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d lead(s), skipped %d\n", imported, skipped)
	return nil
}
