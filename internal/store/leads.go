package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nurtureai/nurture-go/internal/models"
)

// CreateLead inserts a lead and returns it with its assigned ID.
func (s *Store) CreateLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (lead_id, name, email, country_code, phone, project_name, unit_type, budget_min, budget_max, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.LeadID, lead.Name, lead.Email, lead.CountryCode, lead.Phone,
		lead.ProjectName, lead.UnitType, lead.BudgetMin, lead.BudgetMax, lead.Status, ts, ts)
	if err != nil {
		return models.Lead{}, fmt.Errorf("insert lead: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Lead{}, fmt.Errorf("lead insert id: %w", err)
	}

	lead.ID = id
	lead.CreatedAt = parseTime(ts)
	lead.UpdatedAt = lead.CreatedAt
	return lead, nil
}

// GetLead retrieves a lead by primary key.
func (s *Store) GetLead(ctx context.Context, id int64) (models.Lead, error) {
	return s.scanLead(s.db.QueryRowContext(ctx, leadColumns+` WHERE id = ?`, id))
}

// GetLeadByEmail retrieves a lead by email address.
func (s *Store) GetLeadByEmail(ctx context.Context, email string) (models.Lead, error) {
	return s.scanLead(s.db.QueryRowContext(ctx, leadColumns+` WHERE email = ? COLLATE NOCASE`, email))
}

// ListLeads returns all leads ordered by lead_id.
func (s *Store) ListLeads(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, leadColumns+` ORDER BY lead_id`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLeadRow(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

const leadColumns = `SELECT id, lead_id, name, email, country_code, phone, project_name, unit_type, budget_min, budget_max, status, created_at, updated_at FROM leads`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanLead(row *sql.Row) (models.Lead, error) {
	lead, err := scanLeadRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, ErrNotFound
	}
	return lead, err
}

func scanLeadRow(row rowScanner) (models.Lead, error) {
	var lead models.Lead
	var createdAt, updatedAt string
	err := row.Scan(&lead.ID, &lead.LeadID, &lead.Name, &lead.Email, &lead.CountryCode,
		&lead.Phone, &lead.ProjectName, &lead.UnitType, &lead.BudgetMin, &lead.BudgetMax,
		&lead.Status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Lead{}, err
		}
		return models.Lead{}, fmt.Errorf("scan lead: %w", err)
	}
	lead.CreatedAt = parseTime(createdAt)
	lead.UpdatedAt = parseTime(updatedAt)
	return lead, nil
}
