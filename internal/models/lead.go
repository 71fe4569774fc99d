// Package models defines the CRM domain types shared across packages.
package models

import "time"

// Lead statuses as tracked by the sales pipeline.
const (
	LeadStatusNotConnected   = "Not Connected"
	LeadStatusConnected      = "Connected"
	LeadStatusVisitScheduled = "Visit scheduled"
	LeadStatusVisitDone      = "Visit done not purchased"
	LeadStatusPurchased      = "Purchased"
	LeadStatusNotInterested  = "Not interested"
)

// Lead represents a potential customer for a real estate project.
type Lead struct {
	ID          int64     `json:"id"`
	LeadID      string    `json:"lead_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CountryCode string    `json:"country_code"`
	Phone       string    `json:"phone"`
	ProjectName string    `json:"project_name"`
	UnitType    string    `json:"unit_type"`
	BudgetMin   float64   `json:"budget_min"`
	BudgetMax   float64   `json:"budget_max"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
