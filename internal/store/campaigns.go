package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nurtureai/nurture-go/internal/models"
)

// CreateCampaign inserts a campaign and returns it with its assigned ID.
func (s *Store) CreateCampaign(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (name, project_name, channel, offer_details, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.ProjectName, c.Channel, c.OfferDetails, c.IsActive, ts, ts)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Campaign{}, fmt.Errorf("campaign insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = parseTime(ts)
	c.UpdatedAt = c.CreatedAt
	return c, nil
}

// GetCampaign retrieves a campaign by primary key.
func (s *Store) GetCampaign(ctx context.Context, id int64) (models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, project_name, channel, offer_details, is_active, created_at, updated_at
		FROM campaigns WHERE id = ?`, id)

	var c models.Campaign
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.ProjectName, &c.Channel, &c.OfferDetails, &c.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("scan campaign: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// ListCampaigns returns all campaigns, newest first.
func (s *Store) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, project_name, channel, offer_details, is_active, created_at, updated_at
		FROM campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.ProjectName, &c.Channel, &c.OfferDetails, &c.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// CreateCampaignLead links a lead to a campaign.
func (s *Store) CreateCampaignLead(ctx context.Context, cl models.CampaignLead) (models.CampaignLead, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign_leads (campaign_id, lead_id, message_sent, message_sent_at, email_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cl.CampaignID, cl.LeadID, cl.MessageSent, formatTimePtr(cl.MessageSentAt), cl.EmailMessageID, ts)
	if err != nil {
		return models.CampaignLead{}, fmt.Errorf("insert campaign lead: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.CampaignLead{}, fmt.Errorf("campaign lead insert id: %w", err)
	}

	cl.ID = id
	cl.CreatedAt = parseTime(ts)
	return cl, nil
}

// MarkMessageSent records the outbound send and its Message-ID header so
// inbound replies can be threaded back to this campaign lead.
func (s *Store) MarkMessageSent(ctx context.Context, campaignLeadID int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaign_leads SET message_sent = 1, message_sent_at = ?, email_message_id = ?
		WHERE id = ?`, now(), messageID, campaignLeadID)
	if err != nil {
		return fmt.Errorf("mark message sent: %w", err)
	}
	return nil
}

// FindCampaignLeadByMessageID resolves an email Message-ID (either the
// original outbound send or a stored agent reply) to its campaign lead.
// Returns ErrNotFound if the ID matches nothing.
func (s *Store) FindCampaignLeadByMessageID(ctx context.Context, messageID string) (models.CampaignLead, error) {
	if messageID == "" {
		return models.CampaignLead{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT cl.id, cl.campaign_id, cl.lead_id, cl.message_sent, cl.message_sent_at, cl.email_message_id, cl.created_at
		FROM campaign_leads cl
		WHERE cl.email_message_id = ?
		UNION
		SELECT cl.id, cl.campaign_id, cl.lead_id, cl.message_sent, cl.message_sent_at, cl.email_message_id, cl.created_at
		FROM campaign_leads cl
		JOIN conversations c ON c.campaign_lead_id = cl.id
		WHERE c.email_message_id = ?
		LIMIT 1`, messageID, messageID)

	var cl models.CampaignLead
	var sentAt sql.NullString
	var createdAt string
	err := row.Scan(&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.MessageSent, &sentAt, &cl.EmailMessageID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CampaignLead{}, ErrNotFound
	}
	if err != nil {
		return models.CampaignLead{}, fmt.Errorf("scan campaign lead: %w", err)
	}
	if sentAt.Valid {
		t := parseTime(sentAt.String)
		cl.MessageSentAt = &t
	}
	cl.CreatedAt = parseTime(createdAt)
	return cl, nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
