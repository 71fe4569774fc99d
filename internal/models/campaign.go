package models

import "time"

// Campaign channels.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Campaign represents a marketing campaign targeting a set of leads.
type Campaign struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ProjectName  string    `json:"project_name"`
	Channel      string    `json:"channel"`
	OfferDetails string    `json:"offer_details"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CampaignLead links a lead to a campaign and tracks the outbound send.
type CampaignLead struct {
	ID             int64      `json:"id"`
	CampaignID     int64      `json:"campaign_id"`
	LeadID         int64      `json:"lead_id"`
	MessageSent    bool       `json:"message_sent"`
	MessageSentAt  *time.Time `json:"message_sent_at,omitempty"`
	EmailMessageID string     `json:"email_message_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
