package models

import "time"

// Conversation senders.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
)

// Conversation is a single message in a customer/agent email thread.
//
// AutoProcessed transitions false -> true exactly once per customer message;
// the store enforces this with a conditional update so concurrent triggers
// (HTTP request + periodic watcher) cannot both claim the same row.
type Conversation struct {
	ID             int64     `json:"id"`
	CampaignLeadID int64     `json:"campaign_lead_id"`
	Sender         string    `json:"sender"`
	Message        string    `json:"message"`
	AgentToolUsed  string    `json:"agent_tool_used,omitempty"`
	EmailMessageID string    `json:"email_message_id,omitempty"`
	EmailInReplyTo string    `json:"email_in_reply_to,omitempty"`
	SalesNotified  bool      `json:"sales_team_notified"`
	AutoProcessed  bool      `json:"auto_reply_processed"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationContext bundles a customer conversation with the lead and
// campaign it belongs to. Loaded in one shot so the reply pipeline never
// chases foreign keys mid-flight.
type ConversationContext struct {
	Conversation Conversation
	CampaignLead CampaignLead
	Lead         Lead
	Campaign     Campaign
}
