package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nurtureai/nurture-go/internal/models"
)

// CreateConversation inserts a conversation row and returns it with its ID.
func (s *Store) CreateConversation(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (campaign_lead_id, sender, message, agent_tool_used, email_message_id, email_in_reply_to, sales_team_notified, auto_reply_processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CampaignLeadID, c.Sender, c.Message, c.AgentToolUsed,
		c.EmailMessageID, c.EmailInReplyTo, c.SalesNotified, c.AutoProcessed, ts)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Conversation{}, fmt.Errorf("conversation insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = parseTime(ts)
	return c, nil
}

// GetConversation retrieves a conversation by primary key.
func (s *Store) GetConversation(ctx context.Context, id int64) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, conversationColumns+` WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	return c, err
}

// HasMessageID reports whether any conversation already carries the given
// email Message-ID. The inbox reader uses this to skip captured replies.
func (s *Store) HasMessageID(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE email_message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check message id: %w", err)
	}
	return n > 0, nil
}

// ClaimAutoReply atomically flips auto_reply_processed false -> true.
// Returns ErrAlreadyProcessed when another caller holds the claim, which is
// what serializes the periodic watcher against on-demand triggers.
func (s *Store) ClaimAutoReply(ctx context.Context, conversationID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET auto_reply_processed = 1
		WHERE id = ? AND auto_reply_processed = 0`, conversationID)
	if err != nil {
		return fmt.Errorf("claim auto reply: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim auto reply rows: %w", err)
	}
	if n == 0 {
		// Distinguish "already claimed" from "no such row".
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
			return fmt.Errorf("claim auto reply lookup: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// ReleaseAutoReply reverts a claim. Used only when processing reached no
// decision (response synthesis failed), so the reply stays pending.
func (s *Store) ReleaseAutoReply(ctx context.Context, conversationID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET auto_reply_processed = 0 WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("release auto reply: %w", err)
	}
	return nil
}

// MarkSalesNotified records that the sales team was alerted for this reply.
func (s *Store) MarkSalesNotified(ctx context.Context, conversationID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET sales_team_notified = 1 WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("mark sales notified: %w", err)
	}
	return nil
}

// LoadPendingCustomerConversations returns unprocessed customer replies
// with their lead and campaign context, oldest first.
func (s *Store) LoadPendingCustomerConversations(ctx context.Context, limit int) ([]models.ConversationContext, error) {
	return s.loadCustomerConversations(ctx, false, limit)
}

// LoadProcessedCustomerConversations returns already-handled customer
// replies, oldest first. Only forced reprocessing reads these.
func (s *Store) LoadProcessedCustomerConversations(ctx context.Context, limit int) ([]models.ConversationContext, error) {
	return s.loadCustomerConversations(ctx, true, limit)
}

func (s *Store) loadCustomerConversations(ctx context.Context, processed bool, limit int) ([]models.ConversationContext, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM conversations c
		WHERE c.sender = 'customer' AND c.auto_reply_processed = ?
		ORDER BY c.created_at LIMIT ?`, processed, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending conversations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contexts := make([]models.ConversationContext, 0, len(ids))
	for _, id := range ids {
		cc, err := s.GetConversationContext(ctx, id)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, cc)
	}
	return contexts, nil
}

// GetConversationContext loads a conversation together with its campaign
// lead, lead, and campaign.
func (s *Store) GetConversationContext(ctx context.Context, conversationID int64) (models.ConversationContext, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return models.ConversationContext{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT cl.id, cl.campaign_id, cl.lead_id, cl.message_sent, cl.message_sent_at, cl.email_message_id, cl.created_at
		FROM campaign_leads cl WHERE cl.id = ?`, conv.CampaignLeadID)

	var cl models.CampaignLead
	var sentAt sql.NullString
	var createdAt string
	err = row.Scan(&cl.ID, &cl.CampaignID, &cl.LeadID, &cl.MessageSent, &sentAt, &cl.EmailMessageID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationContext{}, fmt.Errorf("campaign lead %d: %w", conv.CampaignLeadID, ErrNotFound)
	}
	if err != nil {
		return models.ConversationContext{}, fmt.Errorf("scan campaign lead: %w", err)
	}
	if sentAt.Valid {
		t := parseTime(sentAt.String)
		cl.MessageSentAt = &t
	}
	cl.CreatedAt = parseTime(createdAt)

	lead, err := s.GetLead(ctx, cl.LeadID)
	if err != nil {
		return models.ConversationContext{}, fmt.Errorf("lead %d: %w", cl.LeadID, err)
	}
	campaign, err := s.GetCampaign(ctx, cl.CampaignID)
	if err != nil {
		return models.ConversationContext{}, fmt.Errorf("campaign %d: %w", cl.CampaignID, err)
	}

	return models.ConversationContext{
		Conversation: conv,
		CampaignLead: cl,
		Lead:         lead,
		Campaign:     campaign,
	}, nil
}

// ListConversations returns the thread for a campaign lead, oldest first.
func (s *Store) ListConversations(ctx context.Context, campaignLeadID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, conversationColumns+`
		WHERE campaign_lead_id = ? ORDER BY created_at`, campaignLeadID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

const conversationColumns = `SELECT id, campaign_lead_id, sender, message, agent_tool_used, email_message_id, email_in_reply_to, sales_team_notified, auto_reply_processed, created_at FROM conversations`

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var createdAt string
	err := row.Scan(&c.ID, &c.CampaignLeadID, &c.Sender, &c.Message, &c.AgentToolUsed,
		&c.EmailMessageID, &c.EmailInReplyTo, &c.SalesNotified, &c.AutoProcessed, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conversation{}, err
		}
		return models.Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}
