// Package reply turns captured customer emails into automated
// responses: goal-reached replies hand the lead to the sales team,
// questions are answered by the routing agent and nudged toward a
// viewing.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nurtureai/nurture-go/internal/agent"
	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/intent"
	"github.com/nurtureai/nurture-go/internal/mail"
	"github.com/nurtureai/nurture-go/internal/metrics"
	"github.com/nurtureai/nurture-go/internal/models"
	"github.com/nurtureai/nurture-go/internal/store"
)

// Actions a processed reply can result in.
const (
	ActionNotifiedSales = "notified_sales"
	ActionAnswered      = "answered"
	ActionSkipped       = "skipped"
)

// Goal intents below this confidence are answered as questions.
const goalConfidenceThreshold = 0.7

// Outcome describes what Process did with one customer reply.
type Outcome struct {
	Processed  bool    `json:"processed"`
	Action     string  `json:"action"`
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Tool       string  `json:"tool_used,omitempty"`
	Response   string  `json:"response,omitempty"`
}

// BatchResult summarizes one processing pass over pending replies.
type BatchResult struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Classifier labels a customer message with its intent.
type Classifier interface {
	Classify(ctx context.Context, message, projectName, leadName string) (intent.Result, error)
}

// QueryAgent answers a customer question over CRM data and documents.
type QueryAgent interface {
	Query(ctx context.Context, query, projectName string) (agent.Answer, error)
}

// Service generates and sends automated replies to customer emails.
type Service struct {
	store      *store.Store
	classifier Classifier
	agent      QueryAgent
	mailer     mail.Mailer
	templates  Templates
	salesEmail string
	metrics    *metrics.Collector
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCollector records classification timings and reply outcomes on the
// given collector.
func WithCollector(c *metrics.Collector) ServiceOption {
	return func(s *Service) { s.metrics = c }
}

// NewService wires the reply pipeline. The sales notification address
// falls back to the from-address when none is configured.
func NewService(s *store.Store, c Classifier, a QueryAgent, m mail.Mailer, cfg config.Config, opts ...ServiceOption) (*Service, error) {
	templates, err := LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}

	salesEmail := cfg.SalesEmail
	if salesEmail == "" {
		salesEmail = cfg.FromEmail
	}

	svc := &Service{
		store:      s,
		classifier: c,
		agent:      a,
		mailer:     m,
		templates:  templates,
		salesEmail: salesEmail,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Process handles one customer reply end to end: claim, classify, then
// either notify the sales team or answer through the agent. A reply
// already claimed is skipped unless force is set. The claim is released
// only when the agent produced no response at all; email failures are
// logged and the claim stands.
func (s *Service) Process(ctx context.Context, cc models.ConversationContext, force bool) (Outcome, error) {
	conv := cc.Conversation

	if conv.Sender != models.SenderCustomer {
		slog.Warn("refusing to auto-reply to non-customer message", "conversation_id", conv.ID)
		return Outcome{Action: ActionSkipped}, nil
	}

	// claimed is false on a forced reprocess of an already-handled
	// reply; in that case a failure must not reopen the claim.
	claimed := true
	if err := s.store.ClaimAutoReply(ctx, conv.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyProcessed) && force:
			claimed = false
		case errors.Is(err, store.ErrAlreadyProcessed):
			return Outcome{Action: ActionSkipped}, nil
		default:
			return Outcome{}, err
		}
	}

	start := time.Now()
	res, err := s.classifier.Classify(ctx, conv.Message, cc.Campaign.ProjectName, cc.Lead.Name)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpClassify, time.Since(start))
	}
	if err != nil {
		// Classify returns the safe question/zero-confidence default
		// alongside the error, so the reply still gets answered.
		slog.Warn("intent classification failed, treating as question",
			"conversation_id", conv.ID, "error", err)
	}
	slog.Info("classified customer reply",
		"conversation_id", conv.ID, "intent", res.Intent,
		"confidence", res.Confidence, "goal_type", res.GoalType)

	var outcome Outcome
	if res.Intent == intent.IntentGoalReached && res.Confidence >= goalConfidenceThreshold {
		outcome, err = s.notifySales(ctx, cc, res)
	} else {
		outcome, err = s.answerQuestion(ctx, cc, res, claimed)
	}
	if err != nil {
		return outcome, err
	}
	if s.metrics != nil {
		s.metrics.RecordReplyAction(outcome.Action)
	}
	return outcome, nil
}

// notifySales alerts the sales team about a goal-reached lead and sends
// the customer an acknowledgment.
func (s *Service) notifySales(ctx context.Context, cc models.ConversationContext, res intent.Result) (Outcome, error) {
	conv := cc.Conversation
	data := s.messageData(cc, res.GoalType)

	notification, err := s.templates.salesNotification(data)
	if err != nil {
		return Outcome{}, fmt.Errorf("render sales notification: %w", err)
	}

	subject := fmt.Sprintf("Lead Ready: %s - %s Request", cc.Lead.Name, goalDescription(res.GoalType))
	if _, err := s.mailer.Send(ctx, mail.Message{To: s.salesEmail, Subject: subject, Body: notification}); err != nil {
		slog.Error("sales notification send failed", "conversation_id", conv.ID, "error", err)
	}

	if err := s.store.MarkSalesNotified(ctx, conv.ID); err != nil {
		return Outcome{}, err
	}

	ack, err := s.templates.acknowledgment(data)
	if err != nil {
		return Outcome{}, fmt.Errorf("render acknowledgment: %w", err)
	}

	ackSubject := fmt.Sprintf("Thank you for your interest in %s", cc.Campaign.ProjectName)
	messageID, err := s.mailer.Send(ctx, mail.Message{
		To:        cc.Lead.Email,
		Subject:   ackSubject,
		Body:      ack,
		InReplyTo: conv.EmailMessageID,
	})
	if err != nil {
		slog.Error("acknowledgment send failed", "conversation_id", conv.ID, "error", err)
	}

	if _, err := s.store.CreateConversation(ctx, models.Conversation{
		CampaignLeadID: conv.CampaignLeadID,
		Sender:         models.SenderAgent,
		Message:        ack,
		AgentToolUsed:  "acknowledgment",
		EmailMessageID: messageID,
		EmailInReplyTo: conv.EmailMessageID,
	}); err != nil {
		slog.Error("store acknowledgment failed", "conversation_id", conv.ID, "error", err)
	}

	slog.Info("sales team notified", "conversation_id", conv.ID, "goal_type", res.GoalType)

	return Outcome{
		Processed:  true,
		Action:     ActionNotifiedSales,
		Intent:     res.Intent,
		Confidence: res.Confidence,
		Response:   ack,
	}, nil
}

// answerQuestion routes the message through the agent and replies with
// the answer plus the goal nudge.
func (s *Service) answerQuestion(ctx context.Context, cc models.ConversationContext, res intent.Result, claimed bool) (Outcome, error) {
	conv := cc.Conversation

	ans, err := s.agent.Query(ctx, conv.Message, cc.Campaign.ProjectName)
	if err != nil {
		// No response was produced, so the reply has to stay pending.
		// A claim that predates this call stays: releasing it would
		// queue a reply the customer already received.
		if claimed {
			if relErr := s.store.ReleaseAutoReply(ctx, conv.ID); relErr != nil {
				slog.Error("release after failed query", "conversation_id", conv.ID, "error", relErr)
			}
		}
		return Outcome{}, fmt.Errorf("conversation %d: %w", conv.ID, err)
	}

	suffix, err := s.templates.nudgeSuffix(s.messageData(cc, res.GoalType))
	if err != nil {
		return Outcome{}, fmt.Errorf("render nudge: %w", err)
	}
	body := ans.Response + suffix

	subject := fmt.Sprintf("Re: %s - Your Question", cc.Campaign.ProjectName)
	messageID, err := s.mailer.Send(ctx, mail.Message{
		To:        cc.Lead.Email,
		Subject:   subject,
		Body:      body,
		InReplyTo: conv.EmailMessageID,
	})
	if err != nil {
		slog.Error("reply send failed", "conversation_id", conv.ID, "error", err)
	}

	if _, err := s.store.CreateConversation(ctx, models.Conversation{
		CampaignLeadID: conv.CampaignLeadID,
		Sender:         models.SenderAgent,
		Message:        body,
		AgentToolUsed:  ans.Tool,
		EmailMessageID: messageID,
		EmailInReplyTo: conv.EmailMessageID,
	}); err != nil {
		slog.Error("store agent reply failed", "conversation_id", conv.ID, "error", err)
	}

	slog.Info("automated reply sent", "conversation_id", conv.ID, "tool", ans.Tool)

	return Outcome{
		Processed:  true,
		Action:     ActionAnswered,
		Intent:     res.Intent,
		Confidence: res.Confidence,
		Tool:       ans.Tool,
		Response:   body,
	}, nil
}

// ProcessPending runs Process over up to limit customer replies. With
// force it revisits already-processed replies instead.
func (s *Service) ProcessPending(ctx context.Context, limit int, force bool) (BatchResult, error) {
	var (
		contexts []models.ConversationContext
		err      error
	)
	if force {
		contexts, err = s.store.LoadProcessedCustomerConversations(ctx, limit)
	} else {
		contexts, err = s.store.LoadPendingCustomerConversations(ctx, limit)
	}
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Total: len(contexts)}
	for _, cc := range contexts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		outcome, err := s.Process(ctx, cc, force)
		switch {
		case err != nil:
			result.Errors++
			slog.Error("auto reply failed", "conversation_id", cc.Conversation.ID, "error", err)
		case !outcome.Processed:
			result.Skipped++
		default:
			result.Processed++
		}
	}
	return result, nil
}

func (s *Service) messageData(cc models.ConversationContext, goalType string) messageData {
	phone := cc.Lead.Phone
	if phone == "" {
		phone = "Not provided"
	}
	campaignName := cc.Campaign.Name
	if campaignName == "" {
		campaignName = "N/A"
	}

	return messageData{
		LeadName:        cc.Lead.Name,
		LeadEmail:       cc.Lead.Email,
		LeadPhone:       phone,
		ProjectName:     cc.Campaign.ProjectName,
		CampaignName:    campaignName,
		Channel:         cc.Campaign.Channel,
		GoalText:        goalText(goalType),
		GoalDescription: goalDescription(goalType),
		CustomerMessage: cc.Conversation.Message,
	}
}
