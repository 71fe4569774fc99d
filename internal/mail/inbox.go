package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/models"
	"github.com/nurtureai/nurture-go/internal/store"
)

// InboxEmail is a parsed inbound message.
type InboxEmail struct {
	MessageID  string
	InReplyTo  string
	References []string
	From       string
	Subject    string
	Body       string
	Date       time.Time
}

// ThreadIDs returns every Message-ID this email claims to reply to, most
// specific first.
func (e InboxEmail) ThreadIDs() []string {
	var ids []string
	if e.InReplyTo != "" {
		ids = append(ids, e.InReplyTo)
	}
	// References lists the thread root first; walk newest first.
	for i := len(e.References) - 1; i >= 0; i-- {
		if ref := e.References[i]; ref != "" && ref != e.InReplyTo {
			ids = append(ids, ref)
		}
	}
	return ids
}

// InboxReader polls an IMAP mailbox for customer replies and captures
// them as customer conversation rows.
type InboxReader struct {
	cfg   config.Config
	store *store.Store
}

// NewInboxReader creates a reader over the CRM store.
func NewInboxReader(cfg config.Config, s *store.Store) *InboxReader {
	return &InboxReader{cfg: cfg, store: s}
}

// CheckReplies fetches messages received since the given time, threads
// them back to campaign leads via In-Reply-To/References, and stores new
// customer conversations. Returns how many replies were captured.
func (r *InboxReader) CheckReplies(ctx context.Context, since time.Time) (int, error) {
	emails, err := r.fetchSince(since)
	if err != nil {
		return 0, err
	}

	captured := 0
	for _, email := range emails {
		ok, err := r.capture(ctx, email)
		if err != nil {
			slog.Warn("failed to capture reply", "message_id", email.MessageID, "error", err)
			continue
		}
		if ok {
			captured++
		}
	}

	slog.Info("inbox check complete", "fetched", len(emails), "captured", captured)
	return captured, nil
}

// capture stores one email as a customer conversation if it threads back
// to a known campaign lead and has not been seen before.
func (r *InboxReader) capture(ctx context.Context, email InboxEmail) (bool, error) {
	if email.MessageID != "" {
		seen, err := r.store.HasMessageID(ctx, email.MessageID)
		if err != nil {
			return false, err
		}
		if seen {
			return false, nil
		}
	}

	var campaignLead models.CampaignLead
	matched := false
	for _, threadID := range email.ThreadIDs() {
		cl, err := r.store.FindCampaignLeadByMessageID(ctx, threadID)
		if err == nil {
			campaignLead = cl
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	_, err := r.store.CreateConversation(ctx, models.Conversation{
		CampaignLeadID: campaignLead.ID,
		Sender:         models.SenderCustomer,
		Message:        email.Body,
		EmailMessageID: email.MessageID,
		EmailInReplyTo: email.InReplyTo,
	})
	if err != nil {
		return false, err
	}

	slog.Info("captured customer reply", "campaign_lead", campaignLead.ID, "from", email.From)
	return true, nil
}

// fetchSince pulls raw messages over IMAP and parses them.
func (r *InboxReader) fetchSince(since time.Time) ([]InboxEmail, error) {
	addr := fmt.Sprintf("%s:%d", r.cfg.IMAPHost, r.cfg.IMAPPort)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(r.cfg.IMAPUser, r.cfg.IMAPPass).Wait(); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	defer func() {
		if err := client.Logout().Wait(); err != nil {
			slog.Debug("imap logout failed", "error", err)
		}
	}()

	if _, err := client.Select(r.cfg.IMAPMailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", r.cfg.IMAPMailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{}
	fetchOptions := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	messages, err := client.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	var emails []InboxEmail
	for _, msg := range messages {
		raw := msg.FindBodySection(bodySection)
		if len(raw) == 0 {
			continue
		}
		email, err := ParseEmail(raw)
		if err != nil {
			slog.Warn("failed to parse inbound email", "error", err)
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// ParseEmail parses a raw RFC 5322 message into an InboxEmail, extracting
// the plain-text body from multipart content when present.
func ParseEmail(raw []byte) (InboxEmail, error) {
	msg, err := netmail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return InboxEmail{}, fmt.Errorf("read message: %w", err)
	}

	email := InboxEmail{
		MessageID:  strings.TrimSpace(msg.Header.Get("Message-ID")),
		InReplyTo:  strings.TrimSpace(msg.Header.Get("In-Reply-To")),
		References: splitReferences(msg.Header.Get("References")),
		Subject:    msg.Header.Get("Subject"),
		From:       msg.Header.Get("From"),
	}

	if addr, err := netmail.ParseAddress(email.From); err == nil {
		email.From = addr.Address
	}
	if date, err := msg.Header.Date(); err == nil {
		email.Date = date
	}

	body, err := extractTextBody(msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return InboxEmail{}, err
	}
	email.Body = StripQuotedText(body)

	return email, nil
}

func splitReferences(header string) []string {
	var refs []string
	for _, ref := range strings.Fields(header) {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// extractTextBody returns the first text/plain part of a multipart
// message, or the whole body for non-multipart content. Bodies and
// parts are decoded per their Content-Transfer-Encoding.
func extractTextBody(contentType, transferEncoding string, body io.Reader) (string, error) {
	if contentType == "" {
		data, err := io.ReadAll(decodeTransfer(body, transferEncoding))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(data), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable Content-Type: treat as plain text.
		data, readErr := io.ReadAll(decodeTransfer(body, transferEncoding))
		if readErr != nil {
			return "", fmt.Errorf("read body: %w", readErr)
		}
		return string(data), nil
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(decodeTransfer(body, transferEncoding))
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(data), nil
	}

	reader := multipart.NewReader(body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read multipart: %w", err)
		}

		partType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}
		if partType == "text/plain" {
			decoded := decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding"))
			data, err := io.ReadAll(decoded)
			if err != nil {
				return "", fmt.Errorf("read text part: %w", err)
			}
			return string(data), nil
		}
	}
	return "", nil
}

// decodeTransfer wraps r with the decoder the Content-Transfer-Encoding
// header calls for. 7bit, 8bit, binary, and unknown encodings pass
// through unchanged.
func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// StripQuotedText removes quoted reply lines and the "On ... wrote:"
// attribution so only the customer's own words reach the classifier.
func StripQuotedText(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		if strings.HasPrefix(trimmed, "On ") && strings.HasSuffix(trimmed, "wrote:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
