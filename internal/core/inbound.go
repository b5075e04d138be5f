package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/inboxdesk/inboxdesk/internal/mailer"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/settings"
	"github.com/inboxdesk/inboxdesk/internal/store"
	"github.com/inboxdesk/inboxdesk/internal/thread"
)

// InboundEmail is the parsed webhook payload.
type InboundEmail struct {
	From        string            `json:"from"` // "Name <email>" or bare address
	Subject     string            `json:"subject"`
	Text        string            `json:"text"`
	Attachments []AttachmentInput `json:"attachments"`
	Headers     map[string]string `json:"headers"` // keys may be any case
}

type AttachmentInput struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// Header returns a header value regardless of key casing.
func (e *InboundEmail) Header(key string) string {
	for k, v := range e.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// InboundResult reports what processing did with the email.
type InboundResult struct {
	Ticket  *models.Ticket `json:"ticket"`
	Created bool           `json:"created"`
	Rule    string         `json:"matched_rule,omitempty"`
}

// ErrClientOnly is returned when CLIENT_ONLY_TICKETS is on, the email does
// not correlate to an existing ticket, and the sender is not in any active
// client's email set.
var ErrClientOnly = errors.New("sender is not a registered client")

// InboundStore is the store surface the webhook pipeline writes through.
type InboundStore interface {
	FindClientByEmail(email string) (*models.Client, error)
	CreateTicket(t *models.Ticket) error
	AppendMessage(m *models.Message) error
	CreateAttachments(atts []models.Attachment) error
	TouchLastReplied(ticketID string, at time.Time) error
	GetUserByID(id uint) (*models.User, error)
}

// SettingsSource provides the typed setting groups the services read.
type SettingsSource interface {
	SMTP() (settings.SMTP, error)
	Branding() (settings.Branding, error)
	Flags() (settings.Flags, error)
}

// TicketMatcher finds the existing ticket an email continues.
type TicketMatcher interface {
	Match(e thread.Email) (*models.Ticket, string, error)
}

// InboundService turns webhook emails into ticket messages or new tickets.
type InboundService struct {
	Store    InboundStore
	Matcher  TicketMatcher
	Mailer   mailer.Sender
	Settings SettingsSource
}

func NewInboundService(st InboundStore, m TicketMatcher, sender mailer.Sender, cfg SettingsSource) *InboundService {
	return &InboundService{Store: st, Matcher: m, Mailer: sender, Settings: cfg}
}

// Process runs the full inbound pipeline for one email.
//
// On a thread match the inbound content is appended and already durable
// before the (best-effort) agent notification goes out. On no match the
// confirmation email must be transmitted BEFORE the ticket row is created:
// a failed send aborts intake. The asymmetry is deliberate — new tickets
// must prove deliverability, replies must never be lost over a mail error.
func (s *InboundService) Process(ctx context.Context, in *InboundEmail) (*InboundResult, error) {
	fromEmail, fromName := parseFrom(in.From)
	if fromEmail == "" {
		metrics.InboundEmails.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("inbound: missing sender address")
	}

	email := thread.Email{
		MessageID:  in.Header("message-id"),
		InReplyTo:  in.Header("in-reply-to"),
		References: in.Header("references"),
		Subject:    in.Subject,
		Body:       in.Text,
	}

	ticket, ruleName, err := s.Matcher.Match(email)
	if err != nil {
		metrics.InboundEmails.WithLabelValues("error").Inc()
		return nil, err
	}

	if ticket != nil {
		// An exact Message-ID hit means this very email is already on the
		// thread: a redelivered webhook. Appending again would duplicate
		// the content, so acknowledge and stop.
		if ruleName == thread.RuleExactMessageID {
			metrics.InboundEmails.WithLabelValues("matched").Inc()
			return &InboundResult{Ticket: ticket, Rule: ruleName}, nil
		}
		if err := s.appendReply(ctx, ticket, in, email); err != nil {
			metrics.InboundEmails.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.InboundEmails.WithLabelValues("matched").Inc()
		return &InboundResult{Ticket: ticket, Rule: ruleName}, nil
	}

	created, err := s.createTicket(ctx, in, email, fromEmail, fromName)
	if err != nil {
		if errors.Is(err, ErrClientOnly) {
			metrics.InboundEmails.WithLabelValues("rejected").Inc()
		} else {
			metrics.InboundEmails.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.InboundEmails.WithLabelValues("created").Inc()
	return &InboundResult{Ticket: created, Created: true}, nil
}

// appendReply records the inbound message on the matched ticket and then
// notifies the assigned agent. The notification is best-effort: the message
// and timestamp update are already durable when it goes out.
func (s *InboundService) appendReply(ctx context.Context, ticket *models.Ticket, in *InboundEmail, email thread.Email) error {
	now := time.Now()
	msg := &models.Message{
		TicketID:   ticket.ID,
		Content:    in.Text,
		IsFromUser: true,
		MessageID:  email.MessageID,
		InReplyTo:  email.InReplyTo,
		References: email.References,
		CreatedAt:  now,
	}
	if err := s.Store.AppendMessage(msg); err != nil {
		return err
	}
	if err := s.Store.CreateAttachments(attachmentRows(ticket.ID, &msg.ID, in.Attachments)); err != nil {
		return err
	}
	if err := s.Store.TouchLastReplied(ticket.ID, now); err != nil {
		return err
	}

	if ticket.AssignedToID != nil {
		s.notifyAssignee(ctx, ticket, in)
	}
	return nil
}

func (s *InboundService) notifyAssignee(ctx context.Context, ticket *models.Ticket, in *InboundEmail) {
	agent, err := s.Store.GetUserByID(*ticket.AssignedToID)
	if err != nil {
		log.Printf("[inbound] assignee lookup failed for ticket %s: %v", ticket.ID, err)
		return
	}
	smtpCfg, err := s.Settings.SMTP()
	if err != nil {
		log.Printf("[inbound] skipping agent notification, SMTP not configured: %v", err)
		return
	}
	branding, err := s.Settings.Branding()
	if err != nil {
		log.Printf("[inbound] branding lookup failed: %v", err)
		return
	}

	note := &mailer.Email{
		To:      agent.Email,
		ToName:  agent.Name,
		Subject: fmt.Sprintf("[%s] New reply: %s", ticket.ID, ticket.Subject),
		Text: fmt.Sprintf("%s replied to ticket %s.\n\n%s\n\n%s/tickets/%s",
			ticket.FromEmail, ticket.ID, in.Text, branding.BaseURL, ticket.ID),
	}
	if err := s.Mailer.Send(ctx, smtpCfg, note); err != nil {
		// Logged, never propagated; the reply itself is already saved.
		log.Printf("[inbound] agent notification failed for ticket %s: %v", ticket.ID, err)
	}
}

// createTicket handles the no-match path. The client-only gate applies here
// and nowhere else: a reply that correlates to an existing ticket is accepted
// even when its sender has since left a client's email set. The confirmation
// email is sent before any row exists; when it fails, no ticket is created.
func (s *InboundService) createTicket(ctx context.Context, in *InboundEmail, email thread.Email, fromEmail, fromName string) (*models.Ticket, error) {
	client, err := s.Store.FindClientByEmail(fromEmail)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	flags, err := s.Settings.Flags()
	if err != nil {
		return nil, err
	}
	if flags.ClientOnlyTickets && client == nil {
		s.sendRejection(ctx, fromEmail, fromName, in.Subject)
		return nil, ErrClientOnly
	}

	smtpCfg, err := s.Settings.SMTP()
	if err != nil {
		return nil, fmt.Errorf("inbound: cannot confirm new ticket: %w", err)
	}
	branding, err := s.Settings.Branding()
	if err != nil {
		return nil, err
	}

	id := NewTicketID()
	confirmationID := fmt.Sprintf("<ticket-confirmation-%s@%s>", id, branding.MailDomain)

	confirmation := &mailer.Email{
		To:      fromEmail,
		ToName:  fromName,
		Subject: fmt.Sprintf("[%s] %s", id, in.Subject),
		Text: fmt.Sprintf("Hello,\n\nwe received your request and opened a ticket for it.\n\nTicket ID: %s\n\nReply to this email to add to the conversation.\n\n%s",
			id, branding.Signature),
		Headers: map[string]string{"Message-ID": confirmationID},
	}
	if err := s.Mailer.Send(ctx, smtpCfg, confirmation); err != nil {
		return nil, fmt.Errorf("inbound: confirmation send failed, ticket not created: %w", err)
	}

	now := time.Now()
	emailID := email.MessageID
	if emailID == "" {
		emailID = confirmationID
	}
	ticket := &models.Ticket{
		ID:            id,
		Subject:       in.Subject,
		FromEmail:     fromEmail,
		FromName:      fromName,
		EmailID:       emailID,
		LastMessageID: confirmationID,
		MessageIDs:    []string{confirmationID},
		Status:        models.TicketOpen,
		Priority:      models.PriorityNormal,
		CreatedAt:     now,
		LastReplied:   now,
	}
	if client != nil {
		ticket.ClientID = &client.ID
	}
	if err := s.Store.CreateTicket(ticket); err != nil {
		return nil, err
	}

	msg := &models.Message{
		TicketID:   ticket.ID,
		Content:    in.Text,
		IsFromUser: true,
		MessageID:  email.MessageID,
		InReplyTo:  email.InReplyTo,
		References: email.References,
		CreatedAt:  now,
	}
	if err := s.Store.AppendMessage(msg); err != nil {
		return nil, err
	}
	if err := s.Store.CreateAttachments(attachmentRows(ticket.ID, &msg.ID, in.Attachments)); err != nil {
		return nil, err
	}
	return ticket, nil
}

// sendRejection tells a non-client sender their email was not accepted.
// Best effort: a failed rejection notice only gets logged.
func (s *InboundService) sendRejection(ctx context.Context, toEmail, toName, subject string) {
	smtpCfg, err := s.Settings.SMTP()
	if err != nil {
		log.Printf("[inbound] skipping rejection notice, SMTP not configured: %v", err)
		return
	}
	branding, err := s.Settings.Branding()
	if err != nil {
		log.Printf("[inbound] branding lookup failed: %v", err)
		return
	}
	notice := &mailer.Email{
		To:      toEmail,
		ToName:  toName,
		Subject: fmt.Sprintf("Re: %s", subject),
		Text: fmt.Sprintf("Hello,\n\nsupport through this address is available to registered clients only. Your message was not accepted.\n\n%s",
			branding.Signature),
	}
	if err := s.Mailer.Send(ctx, smtpCfg, notice); err != nil {
		log.Printf("[inbound] rejection notice failed for %s: %v", toEmail, err)
	}
}

func attachmentRows(ticketID string, messageID *uint, inputs []AttachmentInput) []models.Attachment {
	if len(inputs) == 0 {
		return nil
	}
	rows := make([]models.Attachment, 0, len(inputs))
	for _, a := range inputs {
		rows = append(rows, models.Attachment{
			TicketID:     ticketID,
			MessageID:    messageID,
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
			URL:          a.URL,
		})
	}
	return rows
}

// parseFrom accepts "Name <email>" or a bare address.
func parseFrom(from string) (email, name string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		trimmed := strings.TrimSpace(from)
		if strings.Contains(trimmed, "@") {
			return store.NormalizeEmail(trimmed), ""
		}
		return "", ""
	}
	return store.NormalizeEmail(addr.Address), addr.Name
}
