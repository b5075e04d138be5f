// Package thread correlates inbound emails with existing tickets.
//
// Matching runs an ordered list of rules and stops at the first hit. The
// rules only ever read from the store; side effects (appending messages,
// creating tickets) belong to the caller.
package thread

import (
	"errors"
	"regexp"
	"strings"

	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

// Email is the slice of an inbound message the matcher looks at.
type Email struct {
	MessageID  string
	InReplyTo  string
	References string
	Subject    string
	Body       string
}

// TicketLookup is the read-only store surface the matcher needs.
type TicketLookup interface {
	FindMessageByMessageID(messageID string) (*models.Message, error)
	FindTicketsByThreadTerm(term string) ([]models.Ticket, error)
	FindTicketByID(id string) (*models.Ticket, error)
}

// Matcher evaluates the rule cascade against a lookup backend.
type Matcher struct {
	lookup TicketLookup
	rules  []rule
}

type rule struct {
	name  string
	match func(m *Matcher, e Email) (*models.Ticket, error)
}

// Rule names, in cascade order.
const (
	RuleExactMessageID        = "exact-message-id"
	RuleThreadingHeaders      = "threading-headers"
	RuleBodyTicketID          = "body-ticket-id"
	RuleSubjectTicketID       = "subject-ticket-id"
	RuleConfirmationMessageID = "confirmation-message-id"
	RuleReverseInReplyTo      = "reverse-in-reply-to"
)

// Body and subject patterns for embedded ticket ids, tried in order.
var (
	bodyIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Ticket ID:\s*([a-zA-Z0-9]+)`),
		regexp.MustCompile(`(?i)ticket\s*#?\s*([a-zA-Z0-9]+)`),
		regexp.MustCompile(`(?i)case\s*#?\s*([a-zA-Z0-9]+)`),
		regexp.MustCompile(`\[([a-zA-Z0-9]+)\]`),
	}
	subjectIDPattern      = regexp.MustCompile(`\[([a-zA-Z0-9]+)\]`)
	confirmationIDPattern = regexp.MustCompile(`ticket-confirmation-([a-zA-Z0-9]+)@`)
)

// NewMatcher builds the standard rule cascade.
func NewMatcher(lookup TicketLookup) *Matcher {
	return &Matcher{
		lookup: lookup,
		rules: []rule{
			{RuleExactMessageID, (*Matcher).matchExactMessageID},
			{RuleThreadingHeaders, (*Matcher).matchThreadingHeaders},
			{RuleBodyTicketID, (*Matcher).matchBodyTicketID},
			{RuleSubjectTicketID, (*Matcher).matchSubjectTicketID},
			{RuleConfirmationMessageID, (*Matcher).matchConfirmationID},
			{RuleReverseInReplyTo, (*Matcher).matchReverseInReplyTo},
		},
	}
}

// Match returns the ticket the email continues, plus the name of the rule
// that found it. (nil, "", nil) means no match: the email starts a new
// ticket. Lookup misses are not errors; anything else aborts the cascade.
func (m *Matcher) Match(e Email) (*models.Ticket, string, error) {
	for _, r := range m.rules {
		t, err := r.match(m, e)
		if err != nil {
			return nil, "", err
		}
		if t != nil {
			return t, r.name, nil
		}
	}
	return nil, "", nil
}

// Rule 1: a message with this exact Message-ID already exists. This also
// catches duplicate webhook deliveries of the same email.
func (m *Matcher) matchExactMessageID(e Email) (*models.Ticket, error) {
	if e.MessageID == "" {
		return nil, nil
	}
	msg, err := m.lookup.FindMessageByMessageID(e.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg.Ticket, nil
}

// Rule 2: In-Reply-To then References, each matched against ticket thread
// ids and stored message headers. First term with any hit wins.
func (m *Matcher) matchThreadingHeaders(e Email) (*models.Ticket, error) {
	for _, term := range []string{e.InReplyTo, e.References} {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		tickets, err := m.lookup.FindTicketsByThreadTerm(term)
		if err != nil {
			return nil, err
		}
		if len(tickets) > 0 {
			return &tickets[0], nil
		}
	}
	return nil, nil
}

// Rule 3: a ticket id embedded in the body text.
func (m *Matcher) matchBodyTicketID(e Email) (*models.Ticket, error) {
	for _, pattern := range bodyIDPatterns {
		match := pattern.FindStringSubmatch(e.Body)
		if match == nil {
			continue
		}
		t, err := m.lookupTicketID(match[1])
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

// Rule 4: a [ticketid] tag in the subject line.
func (m *Matcher) matchSubjectTicketID(e Email) (*models.Ticket, error) {
	match := subjectIDPattern.FindStringSubmatch(e.Subject)
	if match == nil {
		return nil, nil
	}
	return m.lookupTicketID(match[1])
}

// Rule 5: the inbound Message-ID is itself one of our confirmation ids
// (ticket-confirmation-{id}@{domain}).
func (m *Matcher) matchConfirmationID(e Email) (*models.Ticket, error) {
	match := confirmationIDPattern.FindStringSubmatch(e.MessageID)
	if match == nil {
		return nil, nil
	}
	return m.lookupTicketID(match[1])
}

// Rule 6: last resort, strip angle brackets off In-Reply-To and look for a
// message with that exact Message-ID.
func (m *Matcher) matchReverseInReplyTo(e Email) (*models.Ticket, error) {
	stripped := strings.Trim(strings.TrimSpace(e.InReplyTo), "<>")
	if stripped == "" {
		return nil, nil
	}
	msg, err := m.lookup.FindMessageByMessageID(stripped)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg.Ticket, nil
}

func (m *Matcher) lookupTicketID(id string) (*models.Ticket, error) {
	t, err := m.lookup.FindTicketByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
