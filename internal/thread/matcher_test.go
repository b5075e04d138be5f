package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

// fakeLookup backs the matcher with in-memory fixtures.
type fakeLookup struct {
	messages map[string]*models.Message // keyed by MessageID
	terms    map[string][]models.Ticket // keyed by thread term
	tickets  map[string]*models.Ticket  // keyed by ticket id
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		messages: make(map[string]*models.Message),
		terms:    make(map[string][]models.Ticket),
		tickets:  make(map[string]*models.Ticket),
	}
}

func (f *fakeLookup) FindMessageByMessageID(id string) (*models.Message, error) {
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeLookup) FindTicketsByThreadTerm(term string) ([]models.Ticket, error) {
	return f.terms[term], nil
}

func (f *fakeLookup) FindTicketByID(id string) (*models.Ticket, error) {
	if t, ok := f.tickets[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeLookup) addTicket(id string) *models.Ticket {
	t := &models.Ticket{ID: id}
	f.tickets[id] = t
	return t
}

func (f *fakeLookup) addMessage(messageID string, ticket *models.Ticket) {
	f.messages[messageID] = &models.Message{MessageID: messageID, TicketID: ticket.ID, Ticket: ticket}
}

func TestMatchExactMessageID(t *testing.T) {
	lookup := newFakeLookup()
	ticket := lookup.addTicket("AAAA111111")
	lookup.addMessage("<dup@example.com>", ticket)

	m := NewMatcher(lookup)
	got, rule, err := m.Match(Email{MessageID: "<dup@example.com>"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAAA111111", got.ID)
	assert.Equal(t, "exact-message-id", rule)
}

func TestMatchThreadingHeaders(t *testing.T) {
	tests := []struct {
		name      string
		email     Email
		termHits  map[string]string // term -> ticket id
		wantID    string
		wantRule  string
		wantMatch bool
	}{
		{
			name:      "in-reply-to hits a stored message id",
			email:     Email{InReplyTo: "<msg1@remote>"},
			termHits:  map[string]string{"<msg1@remote>": "T1AAAAAAAA"},
			wantID:    "T1AAAAAAAA",
			wantRule:  "threading-headers",
			wantMatch: true,
		},
		{
			name:      "references consulted after in-reply-to misses",
			email:     Email{InReplyTo: "<miss@remote>", References: "<ref1@remote>"},
			termHits:  map[string]string{"<ref1@remote>": "T2BBBBBBBB"},
			wantID:    "T2BBBBBBBB",
			wantRule:  "threading-headers",
			wantMatch: true,
		},
		{
			name:      "in-reply-to wins over references",
			email:     Email{InReplyTo: "<a@remote>", References: "<b@remote>"},
			termHits:  map[string]string{"<a@remote>": "T3CCCCCCCC", "<b@remote>": "T4DDDDDDDD"},
			wantID:    "T3CCCCCCCC",
			wantRule:  "threading-headers",
			wantMatch: true,
		},
		{
			name:      "whitespace-only terms are skipped",
			email:     Email{InReplyTo: "   "},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := newFakeLookup()
			for term, id := range tt.termHits {
				ticket := lookup.addTicket(id)
				lookup.terms[term] = []models.Ticket{*ticket}
			}
			got, rule, err := NewMatcher(lookup).Match(tt.email)
			require.NoError(t, err)
			if !tt.wantMatch {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestMatchBodyTicketID(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ticket id label", "Hello,\n\nTicket ID: ABC123\n\nthanks"},
		{"ticket id label lowercase", "see ticket id: ABC123 please"},
		{"ticket hash", "regarding ticket #ABC123"},
		{"case hash", "Case # ABC123 follow-up"},
		{"bracketed", "about [ABC123] again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := newFakeLookup()
			lookup.addTicket("ABC123")
			got, rule, err := NewMatcher(lookup).Match(Email{Body: tt.body})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "ABC123", got.ID)
			assert.Equal(t, "body-ticket-id", rule)
		})
	}
}

func TestMatchBodyTicketIDFallsThroughUnknownIDs(t *testing.T) {
	lookup := newFakeLookup()
	lookup.addTicket("REAL00")

	// The first pattern captures NOPE99, which resolves to nothing; the
	// bracket pattern then finds the real id.
	body := "Ticket ID: NOPE99 but actually [REAL00]"
	got, _, err := NewMatcher(lookup).Match(Email{Body: body})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "REAL00", got.ID)
}

func TestMatchSubjectTicketID(t *testing.T) {
	lookup := newFakeLookup()
	lookup.addTicket("SUBJ99")

	got, rule, err := NewMatcher(lookup).Match(Email{Subject: "Re: [SUBJ99] printer on fire"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SUBJ99", got.ID)
	assert.Equal(t, "subject-ticket-id", rule)
}

func TestMatchConfirmationMessageID(t *testing.T) {
	lookup := newFakeLookup()
	lookup.addTicket("CONF77")

	got, rule, err := NewMatcher(lookup).Match(Email{
		MessageID: "<ticket-confirmation-CONF77@support.example.com>",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "CONF77", got.ID)
	assert.Equal(t, "confirmation-message-id", rule)
}

func TestMatchReverseInReplyTo(t *testing.T) {
	lookup := newFakeLookup()
	ticket := lookup.addTicket("REV55AAAA0")
	// Stored without angle brackets; the inbound header carries them.
	lookup.addMessage("plain-id@ours", ticket)

	got, rule, err := NewMatcher(lookup).Match(Email{InReplyTo: "<plain-id@ours>"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "REV55AAAA0", got.ID)
	assert.Equal(t, "reverse-in-reply-to", rule)
}

func TestMatchPriorityOrder(t *testing.T) {
	// An email matching rule 1 and rule 4 must resolve via rule 1.
	lookup := newFakeLookup()
	first := lookup.addTicket("FIRST11111")
	lookup.addTicket("OTHER22222")
	lookup.addMessage("<exact@remote>", first)

	got, rule, err := NewMatcher(lookup).Match(Email{
		MessageID: "<exact@remote>",
		Subject:   "Re: [OTHER22222] something",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FIRST11111", got.ID)
	assert.Equal(t, "exact-message-id", rule)
}

func TestMatchNoMatch(t *testing.T) {
	lookup := newFakeLookup()
	got, rule, err := NewMatcher(lookup).Match(Email{
		MessageID: "<fresh@remote>",
		Subject:   "Help with my account",
		Body:      "Nothing identifying in here.",
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, rule)
}
