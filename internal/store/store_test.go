package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return st
}

func TestFindMessageByMessageID(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTicket(&models.Ticket{ID: "AAAA000000", Subject: "first"}))
	require.NoError(t, st.AppendMessage(&models.Message{
		TicketID: "AAAA000000", Content: "hello", MessageID: "<m1@remote>",
	}))
	// A message without a Message-ID must never match the empty string.
	require.NoError(t, st.AppendMessage(&models.Message{
		TicketID: "AAAA000000", Content: "no header",
	}))

	msg, err := st.FindMessageByMessageID("<m1@remote>")
	require.NoError(t, err)
	require.NotNil(t, msg.Ticket)
	assert.Equal(t, "AAAA000000", msg.Ticket.ID)

	_, err = st.FindMessageByMessageID("")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.FindMessageByMessageID("<unknown@remote>")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindTicketsByThreadTerm(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTicket(&models.Ticket{
		ID: "TTTT000000", Subject: "threaded", EmailID: "<thread@ours>",
	}))
	require.NoError(t, st.AppendMessage(&models.Message{
		TicketID:   "TTTT000000",
		MessageID:  "<m1@ours>",
		InReplyTo:  "<parent@remote>",
		References: "<root@remote> <parent@remote>",
	}))
	require.NoError(t, st.CreateTicket(&models.Ticket{ID: "OTHER00000", Subject: "unrelated"}))

	for _, term := range []string{
		"<thread@ours>",   // ticket email_id
		"<m1@ours>",       // message Message-ID
		"<parent@remote>", // message In-Reply-To, also inside References
		"<root@remote>",   // only inside the References list
	} {
		tickets, err := st.FindTicketsByThreadTerm(term)
		require.NoError(t, err, "term %q", term)
		require.Len(t, tickets, 1, "term %q", term)
		assert.Equal(t, "TTTT000000", tickets[0].ID, "term %q", term)
	}

	tickets, err := st.FindTicketsByThreadTerm("<nothing@nowhere>")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestFindTicketsByThreadTermEscapesWildcards(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTicket(&models.Ticket{ID: "WILD000000"}))
	require.NoError(t, st.AppendMessage(&models.Message{
		TicketID:   "WILD000000",
		References: "<id-axb@remote> <id-100@remote>",
	}))

	// A "_" or "%" inside a header is a literal character, not a wildcard.
	for _, term := range []string{"<id-a_b@remote>", "<id-1%0@remote>", "<%@remote>"} {
		tickets, err := st.FindTicketsByThreadTerm(term)
		require.NoError(t, err, "term %q", term)
		assert.Empty(t, tickets, "term %q must not over-match", term)
	}

	// A header that really contains the metacharacter still matches itself.
	require.NoError(t, st.AppendMessage(&models.Message{
		TicketID:   "WILD000000",
		References: "<literal_id@remote>",
	}))
	tickets, err := st.FindTicketsByThreadTerm("<literal_id@remote>")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "WILD000000", tickets[0].ID)
}

func TestAppendOutboundMessageID(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTicket(&models.Ticket{
		ID:            "TTTT000000",
		EmailID:       "<orig@remote>",
		LastMessageID: "<c1@ours>",
		MessageIDs:    []string{"<c1@ours>"},
	}))

	require.NoError(t, st.AppendOutboundMessageID("TTTT000000", "<r1@ours>"))
	require.NoError(t, st.AppendOutboundMessageID("TTTT000000", "<r2@ours>"))

	ticket, err := st.FindTicketByID("TTTT000000")
	require.NoError(t, err)
	assert.Equal(t, []string{"<c1@ours>", "<r1@ours>", "<r2@ours>"}, ticket.MessageIDs)
	assert.Equal(t, "<r2@ours>", ticket.LastMessageID)

	assert.ErrorIs(t, st.AppendOutboundMessageID("MISSING000", "<x@ours>"), ErrNotFound)
}

func TestListTicketsFilters(t *testing.T) {
	st := testStore(t)
	agent := uint(1)
	require.NoError(t, st.CreateUser(&models.User{Email: "agent@example.com"}))
	require.NoError(t, st.CreateTicket(&models.Ticket{
		ID: "OPEN000000", Status: models.TicketOpen, AssignedToID: &agent,
	}))
	require.NoError(t, st.CreateTicket(&models.Ticket{
		ID: "CLSD000000", Status: models.TicketClosed,
	}))

	open, err := st.ListTickets(TicketFilter{Status: models.TicketOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "OPEN000000", open[0].ID)

	assigned, err := st.ListTickets(TicketFilter{AssignedToID: &agent})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "OPEN000000", assigned[0].ID)

	all, err := st.ListTickets(TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteTicketRemovesThread(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTicket(&models.Ticket{ID: "GONE000000"}))
	require.NoError(t, st.AppendMessage(&models.Message{TicketID: "GONE000000", Content: "bye"}))
	require.NoError(t, st.CreateAttachment(&models.Attachment{TicketID: "GONE000000", Filename: "f.txt"}))

	require.NoError(t, st.DeleteTicket("GONE000000"))

	_, err := st.FindTicketByID("GONE000000")
	assert.ErrorIs(t, err, ErrNotFound)
	var messages int64
	st.DB.Model(&models.Message{}).Where("ticket_id = ?", "GONE000000").Count(&messages)
	assert.Zero(t, messages)
	var attachments int64
	st.DB.Model(&models.Attachment{}).Where("ticket_id = ?", "GONE000000").Count(&attachments)
	assert.Zero(t, attachments)
}

func TestFindClientByEmail(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateClient(&models.Client{
		Name:   "Acme",
		Active: true,
		Emails: []models.ClientEmail{{Address: "  Billing@Acme.COM "}},
	}))
	require.NoError(t, st.CreateClient(&models.Client{
		Name:   "Dormant",
		Active: false,
		Emails: []models.ClientEmail{{Address: "old@dormant.com"}},
	}))

	c, err := st.FindClientByEmail("billing@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)

	// Lookup side is normalized too.
	c, err = st.FindClientByEmail("  BILLING@acme.com ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.Name)

	// Inactive clients never resolve.
	_, err = st.FindClientByEmail("old@dormant.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.FindClientByEmail("nobody@nowhere.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateClientReplacesEmailSet(t *testing.T) {
	st := testStore(t)
	c := &models.Client{
		Name:   "Acme",
		Active: true,
		Emails: []models.ClientEmail{{Address: "a@acme.com"}, {Address: "b@acme.com"}},
	}
	require.NoError(t, st.CreateClient(c))

	c.Emails = []models.ClientEmail{{Address: "c@acme.com"}}
	require.NoError(t, st.UpdateClient(c))

	got, err := st.GetClientByID(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Emails, 1)
	assert.Equal(t, "c@acme.com", got.Emails[0].Address)

	_, err = st.FindClientByEmail("a@acme.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignQueueLifecycle(t *testing.T) {
	st := testStore(t)
	campaign := &models.Campaign{Name: "Launch", Status: models.CampaignActive, Concurrency: 10}
	require.NoError(t, st.CreateCampaign(campaign))
	require.NoError(t, st.CreateCampaign(&models.Campaign{Name: "Draft", Status: models.CampaignDraft}))

	base := time.Now().Add(-time.Hour)
	recipients := []models.CampaignRecipient{
		{CampaignID: campaign.ID, Email: "first@x.com", Status: models.RecipientQueued, CreatedAt: base},
		{CampaignID: campaign.ID, Email: "second@x.com", Status: models.RecipientQueued, CreatedAt: base.Add(time.Minute)},
		{CampaignID: campaign.ID, Email: "done@x.com", Status: models.RecipientSent, CreatedAt: base.Add(2 * time.Minute)},
	}
	require.NoError(t, st.CreateRecipients(recipients))

	active, err := st.ListActiveCampaignsWithQueuedRecipients()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, campaign.ID, active[0].ID)
	// Only queued recipients are preloaded, oldest first.
	require.Len(t, active[0].Recipients, 2)
	assert.Equal(t, "first@x.com", active[0].Recipients[0].Email)
	assert.Equal(t, "second@x.com", active[0].Recipients[1].Email)

	now := time.Now()
	require.NoError(t, st.UpdateRecipientStatus(active[0].Recipients[0].ID, models.RecipientSent, "", now))
	require.NoError(t, st.UpdateRecipientStatus(active[0].Recipients[1].ID, models.RecipientFailed, "550 no such user", now))

	remaining, err := st.CountQueuedRecipients(campaign.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	got, err := st.GetCampaignByID(campaign.ID)
	require.NoError(t, err)
	var failed *models.CampaignRecipient
	for i := range got.Recipients {
		if got.Recipients[i].Status == models.RecipientFailed {
			failed = &got.Recipients[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "550 no such user", failed.ErrorMessage)
	require.NotNil(t, failed.FailedAt)

	require.NoError(t, st.IncrementCampaignCounters(campaign.ID, 1, 1, now))
	require.NoError(t, st.IncrementCampaignCounters(campaign.ID, 2, 0, now))
	got, err = st.GetCampaignByID(campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	require.NotNil(t, got.LastExecuted)

	require.NoError(t, st.UpdateCampaignStatus(campaign.ID, models.CampaignCompleted))
	active, err = st.ListActiveCampaignsWithQueuedRecipients()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestConfiguration(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.SetConfiguration("SMTP_HOST", "mail.example.com"))
	require.NoError(t, st.SetConfiguration("SMTP_HOST", "mail2.example.com")) // upsert
	require.NoError(t, st.SetConfigurationIfAbsent("SMTP_HOST", "ignored"))
	require.NoError(t, st.SetConfigurationIfAbsent("SMTP_PORT", "587"))

	values, err := st.GetConfiguration("SMTP_HOST", "SMTP_PORT", "MISSING")
	require.NoError(t, err)
	assert.Equal(t, "mail2.example.com", values["SMTP_HOST"])
	assert.Equal(t, "587", values["SMTP_PORT"])
	assert.NotContains(t, values, "MISSING")
}

func TestUserLookups(t *testing.T) {
	st := testStore(t)
	u := &models.User{Email: "agent@example.com", Role: models.RoleAgent, APIToken: "tok123"}
	require.NoError(t, st.CreateUser(u))

	count, err := st.UserCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	byEmail, err := st.GetUserByEmail("agent@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byToken, err := st.GetUserByToken("tok123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byToken.ID)

	_, err = st.GetUserByToken("wrong")
	assert.ErrorIs(t, err, ErrNotFound)
}
