package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxdesk/inboxdesk/internal/settings"
)

var testCfg = settings.SMTP{
	Host:      "mail.example.com",
	Port:      587,
	FromEmail: "support@example.com",
	FromName:  "Example Support",
}

func headers(t *testing.T, raw []byte) map[string]string {
	t.Helper()
	head, _, found := strings.Cut(string(raw), "\r\n\r\n")
	require.True(t, found, "message has no header/body separator")
	out := make(map[string]string)
	for _, line := range strings.Split(head, "\r\n") {
		k, v, ok := strings.Cut(line, ": ")
		require.True(t, ok, "malformed header line %q", line)
		out[k] = v
	}
	return out
}

func TestBuildMessagePlainText(t *testing.T) {
	raw := BuildMessage(testCfg, &Email{
		To:      "jamie@customer.com",
		ToName:  "Jamie",
		Subject: "Your ticket",
		Text:    "Hello there.",
	})

	h := headers(t, raw)
	assert.Equal(t, "Example Support <support@example.com>", h["From"])
	assert.Equal(t, "Jamie <jamie@customer.com>", h["To"])
	assert.Equal(t, "Your ticket", h["Subject"])
	assert.Equal(t, "1.0", h["MIME-Version"])
	assert.Equal(t, "text/plain; charset=UTF-8", h["Content-Type"])
	assert.True(t, strings.HasSuffix(string(raw), "Hello there.\r\n"))
}

func TestBuildMessageHTMLOnly(t *testing.T) {
	raw := BuildMessage(testCfg, &Email{
		To:      "jamie@customer.com",
		Subject: "Newsletter",
		HTML:    "<p>Hi</p>",
	})

	h := headers(t, raw)
	assert.Equal(t, "jamie@customer.com", h["To"]) // no display name
	assert.Equal(t, "text/html; charset=UTF-8", h["Content-Type"])
	assert.Contains(t, string(raw), "<p>Hi</p>\r\n")
}

func TestBuildMessageMultipartAlternative(t *testing.T) {
	raw := BuildMessage(testCfg, &Email{
		To:      "jamie@customer.com",
		Subject: "Both parts",
		Text:    "plain version",
		HTML:    "<b>rich version</b>",
	})

	s := string(raw)
	h := headers(t, raw)
	require.Contains(t, h["Content-Type"], "multipart/alternative; boundary=")

	boundary := strings.Trim(strings.TrimPrefix(h["Content-Type"], "multipart/alternative; boundary="), `"`)
	require.NotEmpty(t, boundary)
	assert.Contains(t, s, "--"+boundary+"\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\nplain version\r\n")
	assert.Contains(t, s, "--"+boundary+"\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n<b>rich version</b>\r\n")
	assert.True(t, strings.HasSuffix(s, "--"+boundary+"--\r\n"))

	// Plain part must come before the HTML part.
	assert.Less(t, strings.Index(s, "plain version"), strings.Index(s, "rich version"))
}

func TestBuildMessageCustomHeaders(t *testing.T) {
	raw := BuildMessage(testCfg, &Email{
		To:      "jamie@customer.com",
		Subject: "Threaded",
		Text:    "body",
		Headers: map[string]string{
			"Message-ID":  "<ticket-confirmation-ABC123@example.com>",
			"In-Reply-To": "<prev@customer.com>",
			"References":  "<a@x> <b@y>",
			"X-Empty":     "",
		},
	})

	h := headers(t, raw)
	assert.Equal(t, "<ticket-confirmation-ABC123@example.com>", h["Message-ID"])
	assert.Equal(t, "<prev@customer.com>", h["In-Reply-To"])
	assert.Equal(t, "<a@x> <b@y>", h["References"])
	_, present := h["X-Empty"]
	assert.False(t, present, "empty headers must be dropped")
}

func TestBuildMessageEncodesNonASCII(t *testing.T) {
	raw := BuildMessage(testCfg, &Email{
		To:      "jamie@customer.com",
		ToName:  "Jämie Dœ",
		Subject: "Überraschung",
		Text:    "hi",
	})

	h := headers(t, raw)
	assert.True(t, strings.HasPrefix(h["Subject"], "=?utf-8?q?"), "subject %q not Q-encoded", h["Subject"])
	assert.True(t, strings.HasPrefix(h["To"], "=?utf-8?q?"), "display name %q not Q-encoded", h["To"])
	assert.True(t, strings.HasSuffix(h["To"], "<jamie@customer.com>"))
}
