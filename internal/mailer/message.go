package mailer

import (
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"

	"github.com/inboxdesk/inboxdesk/internal/settings"
)

const crlf = "\r\n"

// BuildMessage renders the RFC 5322 wire form of an email: From/To/Subject,
// any caller-supplied headers (Message-ID, In-Reply-To, References), then a
// plain, HTML, or multipart/alternative body.
func BuildMessage(cfg settings.SMTP, msg *Email) []byte {
	var b strings.Builder

	writeHeader(&b, "From", formatAddress(cfg.FromName, cfg.FromEmail))
	writeHeader(&b, "To", formatAddress(msg.ToName, msg.To))
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")

	// Deterministic header order keeps the output testable.
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := msg.Headers[k]; v != "" {
			writeHeader(&b, k, v)
		}
	}

	switch {
	case msg.HTML != "" && msg.Text != "":
		boundary := fmt.Sprintf("=_part_%d", time.Now().UnixNano())
		writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString(crlf)
		b.WriteString("--" + boundary + crlf)
		b.WriteString("Content-Type: text/plain; charset=UTF-8" + crlf + crlf)
		b.WriteString(msg.Text + crlf)
		b.WriteString("--" + boundary + crlf)
		b.WriteString("Content-Type: text/html; charset=UTF-8" + crlf + crlf)
		b.WriteString(msg.HTML + crlf)
		b.WriteString("--" + boundary + "--" + crlf)
	case msg.HTML != "":
		writeHeader(&b, "Content-Type", "text/html; charset=UTF-8")
		b.WriteString(crlf)
		b.WriteString(msg.HTML + crlf)
	default:
		writeHeader(&b, "Content-Type", "text/plain; charset=UTF-8")
		b.WriteString(crlf)
		b.WriteString(msg.Text + crlf)
	}

	return []byte(b.String())
}

func writeHeader(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString(crlf)
}

func formatAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), email)
}
