package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/inboxdesk/inboxdesk/internal/settings"
)

// Email is one outbound message. Headers carries extra top-level headers;
// Message-ID, In-Reply-To and References are the ones this application sets.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
}

// Sender transmits a single email. Implementations must be safe for
// concurrent use; the campaign processor fans batches out across goroutines.
type Sender interface {
	Send(ctx context.Context, cfg settings.SMTP, msg *Email) error
}

// SMTPSender delivers through the configured submission server.
type SMTPSender struct {
	Timeout time.Duration
}

func NewSMTPSender() *SMTPSender {
	return &SMTPSender{Timeout: 30 * time.Second}
}

// Send connects, authenticates when credentials are configured, and submits
// the message. Port 465 (or Secure=true) uses implicit TLS; otherwise
// STARTTLS is used when the server offers it.
func (s *SMTPSender) Send(ctx context.Context, cfg settings.SMTP, msg *Email) error {
	if !cfg.Complete() {
		return settings.ErrIncomplete
	}
	if msg.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if cfg.Secure || cfg.Port == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mailer: connect %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mailer: handshake: %w", err)
	}
	defer client.Quit()

	if !cfg.Secure && cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("mailer: starttls: %w", err)
			}
		}
	}

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mailer: auth: %w", err)
		}
	}

	if err := client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("mailer: mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("mailer: rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	if _, err := wc.Write(BuildMessage(cfg, msg)); err != nil {
		wc.Close()
		return fmt.Errorf("mailer: write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("mailer: close data: %w", err)
	}
	return nil
}
