package settings

import (
	"errors"
	"strconv"
	"strings"

	"github.com/inboxdesk/inboxdesk/internal/store"
)

// Configuration row keys. The table is externally managed; these are the
// keys this application reads.
const (
	KeySMTPHost      = "SMTP_HOST"
	KeySMTPPort      = "SMTP_PORT"
	KeySMTPUser      = "SMTP_USER"
	KeySMTPPass      = "SMTP_PASS"
	KeySMTPSecure    = "SMTP_SECURE"
	KeySMTPFromEmail = "SMTP_FROM_EMAIL"
	KeySMTPFromName  = "SMTP_FROM_NAME"

	KeyIMAPHost = "IMAP_HOST"
	KeyIMAPPort = "IMAP_PORT"
	KeyIMAPUser = "IMAP_USER"
	KeyIMAPPass = "IMAP_PASS"

	KeyBrandName      = "BRAND_NAME"
	KeyBaseURL        = "BASE_URL"
	KeyMailDomain     = "MAIL_DOMAIN"
	KeyEmailSignature = "EMAIL_SIGNATURE"

	KeyClientOnlyTickets = "CLIENT_ONLY_TICKETS"
)

// ErrIncomplete is returned when a required setting group is missing fields.
var ErrIncomplete = errors.New("settings: required configuration missing")

// SMTP is the outbound mail server configuration.
type SMTP struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Secure    bool // implicit TLS (465-style) instead of STARTTLS
	FromEmail string
	FromName  string
}

// Complete reports whether the group has everything needed to send.
func (c SMTP) Complete() bool {
	return c.Host != "" && c.Port != 0 && c.FromEmail != ""
}

// IMAP is the inbound mailbox configuration (kept for deployments that poll
// a mailbox into the webhook instead of a parsing service).
type IMAP struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Branding carries the product identity used in outbound mail.
type Branding struct {
	ProductName string
	BaseURL     string
	MailDomain  string
	Signature   string
}

// Flags are boolean feature switches.
type Flags struct {
	ClientOnlyTickets bool
}

// Provider reads typed setting groups from the configuration store.
type Provider struct {
	Store *store.Store
}

func NewProvider(st *store.Store) *Provider {
	return &Provider{Store: st}
}

// SMTP loads the outbound mail settings. Returns ErrIncomplete when the
// required fields are not all present.
func (p *Provider) SMTP() (SMTP, error) {
	values, err := p.Store.GetConfiguration(
		KeySMTPHost, KeySMTPPort, KeySMTPUser, KeySMTPPass,
		KeySMTPSecure, KeySMTPFromEmail, KeySMTPFromName,
	)
	if err != nil {
		return SMTP{}, err
	}
	cfg := SMTP{
		Host:      values[KeySMTPHost],
		Port:      atoi(values[KeySMTPPort]),
		Username:  values[KeySMTPUser],
		Password:  values[KeySMTPPass],
		Secure:    parseBool(values[KeySMTPSecure]),
		FromEmail: values[KeySMTPFromEmail],
		FromName:  values[KeySMTPFromName],
	}
	if !cfg.Complete() {
		return cfg, ErrIncomplete
	}
	return cfg, nil
}

func (p *Provider) IMAP() (IMAP, error) {
	values, err := p.Store.GetConfiguration(KeyIMAPHost, KeyIMAPPort, KeyIMAPUser, KeyIMAPPass)
	if err != nil {
		return IMAP{}, err
	}
	cfg := IMAP{
		Host:     values[KeyIMAPHost],
		Port:     atoi(values[KeyIMAPPort]),
		Username: values[KeyIMAPUser],
		Password: values[KeyIMAPPass],
	}
	if cfg.Host == "" || cfg.Port == 0 {
		return cfg, ErrIncomplete
	}
	return cfg, nil
}

// Branding never fails hard; absent keys fall back to usable defaults so a
// fresh install can still send confirmation mail.
func (p *Provider) Branding() (Branding, error) {
	values, err := p.Store.GetConfiguration(KeyBrandName, KeyBaseURL, KeyMailDomain, KeyEmailSignature)
	if err != nil {
		return Branding{}, err
	}
	b := Branding{
		ProductName: values[KeyBrandName],
		BaseURL:     values[KeyBaseURL],
		MailDomain:  values[KeyMailDomain],
		Signature:   values[KeyEmailSignature],
	}
	if b.ProductName == "" {
		b.ProductName = "Support"
	}
	if b.MailDomain == "" {
		// Fall back to the domain of the SMTP from address when set.
		smtpValues, err := p.Store.GetConfiguration(KeySMTPFromEmail)
		if err == nil {
			if at := strings.LastIndex(smtpValues[KeySMTPFromEmail], "@"); at >= 0 {
				b.MailDomain = smtpValues[KeySMTPFromEmail][at+1:]
			}
		}
	}
	if b.MailDomain == "" {
		b.MailDomain = "localhost"
	}
	return b, nil
}

func (p *Provider) Flags() (Flags, error) {
	values, err := p.Store.GetConfiguration(KeyClientOnlyTickets)
	if err != nil {
		return Flags{}, err
	}
	return Flags{
		ClientOnlyTickets: parseBool(values[KeyClientOnlyTickets]),
	}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "enabled":
		return true
	}
	return false
}
