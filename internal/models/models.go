package models

import "time"

// Ticket statuses.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// Ticket priorities.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Ticket is one support case. It is the root of an email conversation:
// every inbound and outbound message of the thread hangs off it.
type Ticket struct {
	ID      string `gorm:"primaryKey;size:32" json:"id"`
	Subject string `json:"subject"`

	FromEmail string `gorm:"index" json:"from_email"`
	FromName  string `json:"from_name"`

	// EmailID is the stable logical thread id, set once at creation and
	// never changed. LastMessageID and MessageIDs track every Message-ID
	// this system has issued on the thread; MessageIDs only ever grows.
	EmailID       string   `gorm:"index" json:"email_id"`
	LastMessageID string   `json:"last_message_id"`
	MessageIDs    []string `gorm:"serializer:json" json:"message_ids"`

	Status   TicketStatus   `gorm:"index;default:open" json:"status"`
	Priority TicketPriority `gorm:"default:normal" json:"priority"`

	AssignedToID *uint `gorm:"index" json:"assigned_to_id"`
	AssignedTo   *User `json:"assigned_to,omitempty"`

	// Weak reference: removing a client must not destroy ticket history.
	ClientID *uint   `gorm:"index" json:"client_id"`
	Client   *Client `gorm:"constraint:OnDelete:SET NULL" json:"client,omitempty"`

	Messages    []Message    `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastReplied time.Time `json:"last_replied"`
}

// Message is a single turn in a ticket's email thread.
type Message struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	TicketID string  `gorm:"index;size:32" json:"ticket_id"`
	Ticket   *Ticket `json:"-"`

	Content    string `json:"content"`
	IsFromUser bool   `json:"is_from_user"` // true = inbound from the requester

	// Raw email threading headers, kept exactly as received (or as issued
	// for agent replies). MessageID is a global lookup key when present.
	MessageID  string `gorm:"index" json:"message_id"`
	InReplyTo  string `json:"in_reply_to"`
	References string `json:"references"`

	UserID *uint `json:"user_id"`
	User   *User `json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Client is an organization or person tickets and campaign recipients can
// be tied to. Address lookup goes through ClientEmail rows.
type Client struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `json:"name"`
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Active      bool   `gorm:"default:true" json:"active"`

	Emails []ClientEmail `gorm:"constraint:OnDelete:CASCADE" json:"emails,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ClientEmail is one address in a client's email set. Address is stored
// lowercased and trimmed so lookups are case-insensitive.
type ClientEmail struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ClientID uint   `gorm:"index" json:"client_id"`
	Address  string `gorm:"index" json:"address"`
}

// Campaign statuses.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign is a bulk outbound send job. Only draft campaigns may be edited.
type Campaign struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	Status CampaignStatus `gorm:"index;default:draft" json:"status"`

	// Concurrency bounds the per-run batch size (hard-capped at 50).
	Concurrency int `gorm:"default:10" json:"concurrency"`

	SentCount    int        `json:"sent_count"`
	FailedCount  int        `json:"failed_count"`
	LastExecuted *time.Time `json:"last_executed"`

	Recipients []CampaignRecipient `gorm:"constraint:OnDelete:CASCADE" json:"recipients,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Recipient statuses. Sent and failed are terminal: a recipient is never
// re-queued automatically.
type RecipientStatus string

const (
	RecipientQueued RecipientStatus = "queued"
	RecipientSent   RecipientStatus = "sent"
	RecipientFailed RecipientStatus = "failed"
)

// CampaignRecipient is one target address's send record within a campaign.
type CampaignRecipient struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CampaignID uint   `gorm:"index" json:"campaign_id"`
	Email      string `json:"email"`
	ClientID   *uint  `json:"client_id"`

	Status       RecipientStatus `gorm:"index;default:queued" json:"status"`
	SentAt       *time.Time      `json:"sent_at"`
	FailedAt     *time.Time      `json:"failed_at"`
	ErrorMessage string          `json:"error_message"`

	CreatedAt time.Time `json:"created_at"`
}

// Configuration is a flat key/value settings row (SMTP credentials,
// branding, feature flags). Externally managed, read-heavy.
type Configuration struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Key   string `gorm:"uniqueIndex" json:"key"`
	Value string `json:"value"`
}

// User roles.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// User is a panel account (admin or support agent).
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // bcrypt hash
	Role         string    `gorm:"default:agent" json:"role"`
	APIToken     string    `gorm:"index" json:"-"`
	TokenExpiry  time.Time `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attachment is a file tied to a ticket (and optionally to one message).
type Attachment struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	TicketID     string `gorm:"index;size:32" json:"ticket_id"`
	MessageID    *uint  `json:"message_id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`

	CreatedAt time.Time `json:"created_at"`
}
