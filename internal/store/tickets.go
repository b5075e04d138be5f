package store

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// ----------------------
// Tickets & Messages
// ----------------------

// FindMessageByMessageID looks up a message by its exact Message-ID header
// value, with its parent ticket preloaded.
func (s *Store) FindMessageByMessageID(messageID string) (*models.Message, error) {
	var m models.Message
	err := s.DB.Preload("Ticket").Where("message_id = ? AND message_id <> ''", messageID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindTicketsByThreadTerm returns tickets related to a threading-header term:
// the ticket's own thread id equals the term, or one of its messages has a
// Message-ID or In-Reply-To equal to the term, or References containing it.
func (s *Store) FindTicketsByThreadTerm(term string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	sub := s.DB.Model(&models.Message{}).
		Select("ticket_id").
		// "references" is a reserved word in SQLite, hence the quoting. The
		// term is escaped so %/_ inside a header never act as wildcards.
		Where(`message_id = ? OR in_reply_to = ? OR "references" LIKE ? ESCAPE '\'`,
			term, term, "%"+escapeLike(term)+"%")
	err := s.DB.
		Where("email_id = ? OR id IN (?)", term, sub).
		Order("created_at asc").
		Find(&tickets).Error
	return tickets, err
}

func (s *Store) FindTicketByID(id string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.DB.Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTicketWithThread loads a ticket with its messages (oldest first),
// attachments, assignee and client.
func (s *Store) GetTicketWithThread(id string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.DB.
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at asc")
		}).
		Preload("Messages.User").
		Preload("Attachments").
		Preload("AssignedTo").
		Preload("Client").
		Where("id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	Status       models.TicketStatus
	AssignedToID *uint
	ClientID     *uint
}

func (s *Store) ListTickets(f TicketFilter) ([]models.Ticket, error) {
	q := s.DB.Preload("AssignedTo").Preload("Client").Order("last_replied desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedToID)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	var tickets []models.Ticket
	err := q.Find(&tickets).Error
	return tickets, err
}

func (s *Store) CreateTicket(t *models.Ticket) error {
	return s.DB.Create(t).Error
}

// UpdateTicket applies a partial update (column name -> value).
func (s *Store) UpdateTicket(id string, patch map[string]interface{}) error {
	return s.DB.Model(&models.Ticket{}).Where("id = ?", id).Updates(patch).Error
}

func (s *Store) DeleteTicket(id string) error {
	// Messages and attachments go with the ticket.
	if err := s.DB.Where("ticket_id = ?", id).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := s.DB.Where("ticket_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
		return err
	}
	return s.DB.Where("id = ?", id).Delete(&models.Ticket{}).Error
}

// AppendMessage adds a message to a ticket's thread.
func (s *Store) AppendMessage(m *models.Message) error {
	return s.DB.Create(m).Error
}

// AppendOutboundMessageID records a system-generated Message-ID on the
// ticket. MessageIDs is append-only; LastMessageID always points at the
// newest entry.
func (s *Store) AppendOutboundMessageID(ticketID, messageID string) error {
	var t models.Ticket
	if err := s.DB.Where("id = ?", ticketID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	t.MessageIDs = append(t.MessageIDs, messageID)
	t.LastMessageID = messageID
	return s.DB.Model(&t).Updates(map[string]interface{}{
		"message_ids":     t.MessageIDs,
		"last_message_id": messageID,
	}).Error
}

func (s *Store) TouchLastReplied(ticketID string, at time.Time) error {
	return s.DB.Model(&models.Ticket{}).Where("id = ?", ticketID).
		Update("last_replied", at).Error
}

// ----------------------
// Attachments
// ----------------------

func (s *Store) CreateAttachment(a *models.Attachment) error {
	return s.DB.Create(a).Error
}

func (s *Store) CreateAttachments(atts []models.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	return s.DB.Create(&atts).Error
}

func (s *Store) GetAttachment(id uint) (*models.Attachment, error) {
	var a models.Attachment
	err := s.DB.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// NormalizeEmail lowers and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
