package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// ----------------------
// Clients
// ----------------------

func (s *Store) ListClients() ([]models.Client, error) {
	var clients []models.Client
	err := s.DB.Preload("Emails").Order("name asc").Find(&clients).Error
	return clients, err
}

func (s *Store) GetClientByID(id uint) (*models.Client, error) {
	var c models.Client
	err := s.DB.Preload("Emails").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindClientByEmail resolves an address to an active client. The address is
// normalized (lowercased, trimmed) before lookup; ClientEmail rows are
// stored normalized as well.
func (s *Store) FindClientByEmail(email string) (*models.Client, error) {
	normalized := NormalizeEmail(email)
	var ce models.ClientEmail
	err := s.DB.Where("address = ?", normalized).First(&ce).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var c models.Client
	err = s.DB.Preload("Emails").Where("id = ? AND active = ?", ce.ClientID, true).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(c *models.Client) error {
	for i := range c.Emails {
		c.Emails[i].Address = NormalizeEmail(c.Emails[i].Address)
	}
	return s.DB.Create(c).Error
}

// UpdateClient saves client fields and replaces its email set.
func (s *Store) UpdateClient(c *models.Client) error {
	if err := s.DB.Where("client_id = ?", c.ID).Delete(&models.ClientEmail{}).Error; err != nil {
		return err
	}
	for i := range c.Emails {
		c.Emails[i].ID = 0
		c.Emails[i].ClientID = c.ID
		c.Emails[i].Address = NormalizeEmail(c.Emails[i].Address)
	}
	return s.DB.Session(&gorm.Session{FullSaveAssociations: true}).Save(c).Error
}

// DeleteClient removes the client and its email rows. Tickets that pointed
// at it keep their history; the reference is detached.
func (s *Store) DeleteClient(id uint) error {
	if err := s.DB.Model(&models.Ticket{}).Where("client_id = ?", id).
		Update("client_id", nil).Error; err != nil {
		return err
	}
	if err := s.DB.Where("client_id = ?", id).Delete(&models.ClientEmail{}).Error; err != nil {
		return err
	}
	return s.DB.Delete(&models.Client{}, id).Error
}
