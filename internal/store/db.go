package store

import (
	"errors"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens/creates the SQLite DB and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models (add new ones here when needed)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.ClientEmail{},
		&models.Ticket{},
		&models.Message{},
		&models.Attachment{},
		&models.Campaign{},
		&models.CampaignRecipient{},
		&models.Configuration{},
	); err != nil {
		return nil, err
	}

	return &Store{DB: db}, nil
}

func (s *Store) LogError(err error) {
	if err != nil {
		log.Println("[STORE ERROR]", err)
	}
}

var ErrNotFound = gorm.ErrRecordNotFound

// ----------------------
// Users
// ----------------------

func (s *Store) UserCount() (int64, error) {
	var count int64
	err := s.DB.Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *Store) GetUserByID(id uint) (*models.User, error) {
	var u models.User
	err := s.DB.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	err := s.DB.Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByToken(token string) (*models.User, error) {
	var u models.User
	err := s.DB.Where("api_token = ?", token).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.DB.Order("created_at asc").Find(&users).Error
	return users, err
}

func (s *Store) CreateUser(u *models.User) error {
	return s.DB.Create(u).Error
}

func (s *Store) UpdateUser(u *models.User) error {
	return s.DB.Save(u).Error
}

func (s *Store) DeleteUser(id uint) error {
	return s.DB.Delete(&models.User{}, id).Error
}
