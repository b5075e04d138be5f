package store

import (
	"gorm.io/gorm/clause"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// ----------------------
// Configuration (flat key/value rows)
// ----------------------

// GetConfiguration returns the values for the requested keys. Missing keys
// are simply absent from the result map.
func (s *Store) GetConfiguration(keys ...string) (map[string]string, error) {
	var rows []models.Configuration
	q := s.DB
	if len(keys) > 0 {
		q = q.Where("key IN ?", keys)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// SetConfiguration upserts one key/value pair.
func (s *Store) SetConfiguration(key, value string) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Configuration{Key: key, Value: value}).Error
}

// SetConfigurationIfAbsent seeds a default without clobbering an existing row.
func (s *Store) SetConfigurationIfAbsent(key, value string) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&models.Configuration{Key: key, Value: value}).Error
}
