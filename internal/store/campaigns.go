package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// ----------------------
// Campaigns
// ----------------------

func (s *Store) ListCampaigns() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.DB.Order("created_at desc").Find(&campaigns).Error
	return campaigns, err
}

func (s *Store) GetCampaignByID(id uint) (*models.Campaign, error) {
	var c models.Campaign
	err := s.DB.Preload("Recipients", func(db *gorm.DB) *gorm.DB {
		return db.Order("campaign_recipients.created_at asc")
	}).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCampaign(c *models.Campaign) error {
	return s.DB.Create(c).Error
}

func (s *Store) UpdateCampaign(c *models.Campaign) error {
	return s.DB.Save(c).Error
}

func (s *Store) DeleteCampaign(id uint) error {
	if err := s.DB.Where("campaign_id = ?", id).Delete(&models.CampaignRecipient{}).Error; err != nil {
		return err
	}
	return s.DB.Delete(&models.Campaign{}, id).Error
}

// ListActiveCampaignsWithQueuedRecipients returns every active campaign that
// still has queued recipients. Recipients are preloaded filtered to queued
// status, oldest first, so callers can slice a batch off the front.
func (s *Store) ListActiveCampaignsWithQueuedRecipients() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	sub := s.DB.Model(&models.CampaignRecipient{}).
		Select("campaign_id").
		Where("status = ?", models.RecipientQueued)
	err := s.DB.
		Preload("Recipients", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", models.RecipientQueued).
				Order("campaign_recipients.created_at asc")
		}).
		Where("status = ? AND id IN (?)", models.CampaignActive, sub).
		Order("created_at asc").
		Find(&campaigns).Error
	return campaigns, err
}

// UpdateRecipientStatus moves a recipient to a terminal state. Sent and
// failed are never reverted.
func (s *Store) UpdateRecipientStatus(id uint, status models.RecipientStatus, errorMessage string, at time.Time) error {
	patch := map[string]interface{}{"status": status}
	switch status {
	case models.RecipientSent:
		patch["sent_at"] = at
		patch["error_message"] = ""
	case models.RecipientFailed:
		patch["failed_at"] = at
		patch["error_message"] = errorMessage
	}
	return s.DB.Model(&models.CampaignRecipient{}).Where("id = ?", id).Updates(patch).Error
}

// IncrementCampaignCounters adds a batch's tallies to the campaign's running
// counters and stamps the run time.
func (s *Store) IncrementCampaignCounters(id uint, sent, failed int, at time.Time) error {
	return s.DB.Model(&models.Campaign{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sent_count":    gorm.Expr("sent_count + ?", sent),
		"failed_count":  gorm.Expr("failed_count + ?", failed),
		"last_executed": at,
	}).Error
}

func (s *Store) CountQueuedRecipients(campaignID uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.RecipientQueued).
		Count(&count).Error
	return count, err
}

func (s *Store) UpdateCampaignStatus(id uint, status models.CampaignStatus) error {
	return s.DB.Model(&models.Campaign{}).Where("id = ?", id).
		Update("status", status).Error
}

func (s *Store) CreateRecipients(recipients []models.CampaignRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	return s.DB.Create(&recipients).Error
}
