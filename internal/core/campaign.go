package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/inboxdesk/inboxdesk/internal/mailer"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	"github.com/inboxdesk/inboxdesk/internal/models"
)

// Per-invocation hard cap on batch size, regardless of configured
// concurrency. Bounds wall clock and SMTP load for one run.
const maxBatchSize = 50

// CampaignStore is the store surface the batch processor uses.
type CampaignStore interface {
	ListActiveCampaignsWithQueuedRecipients() ([]models.Campaign, error)
	UpdateRecipientStatus(id uint, status models.RecipientStatus, errorMessage string, at time.Time) error
	IncrementCampaignCounters(id uint, sent, failed int, at time.Time) error
	CountQueuedRecipients(campaignID uint) (int64, error)
	UpdateCampaignStatus(id uint, status models.CampaignStatus) error
}

// RunResult aggregates one processor invocation.
type RunResult struct {
	Campaigns int `json:"campaigns"`
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// CampaignProcessor drains queued recipients for active campaigns, one
// bounded batch per campaign per invocation. Campaigns are processed
// sequentially; within a batch, sends fan out concurrently.
type CampaignProcessor struct {
	Store    CampaignStore
	Mailer   mailer.Sender
	Settings SettingsSource

	// Advisory per-campaign lock. Overlapping invocations (e.g. two cron
	// triggers) skip a campaign another run is still sending for instead
	// of double-sending its queued recipients. Multi-process deployments
	// still need external single-flight.
	mu      sync.Mutex
	running map[uint]bool
}

func NewCampaignProcessor(st CampaignStore, sender mailer.Sender, cfg SettingsSource) *CampaignProcessor {
	return &CampaignProcessor{
		Store:    st,
		Mailer:   sender,
		Settings: cfg,
		running:  make(map[uint]bool),
	}
}

// Run executes one drain pass across all active campaigns with queued
// recipients and returns the aggregate counts.
func (p *CampaignProcessor) Run(ctx context.Context) (RunResult, error) {
	var result RunResult

	campaigns, err := p.Store.ListActiveCampaignsWithQueuedRecipients()
	if err != nil {
		return result, err
	}

	for i := range campaigns {
		c := &campaigns[i]
		if !p.tryLock(c.ID) {
			log.Printf("[campaign] %d already being processed, skipping", c.ID)
			metrics.CampaignSkips.WithLabelValues("locked").Inc()
			continue
		}
		sent, failed := p.processCampaign(ctx, c)
		p.unlock(c.ID)

		if sent+failed > 0 {
			result.Campaigns++
		}
		result.Sent += sent
		result.Failed += failed
		result.Processed += sent + failed
	}

	return result, nil
}

// processCampaign sends one batch for a single campaign and records every
// outcome. A missing SMTP configuration skips the campaign for this run
// without touching any recipient.
func (p *CampaignProcessor) processCampaign(ctx context.Context, c *models.Campaign) (sent, failed int) {
	smtpCfg, err := p.Settings.SMTP()
	if err != nil {
		log.Printf("[campaign] %d skipped, SMTP not configured: %v", c.ID, err)
		metrics.CampaignSkips.WithLabelValues("smtp_incomplete").Inc()
		return 0, 0
	}
	branding, err := p.Settings.Branding()
	if err != nil {
		log.Printf("[campaign] %d skipped, branding lookup failed: %v", c.ID, err)
		metrics.CampaignSkips.WithLabelValues("settings_error").Inc()
		return 0, 0
	}

	batch := c.Recipients // preloaded queued-only, oldest first
	size := c.Concurrency
	if size < 1 {
		size = 1
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}
	if len(batch) > size {
		batch = batch[:size]
	}
	if len(batch) == 0 {
		return 0, 0
	}

	// Fan out and wait for every send to settle. One recipient's failure
	// never blocks or rolls back another's success.
	sendErrs := make([]error, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := &batch[i]
			msg := &mailer.Email{
				To:      r.Email,
				Subject: c.Subject,
				HTML:    c.Body,
				Headers: map[string]string{
					"Message-ID": NewMessageID(branding.MailDomain),
				},
			}
			sendErrs[i] = p.Mailer.Send(ctx, smtpCfg, msg)
		}(i)
	}
	wg.Wait()

	now := time.Now()
	for i := range batch {
		r := &batch[i]
		if sendErrs[i] == nil {
			if err := p.Store.UpdateRecipientStatus(r.ID, models.RecipientSent, "", now); err != nil {
				log.Printf("[campaign] %d recipient %d status update failed: %v", c.ID, r.ID, err)
			}
			metrics.CampaignSends.WithLabelValues("sent").Inc()
			sent++
		} else {
			if err := p.Store.UpdateRecipientStatus(r.ID, models.RecipientFailed, sendErrs[i].Error(), now); err != nil {
				log.Printf("[campaign] %d recipient %d status update failed: %v", c.ID, r.ID, err)
			}
			metrics.CampaignSends.WithLabelValues("failed").Inc()
			failed++
		}
	}

	if err := p.Store.IncrementCampaignCounters(c.ID, sent, failed, now); err != nil {
		log.Printf("[campaign] %d counter update failed: %v", c.ID, err)
	}

	remaining, err := p.Store.CountQueuedRecipients(c.ID)
	if err != nil {
		log.Printf("[campaign] %d queued count failed: %v", c.ID, err)
		return sent, failed
	}
	if remaining == 0 {
		if err := p.Store.UpdateCampaignStatus(c.ID, models.CampaignCompleted); err != nil {
			log.Printf("[campaign] %d completion update failed: %v", c.ID, err)
		} else {
			log.Printf("[campaign] %d completed", c.ID)
		}
	}
	return sent, failed
}

func (p *CampaignProcessor) tryLock(id uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running[id] {
		return false
	}
	p.running[id] = true
	return true
}

func (p *CampaignProcessor) unlock(id uint) {
	p.mu.Lock()
	delete(p.running, id)
	p.mu.Unlock()
}

// ImportRecipientsFromCSV parses a CSV (first column = address) and queues
// recipients on a campaign.
func ImportRecipientsFromCSV(st interface {
	CreateRecipients([]models.CampaignRecipient) error
}, campaignID uint, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var recipients []models.CampaignRecipient
	total := 0
	flush := func() error {
		if len(recipients) == 0 {
			return nil
		}
		if err := st.CreateRecipients(recipients); err != nil {
			return err
		}
		total += len(recipients)
		recipients = nil
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("invalid CSV: %w", err)
		}
		if len(record) < 1 {
			continue
		}
		email := strings.TrimSpace(record[0])
		if email == "" || !strings.Contains(email, "@") {
			continue
		}
		recipients = append(recipients, models.CampaignRecipient{
			CampaignID: campaignID,
			Email:      strings.ToLower(email),
			Status:     models.RecipientQueued,
		})
		if len(recipients) >= 500 {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
