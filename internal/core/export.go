package core

import (
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"

	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

const exportBatchSize = 200

// ExportTickets streams the full ticket archive (threads and attachment
// metadata included) as zstd-compressed JSON lines. Meant for admin backup
// downloads; large installs stream in batches instead of loading all rows.
func ExportTickets(w io.Writer, st *store.Store) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)

	offset := 0
	for {
		var tickets []models.Ticket
		err := st.DB.
			Preload("Messages", func(db *gorm.DB) *gorm.DB {
				return db.Order("messages.created_at asc")
			}).
			Preload("Attachments").
			Order("created_at asc").
			Limit(exportBatchSize).
			Offset(offset).
			Find(&tickets).Error
		if err != nil {
			zw.Close()
			return err
		}
		for i := range tickets {
			if err := enc.Encode(&tickets[i]); err != nil {
				zw.Close()
				return err
			}
		}
		if len(tickets) < exportBatchSize {
			break
		}
		offset += exportBatchSize
	}

	return zw.Close()
}
