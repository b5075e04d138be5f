package core

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const ticketIDCharset = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// NewTicketID returns a 10-character alphanumeric id. Ids are generated
// before the ticket row exists so the confirmation Message-ID can carry
// them, and they stay regex-friendly for body/subject correlation.
func NewTicketID() string {
	b := make([]byte, 10)
	rand.Read(b)
	for i := range b {
		b[i] = ticketIDCharset[int(b[i])%len(ticketIDCharset)]
	}
	return string(b)
}

// NewMessageID returns an RFC 5322 Message-ID under the given mail domain.
func NewMessageID(domain string) string {
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}
