// Package journal records tickets the bot has filed, so operators can
// audit submissions after the conversation that produced them is gone.
package journal

import "time"

// Record is one filed ticket.
type Record struct {
	ID        string    `json:"id"`
	TicketID  int       `json:"ticket_id"` // Halo ticket number, 0 if the API returned none
	Summary   string    `json:"summary"`
	Channel   string    `json:"channel"` // connector name: telegram, slack, api
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for submission records.
type Store interface {
	// Save appends a record.
	Save(r Record) error
	// List returns the most recent records, newest first.
	// limit <= 0 means no limit.
	List(limit int) ([]Record, error)
	// Close releases the underlying resources.
	Close() error
}
