package domain

import "time"

// InboundMessage is a user turn arriving from any channel.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

// OutboundMessage is a reply routed back to the originating channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	IsError bool // channels that distinguish error events use this flag
}

// MessageRecord is one row of the append-only message log.
// Rows are written on every turn and never read back or mutated.
type MessageRecord struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	IsAI      bool      `json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}
