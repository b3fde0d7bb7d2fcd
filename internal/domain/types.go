// Package domain provides the canonical types shared by the adapter engine:
// internal chat messages, the UI event union consumed by the chat front end,
// and the engine's error taxonomy.
package domain

import "time"

// ChatMessage is one turn of internal chat state, as stored by the platform.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Role values used by the platform's internal chat state. External providers
// may use any vocabulary; role mappings translate between the two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
