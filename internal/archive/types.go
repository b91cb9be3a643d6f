package archive

import "time"

// ConversationRecord is one chat thread extracted from an export archive.
// Only user-authored text survives parsing; assistant and system messages
// are dropped at the boundary. Records are immutable once built and are
// never persisted; downstream stages keep only derived insights.
type ConversationRecord struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UserMessages []string   `json:"userMessages"`
}
