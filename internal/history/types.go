// Package history persists conversation state in PostgreSQL with an
// inactivity-based expiry window. Conversations are keyed by an opaque
// string derived from the caller's identity; every append refreshes the
// conversation's last-active timestamp, so the window slides with use.
package history

import (
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Message roles stored in the conversation log. Values match ai.Role so
// records round-trip into model messages without translation.
const (
	RoleUser      = string(ai.RoleUser)
	RoleAssistant = string(ai.RoleModel)
)

// Record is one persisted conversation message.
type Record struct {
	ID             int64
	ConversationID string
	Role           string
	Content        []*ai.Part
	CreatedAt      time.Time
}

// Conversation is the per-key expiry bookkeeping row.
type Conversation struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
}
