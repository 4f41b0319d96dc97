package domain

import (
	"encoding/json"
	"time"
)

// ConversationEntry is one element of the flat conversation record a turn
// produces. It is a projection recomputed on every turn, never a stored entity.
type ConversationEntry struct {
	Role     Role           `json:"role"`
	Content  string         `json:"content"`
	Metadata *EntryMetadata `json:"metadata,omitempty"`
}

// EntryMetadata annotates tool-call entries for display and evaluation.
type EntryMetadata struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	ID     string `json:"id"`
}

// Batch groups the results of one driver invocation.
type Batch struct {
	BatchID     string    `json:"batch_id"`
	PromptCount int       `json:"prompt_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// BatchItem is the persisted result of a single prompt's turn.
type BatchItem struct {
	ItemID       string          `json:"item_id"`
	BatchID      string          `json:"batch_id"`
	Seq          int             `json:"seq"`
	Prompt       string          `json:"prompt"`
	ThreadID     string          `json:"thread_id,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
	Outcome      Outcome         `json:"outcome"`
	Conversation json.RawMessage `json:"conversation"`
	Transcript   json.RawMessage `json:"transcript,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
