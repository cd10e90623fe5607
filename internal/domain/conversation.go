package domain

import (
	"fmt"
	"time"
)

// ConversationTurn is one user/assistant exchange, persisted per assistant
// type in an isolated store.
type ConversationTurn struct {
	ID            string
	AssistantType AssistantType
	UserID        string
	Message       string
	Response      string
	CreatedAt     time.Time
}

// NewConversationTurn creates a ConversationTurn instance.
func NewConversationTurn(id string, assistantType AssistantType, userID, message, response string, createdAt time.Time) *ConversationTurn {
	return &ConversationTurn{
		ID:            id,
		AssistantType: assistantType,
		UserID:        userID,
		Message:       message,
		Response:      response,
		CreatedAt:     createdAt,
	}
}

// ValidateConversationTurn validates a ConversationTurn instance.
func ValidateConversationTurn(t *ConversationTurn) error {
	if t == nil {
		return fmt.Errorf("conversation turn cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("conversation turn ID is required")
	}

	if t.UserID == "" {
		return fmt.Errorf("conversation turn UserID is required")
	}

	if t.Message == "" {
		return ErrEmptyMessage
	}

	if !isValidAssistantType(t.AssistantType) {
		return ErrUnknownAssistantType
	}

	return nil
}

// EvidenceLevel grades the methodological strength of a cited study (A–D).
type EvidenceLevel string

// EvidenceRank maps an evidence level to a sortable weight. Unmapped levels
// rank last.
func EvidenceRank(level EvidenceLevel) int {
	switch level {
	case "A":
		return 4
	case "B":
		return 3
	case "C":
		return 2
	case "D":
		return 1
	}
	return 0
}
