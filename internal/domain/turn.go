// Package domain contains core domain types for the docs chat service.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation produced a turn.
type Role string

const (
	// RoleUser marks a turn typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the assistant, including
	// synthesized error turns.
	RoleAssistant Role = "assistant"
)

// Source is a citation attached to an assistant turn, pointing back into
// the textbook the answer was drawn from.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Module  string `json:"module"`
	Chapter string `json:"chapter,omitempty"`
}

// Turn is a single message in the conversation log. Turns are immutable
// after creation: the log only grows by appending or is cleared in full,
// and no field of an existing turn is ever edited in place.
type Turn struct {
	ID        string   `json:"id"`
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds, display only
	Sources   []Source `json:"sources,omitempty"`
}

// apologyTemplate embeds a gateway failure message into a transcript-visible
// assistant turn.
const apologyTemplate = "Sorry, I encountered an error: %s. Please try again."

// NewUserTurn creates a user turn with a fresh id and current timestamp.
func NewUserTurn(content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewAssistantTurn creates an assistant turn carrying the backend answer.
// A nil sources slice is normalized to an empty one so consumers never have
// to distinguish "absent" from "no citations".
func NewAssistantTurn(content string, sources []Source) Turn {
	if sources == nil {
		sources = []Source{}
	}
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Sources:   sources,
	}
}

// NewErrorTurn synthesizes an assistant turn for a failed send. The failure
// message appears verbatim inside the apology template, so failures are
// visible in the transcript rather than only in a side channel.
func NewErrorTurn(message string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   fmt.Sprintf(apologyTemplate, message),
		Timestamp: time.Now().UnixMilli(),
	}
}

// Valid reports whether a turn loaded from storage is well-formed.
func (t Turn) Valid() bool {
	if t.ID == "" {
		return false
	}
	return t.Role == RoleUser || t.Role == RoleAssistant
}
