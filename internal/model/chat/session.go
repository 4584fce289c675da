package chat

import (
	"time"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
)

// State is the conversation state machine position.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// Session captures a transient anonymous conversation bound to one character.
type Session struct {
	ID        string               `json:"id"`
	Character character.Descriptor `json:"character"`
	State     State                `json:"state"`
	Messages  []Message            `json:"messages"`
	CreatedAt time.Time            `json:"createdAt"`
}
