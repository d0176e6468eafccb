package storage

import (
	"context"
	"time"

	"github.com/brunelhq/brunel-support/internal/automation"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one support thread and its messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is a persisted chat message. Payload is non-nil only for
// assistant messages that carried a normalized automation payload.
type Message struct {
	ID        string              `json:"id"`
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	Payload   *automation.Payload `json:"payload,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// ConversationUpdate carries mutable conversation metadata. Nil fields
// are left unchanged.
type ConversationUpdate struct {
	Title     *string
	UpdatedAt *time.Time
}

// ListOptions controls conversation listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps negative values and applies the default page size, so
// stores never see an offset or limit they would have to guard against.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ConversationStore is the append-only message store the exchange
// controller writes through.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, opts ListOptions) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AddMessage(ctx context.Context, convID string, msg *Message) error
	UpdateConversation(ctx context.Context, id string, update ConversationUpdate) error
	Close() error
}
