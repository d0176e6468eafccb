package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brunelhq/brunel-support/internal/storage"
)

// Store is an in-memory implementation of ConversationStore, used in
// tests and for storage.type "memory".
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*storage.Conversation
}

var _ storage.ConversationStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		conversations: make(map[string]*storage.Conversation),
	}
}

func (s *Store) CreateConversation(ctx context.Context, conv *storage.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}

	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	conv.Messages = []storage.Message{}

	stored := *conv
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, fmt.Errorf("conversation %s not found", id)
	}

	out := *conv
	out.Messages = append([]storage.Message(nil), conv.Messages...)
	return &out, nil
}

func (s *Store) ListConversations(ctx context.Context, opts storage.ListOptions) ([]*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*storage.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out := *conv
		out.Messages = nil
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	opts = opts.Normalize()
	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return fmt.Errorf("conversation %s not found", id)
	}
	delete(s.conversations, id)
	return nil
}

func (s *Store) AddMessage(ctx context.Context, convID string, msg *storage.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[convID]
	if !exists {
		return fmt.Errorf("conversation %s not found", convID)
	}

	msg.CreatedAt = time.Now()
	conv.Messages = append(conv.Messages, *msg)
	return nil
}

func (s *Store) UpdateConversation(ctx context.Context, id string, update storage.ConversationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return fmt.Errorf("conversation %s not found", id)
	}

	if update.Title != nil {
		conv.Title = *update.Title
	}
	if update.UpdatedAt != nil {
		conv.UpdatedAt = *update.UpdatedAt
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
