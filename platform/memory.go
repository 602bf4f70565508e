package platform

import (
	"context"
	"fmt"
	"sync"
)

// MemoryClient is an in-memory Client for tests. It records every sent
// and edited embed and lets tests inject reaction and message events.
type MemoryClient struct {
	mu        sync.Mutex
	nextID    int
	embeds    map[string]Embed // message ID -> latest embed
	emoji     map[string][]string
	deleted   map[string]bool
	deletions []string // message IDs in deletion order
	admins    map[string]bool // "channel/user" -> admin
	reactions chan ReactionEvent
	messages  chan IncomingMessage
}

// NewMemoryClient creates an empty in-memory platform.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		embeds:    make(map[string]Embed),
		emoji:     make(map[string][]string),
		deleted:   make(map[string]bool),
		admins:    make(map[string]bool),
		reactions: make(chan ReactionEvent, 16),
		messages:  make(chan IncomingMessage, 16),
	}
}

func (m *MemoryClient) SendEmbed(ctx context.Context, channelID string, embed Embed) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := Message{ID: fmt.Sprintf("msg-%d", m.nextID), ChannelID: channelID}
	m.embeds[msg.ID] = embed
	return msg, nil
}

func (m *MemoryClient) EditEmbed(ctx context.Context, msg Message, embed Embed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.embeds[msg.ID]; !ok {
		return fmt.Errorf("edit of unknown message %s", msg.ID)
	}
	m.embeds[msg.ID] = embed
	return nil
}

func (m *MemoryClient) DeleteMessage(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted[msg.ID] {
		return fmt.Errorf("double delete of message %s", msg.ID)
	}
	m.deleted[msg.ID] = true
	m.deletions = append(m.deletions, msg.ID)
	delete(m.embeds, msg.ID)
	return nil
}

// DeleteOrder returns deleted message IDs in the order they were deleted.
func (m *MemoryClient) DeleteOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletions...)
}

func (m *MemoryClient) AddReaction(ctx context.Context, msg Message, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emoji[msg.ID] = append(m.emoji[msg.ID], emoji)
	return nil
}

func (m *MemoryClient) Reactions() <-chan ReactionEvent { return m.reactions }

func (m *MemoryClient) Messages() <-chan IncomingMessage { return m.messages }

func (m *MemoryClient) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[channelID+"/"+userID], nil
}

// SetAdmin marks a user as administrator in a channel.
func (m *MemoryClient) SetAdmin(channelID, userID string, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[channelID+"/"+userID] = admin
}

// React injects a reaction event, as if a user reacted to the message.
func (m *MemoryClient) React(msg Message, user User, emoji string) {
	m.reactions <- ReactionEvent{Message: msg, User: user, Emoji: emoji}
}

// Receive injects an incoming user message.
func (m *MemoryClient) Receive(msg IncomingMessage) {
	m.messages <- msg
}

// Embed returns the latest embed of a message and whether it exists.
func (m *MemoryClient) Embed(id string) (Embed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.embeds[id]
	return e, ok
}

// Deleted reports whether the message was deleted.
func (m *MemoryClient) Deleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[id]
}

// ReactionsOn returns the emoji attached to a message, in attach order.
func (m *MemoryClient) ReactionsOn(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.emoji[id]...)
}

// LiveMessageCount returns how many sent messages are not deleted.
func (m *MemoryClient) LiveMessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.embeds)
}
