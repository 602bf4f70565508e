// Package platform defines the chat-platform collaborator surface the
// bot core depends on: structured embed messages, reactions and
// permission lookups. Concrete transports (the Discord gateway, the
// in-memory fake used by tests) implement Client.
package platform

import "context"

// User identifies an acting account. Bot accounts never pass the
// control-surface permission check.
type User struct {
	ID   string
	Name string
	Bot  bool
}

// Message is the handle to one posted platform message.
type Message struct {
	ID        string
	ChannelID string
}

// EmbedAuthor is the author byline of an embed.
type EmbedAuthor struct {
	Name    string
	IconURL string
	URL     string
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text    string
	IconURL string
}

// Embed is the structured message body the platform renders.
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	Author      EmbedAuthor
	ImageURL    string
	Footer      EmbedFooter
}

// IncomingMessage is a user message the bot may react to.
type IncomingMessage struct {
	Message
	Author  User
	Content string
}

// ReactionEvent is one reaction added to a message.
type ReactionEvent struct {
	Message Message
	User    User
	Emoji   string
}

// Client is the platform connection. All calls block until the platform
// acknowledges; handlers built on top run one event at a time, so no
// additional locking is layered on the tree they mutate.
type Client interface {
	SendEmbed(ctx context.Context, channelID string, embed Embed) (Message, error)
	EditEmbed(ctx context.Context, msg Message, embed Embed) error
	DeleteMessage(ctx context.Context, msg Message) error
	AddReaction(ctx context.Context, msg Message, emoji string) error

	// Reactions streams reaction-added events. The channel closes when
	// the connection ends.
	Reactions() <-chan ReactionEvent

	// Messages streams incoming user messages.
	Messages() <-chan IncomingMessage

	// IsAdmin reports whether the user holds moderator/administrator
	// rights in the channel.
	IsAdmin(ctx context.Context, channelID, userID string) (bool, error)
}
