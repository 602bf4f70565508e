// Package discord implements platform.Client against the Discord REST
// API (v10) and gateway. One Client is one bot connection.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"forumbot/platform"
)

const (
	defaultAPIBase    = "https://discord.com/api/v10"
	defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

	permAdministrator = 0x8
)

// Client talks to Discord. Create one with New, then call Connect to
// start the gateway before reading from Messages or Reactions.
type Client struct {
	token      string
	apiBase    string
	gatewayURL string
	http       *http.Client

	messages  chan platform.IncomingMessage
	reactions chan platform.ReactionEvent

	selfID string

	mu         sync.Mutex
	guildOf    map[string]string // channel ID -> guild ID
	guildOwner map[string]string // guild ID -> owner user ID
}

// Option adjusts a Client, mainly for tests.
type Option func(*Client)

// WithAPIBase overrides the REST endpoint.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// WithGatewayURL overrides the gateway endpoint.
func WithGatewayURL(u string) Option {
	return func(c *Client) { c.gatewayURL = u }
}

// New creates a client for the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		apiBase:    defaultAPIBase,
		gatewayURL: defaultGatewayURL,
		http:       &http.Client{Timeout: 15 * time.Second},
		messages:   make(chan platform.IncomingMessage, 64),
		reactions:  make(chan platform.ReactionEvent, 64),
		guildOf:    make(map[string]string),
		guildOwner: make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Messages streams incoming user messages from the gateway.
func (c *Client) Messages() <-chan platform.IncomingMessage { return c.messages }

// Reactions streams reaction-added events from the gateway.
func (c *Client) Reactions() <-chan platform.ReactionEvent { return c.reactions }

// wire-format structs, named after the Discord fields they carry.

type wireEmbed struct {
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"url,omitempty"`
	Color       int              `json:"color,omitempty"`
	Author      *wireEmbedAuthor `json:"author,omitempty"`
	Image       *wireEmbedImage  `json:"image,omitempty"`
	Footer      *wireEmbedFooter `json:"footer,omitempty"`
}

type wireEmbedAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireEmbedImage struct {
	URL string `json:"url"`
}

type wireEmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func toWireEmbed(e platform.Embed) wireEmbed {
	w := wireEmbed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       e.Color,
	}
	if e.Author.Name != "" {
		w.Author = &wireEmbedAuthor{Name: e.Author.Name, URL: e.Author.URL, IconURL: e.Author.IconURL}
	}
	if e.ImageURL != "" {
		w.Image = &wireEmbedImage{URL: e.ImageURL}
	}
	if e.Footer.Text != "" {
		w.Footer = &wireEmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	return w
}

// SendEmbed posts an embed message to the channel.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed platform.Embed) (platform.Message, error) {
	body := map[string]any{"embeds": []wireEmbed{toWireEmbed(embed)}}
	var out wireMessage
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, &out)
	if err != nil {
		return platform.Message{}, err
	}
	return platform.Message{ID: out.ID, ChannelID: out.ChannelID}, nil
}

// EditEmbed replaces the embed on an existing message.
func (c *Client) EditEmbed(ctx context.Context, msg platform.Message, embed platform.Embed) error {
	body := map[string]any{"embeds": []wireEmbed{toWireEmbed(embed)}}
	return c.do(ctx, http.MethodPatch, "/channels/"+msg.ChannelID+"/messages/"+msg.ID, body, nil)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, msg platform.Message) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+msg.ChannelID+"/messages/"+msg.ID, nil, nil)
}

// AddReaction adds the bot's own reaction to a message.
func (c *Client) AddReaction(ctx context.Context, msg platform.Message, emoji string) error {
	path := "/channels/" + msg.ChannelID + "/messages/" + msg.ID +
		"/reactions/" + url.PathEscape(emoji) + "/@me"
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// IsAdmin reports whether the user is the guild owner or holds a role
// with the administrator permission in the channel's guild.
func (c *Client) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	guildID, err := c.guildForChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	if guildID == "" {
		// Direct messages have no roles; nobody is admin there.
		return false, nil
	}

	owner, err := c.ownerOfGuild(ctx, guildID)
	if err != nil {
		return false, err
	}
	if owner == userID {
		return true, nil
	}

	var member struct {
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &member); err != nil {
		return false, err
	}

	var roles []struct {
		ID          string `json:"id"`
		Permissions string `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles); err != nil {
		return false, err
	}

	held := make(map[string]bool, len(member.Roles))
	for _, r := range member.Roles {
		held[r] = true
	}
	for _, r := range roles {
		if !held[r.ID] {
			continue
		}
		perms, err := strconv.ParseUint(r.Permissions, 10, 64)
		if err != nil {
			continue
		}
		if perms&permAdministrator != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) guildForChannel(ctx context.Context, channelID string) (string, error) {
	c.mu.Lock()
	if g, ok := c.guildOf[channelID]; ok {
		c.mu.Unlock()
		return g, nil
	}
	c.mu.Unlock()

	var ch struct {
		GuildID string `json:"guild_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.guildOf[channelID] = ch.GuildID
	c.mu.Unlock()
	return ch.GuildID, nil
}

func (c *Client) ownerOfGuild(ctx context.Context, guildID string) (string, error) {
	c.mu.Lock()
	if o, ok := c.guildOwner[guildID]; ok {
		c.mu.Unlock()
		return o, nil
	}
	c.mu.Unlock()

	var g struct {
		OwnerID string `json:"owner_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &g); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.guildOwner[guildID] = g.OwnerID
	c.mu.Unlock()
	return g.OwnerID, nil
}

// do executes one REST call, retrying once after the advertised delay
// when Discord rate-limits the request.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	for attempt := 0; ; attempt++ {
		retryAfter, err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if retryAfter <= 0 || attempt >= 1 {
			return err
		}
		log.Printf("discord: rate limited on %s %s, retrying in %v", method, path, retryAfter)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) (time.Duration, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("discord %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		var rl struct {
			RetryAfter float64 `json:"retry_after"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&rl)
		wait := time.Duration(rl.RetryAfter * float64(time.Second))
		if wait <= 0 {
			wait = time.Second
		}
		return wait, fmt.Errorf("discord %s %s: rate limited", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("discord %s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("discord %s %s: decoding response: %w", method, path, err)
		}
	}
	return 0, nil
}
