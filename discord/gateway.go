package discord

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"forumbot/platform"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartACK       = 11
)

// Gateway intents: guild messages, guild message reactions,
// message content.
const gatewayIntents = 1<<9 | 1<<10 | 1<<15

type gatewayPayload struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  *int            `json:"s,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type messageCreateData struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channel_id"`
	Content   string   `json:"content"`
	Author    wireUser `json:"author"`
}

type reactionAddData struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Member    *struct {
		User wireUser `json:"user"`
	} `json:"member"`
	Emoji struct {
		Name string `json:"name"`
	} `json:"emoji"`
}

type readyData struct {
	User wireUser `json:"user"`
}

// Connect runs the gateway connection until ctx is cancelled,
// reconnecting with backoff on disconnects. Events land on the
// Messages and Reactions channels; both close on return.
func (c *Client) Connect(ctx context.Context) error {
	defer close(c.messages)
	defer close(c.reactions)

	backoff := time.Second
	for {
		err := c.runGateway(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("discord: gateway disconnected: %v, reconnecting in %v", err, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) runGateway(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.gatewayURL, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	var hello gatewayPayload
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return err
	}
	if hello.Op != opHello {
		return errors.New("expected hello as first gateway payload")
	}
	var hd helloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil {
		return err
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   c.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "forumbot",
				"device":  "forumbot",
			},
		},
	}
	if err := wsjson.Write(ctx, conn, identify); err != nil {
		return err
	}

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	var lastSeq int
	seqCh := make(chan int, 16)
	go c.heartbeat(hbCtx, conn, time.Duration(hd.HeartbeatInterval)*time.Millisecond, seqCh)

	for {
		var p gatewayPayload
		if err := wsjson.Read(ctx, conn, &p); err != nil {
			return err
		}
		if p.Seq != nil {
			lastSeq = *p.Seq
			select {
			case seqCh <- lastSeq:
			default:
			}
		}
		switch p.Op {
		case opDispatch:
			c.dispatch(p.Type, p.Data)
		case opHeartbeat:
			// The server may demand an immediate heartbeat.
			if err := wsjson.Write(ctx, conn, map[string]any{"op": opHeartbeat, "d": lastSeq}); err != nil {
				return err
			}
		case opReconnect:
			// The server wants a fresh connection now, not whenever it
			// gets around to closing this one.
			return errors.New("server requested reconnect")
		case opInvalidSession:
			return errors.New("session invalidated")
		case opHeartACK:
		}
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration, seqCh <-chan int) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case s := <-seqCh:
			seq = s
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, map[string]any{"op": opHeartbeat, "d": seq}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	switch event {
	case "READY":
		var rd readyData
		if err := json.Unmarshal(data, &rd); err != nil {
			log.Printf("discord: decoding READY: %v", err)
			return
		}
		c.mu.Lock()
		c.selfID = rd.User.ID
		c.mu.Unlock()
		log.Printf("discord: connected as %s", rd.User.Username)

	case "MESSAGE_CREATE":
		var md messageCreateData
		if err := json.Unmarshal(data, &md); err != nil {
			log.Printf("discord: decoding MESSAGE_CREATE: %v", err)
			return
		}
		c.deliverMessage(platform.IncomingMessage{
			Message: platform.Message{ID: md.ID, ChannelID: md.ChannelID},
			Author:  platform.User{ID: md.Author.ID, Name: md.Author.Username, Bot: md.Author.Bot},
			Content: md.Content,
		})

	case "MESSAGE_REACTION_ADD":
		var rd reactionAddData
		if err := json.Unmarshal(data, &rd); err != nil {
			log.Printf("discord: decoding MESSAGE_REACTION_ADD: %v", err)
			return
		}
		user := platform.User{ID: rd.UserID}
		if rd.Member != nil {
			user.Name = rd.Member.User.Username
			user.Bot = rd.Member.User.Bot
		}
		c.mu.Lock()
		if rd.UserID == c.selfID {
			user.Bot = true
		}
		c.mu.Unlock()
		c.deliverReaction(platform.ReactionEvent{
			Message: platform.Message{ID: rd.MessageID, ChannelID: rd.ChannelID},
			User:    user,
			Emoji:   rd.Emoji.Name,
		})
	}
}

func (c *Client) deliverMessage(m platform.IncomingMessage) {
	select {
	case c.messages <- m:
	default:
		log.Printf("discord: message buffer full, dropping message %s", m.ID)
	}
}

func (c *Client) deliverReaction(r platform.ReactionEvent) {
	select {
	case c.reactions <- r:
	default:
		log.Printf("discord: reaction buffer full, dropping reaction on %s", r.Message.ID)
	}
}
