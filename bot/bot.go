// Package bot ties the pipeline together: watch incoming chat messages
// for forum links, extract the linked post and present it as an
// interactive preview, plus a couple of utility commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"forumbot/config"
	"forumbot/forum"
	"forumbot/link"
	"forumbot/platform"
	"forumbot/preview"
	"forumbot/sites"
	"forumbot/ui"
)

// Version of the bot, shown by the about command.
const Version = "1.0.0"

// Extractor pulls a post out of a classified link. *forum.Extractor
// satisfies this; tests substitute a stub.
type Extractor interface {
	Extract(ctx context.Context, ln link.Parsed) (*forum.Post, error)
}

// Bot is the running application.
type Bot struct {
	cfg        *config.Config
	client     platform.Client
	registry   *sites.Registry
	extractor  Extractor
	dispatcher *ui.Dispatcher
	limits     preview.Limits
	idle       time.Duration
}

// New creates a Bot from its collaborators.
func New(cfg *config.Config, client platform.Client, registry *sites.Registry, ext Extractor) *Bot {
	idle := time.Duration(cfg.UI.IdleHours) * time.Hour
	if idle <= 0 {
		idle = ui.DefaultIdleTimeout
	}
	return &Bot{
		cfg:        cfg,
		client:     client,
		registry:   registry,
		extractor:  ext,
		dispatcher: ui.NewDispatcher(client),
		limits: preview.Limits{
			MaxChars:   cfg.Embed.MaxChars,
			StdLines:   cfg.Embed.StdLines,
			MaxLines:   cfg.Embed.MaxLines,
			LineLength: cfg.Embed.LineLength,
		},
		idle: idle,
	}
}

// Run consumes incoming messages until ctx is cancelled or the message
// stream closes. Each message is handled on its own goroutine; one slow
// page fetch must not hold up the channel.
func (b *Bot) Run(ctx context.Context) error {
	go b.dispatcher.Run(ctx)

	for {
		select {
		case m, ok := <-b.client.Messages():
			if !ok {
				return nil
			}
			if m.Author.Bot {
				continue
			}
			if strings.HasPrefix(m.Content, b.cfg.Discord.CommandPrefix) {
				go b.handleCommand(ctx, m)
				continue
			}
			go func(m platform.IncomingMessage) {
				if err := b.HandleMessage(ctx, m); err != nil {
					log.Printf("bot: handling message %s: %v", m.ID, err)
				}
			}(m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleMessage runs the full preview pipeline for one message.
// Messages without a recognized forum link are ignored silently.
func (b *Bot) HandleMessage(ctx context.Context, m platform.IncomingMessage) error {
	ln := link.Classify(m.Content, b.registry)
	if ln.Kind == link.Unmatched {
		return nil
	}

	post, err := b.extractor.Extract(ctx, ln)
	switch {
	case errors.Is(err, forum.ErrUnavailable):
		log.Printf("bot: %s unavailable: %v", ln.URL, err)
		return nil
	case errors.Is(err, forum.ErrPageMalformed):
		log.Printf("bot: %s malformed: %v", ln.URL, err)
		return nil
	case err != nil:
		return fmt.Errorf("extracting %s: %w", ln.URL, err)
	}
	if !post.Found {
		log.Printf("bot: %s: post %s not on page, skipping", ln.URL, ln.PostID)
		return nil
	}

	art := preview.Build(post, preview.TierStandard, b.limits)
	controls := ui.Defaults()
	controls = append(controls, ui.Help())
	if len(post.Spoilers) > 0 {
		controls = append(controls, ui.Spoilers(post.Spoilers))
	}
	return b.runSession(ctx, m.ChannelID, m.Author.ID, art, controls)
}

// runSession posts the artifact as a session root and serves its
// reaction controls until it closes or goes idle.
func (b *Bot) runSession(ctx context.Context, channelID, ownerID string, art *preview.Artifact, controls []ui.Control) error {
	s := ui.NewSession(b.client, b.limits, b.idle)
	b.dispatcher.Subscribe(s)
	defer b.dispatcher.Unsubscribe(s.ID())

	if _, err := s.PostRoot(ctx, channelID, ownerID, art, controls); err != nil {
		return fmt.Errorf("posting preview: %w", err)
	}
	return s.Run(ctx)
}

// handleCommand serves the prefix commands.
func (b *Bot) handleCommand(ctx context.Context, m platform.IncomingMessage) {
	cmd := strings.Fields(strings.TrimPrefix(m.Content, b.cfg.Discord.CommandPrefix))
	if len(cmd) == 0 {
		return
	}
	var err error
	switch cmd[0] {
	case "gr":
		err = b.about(ctx, m)
	case "process":
		err = b.process(ctx, m)
	default:
		return
	}
	if err != nil {
		log.Printf("bot: command %q: %v", cmd[0], err)
	}
}

// about posts a short self-description.
func (b *Bot) about(ctx context.Context, m platform.IncomingMessage) error {
	text := "I watch for forum links and post interactive previews.\n" +
		"React ➕ to expand one, ➖ to shrink it, ✖ to remove it.\n" +
		"Version " + Version
	if b.cfg.Discord.AuthLink != "" {
		text += "\nInvite me: " + b.cfg.Discord.AuthLink
	}
	art := preview.Note("About", text, b.limits)
	return b.runSession(ctx, m.ChannelID, m.Author.ID, art, []ui.Control{ui.Close()})
}

// process posts runtime stats. Owner only; anyone else is ignored.
func (b *Bot) process(ctx context.Context, m platform.IncomingMessage) error {
	if b.cfg.Discord.OwnerID == "" || m.Author.ID != b.cfg.Discord.OwnerID {
		return nil
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	text := fmt.Sprintf(
		"pid: %d\nheap alloc: %.1f MiB\nsys: %.1f MiB\ngoroutines: %d\ngc cycles: %d",
		os.Getpid(),
		float64(ms.HeapAlloc)/(1<<20),
		float64(ms.Sys)/(1<<20),
		runtime.NumGoroutine(),
		ms.NumGC,
	)
	art := preview.Note("Process", text, b.limits)
	return b.runSession(ctx, m.ChannelID, m.Author.ID, art, []ui.Control{ui.Close()})
}
