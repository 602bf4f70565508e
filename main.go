// forumbot watches a Discord server for forum links and posts
// interactive post previews.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"forumbot/bot"
	"forumbot/config"
	"forumbot/discord"
	"forumbot/fetcher"
	"forumbot/forum"
)

func main() {
	// .env is optional; real deployments set the variable directly.
	_ = godotenv.Load()

	token := os.Getenv("FORUMBOT_TOKEN")
	if token == "" {
		log.Fatal("FORUMBOT_TOKEN is not set")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	registry, err := cfg.Registry()
	if err != nil {
		log.Fatalf("validating site profiles: %v", err)
	}

	f := fetcher.New(fetcher.Options{
		UserAgent:      cfg.Fetcher.UserAgent,
		TimeoutSeconds: cfg.Fetcher.TimeoutSeconds,
		ChromePath:     cfg.Fetcher.ChromePath,
		HostRPS:        cfg.Fetcher.HostRPS,
	})
	extractor := forum.NewExtractor(f)

	client := discord.New(token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
			log.Printf("gateway: %v", err)
			stop()
		}
	}()

	b := bot.New(cfg, client, registry, extractor)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("bot: %v", err)
	}
	log.Println("shutting down")
}
