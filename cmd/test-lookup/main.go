package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/intel"
	"github.com/mispbot/mastodon-misp-bot/internal/misp"
	"github.com/mispbot/mastodon-misp-bot/internal/reply"
)

// Looks an indicator up and prints the reply the bot would post, without touching Mastodon.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: test-lookup <indicator>")
		os.Exit(2)
	}
	indicator := strings.TrimSpace(os.Args[1])

	fmt.Println("🔍 MISP Mastodon Bot - Lookup Test")
	fmt.Println("==================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	service := intel.NewService(misp.NewClient(misp.Options{
		URL:        cfg.MISPURL,
		Key:        cfg.MISPKey,
		VerifyCert: cfg.MISPVerifyCert,
		Timeout:    cfg.HTTPTimeout,
	}), intel.PolicyFromConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	results, err := service.Lookup(ctx, indicator)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ %d events found for %s\n", len(results), indicator)
	for i, chunk := range reply.Chunk(reply.Format(results), cfg.TextCharLimit) {
		fmt.Printf("\n--- post %d ---\n%s\n", i+1, chunk)
	}
}
