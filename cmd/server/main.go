package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inboxdesk/inboxdesk/internal/api"
	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/core"
	"github.com/inboxdesk/inboxdesk/internal/mailer"
	"github.com/inboxdesk/inboxdesk/internal/settings"
	"github.com/inboxdesk/inboxdesk/internal/store"
	"github.com/inboxdesk/inboxdesk/internal/thread"
)

func main() {
	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "inboxdesk.yml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Warning: failed to create db directory: %v", err)
		}
	}

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open DB: %v", err)
	}

	provider := settings.NewProvider(st)
	sender := mailer.NewSMTPSender()
	matcher := thread.NewMatcher(st)
	inbound := core.NewInboundService(st, matcher, sender, provider)
	processor := core.NewCampaignProcessor(st, sender, provider)

	srv := api.NewServer(st, inbound, processor, cfg)

	if cfg.Cron.Secret == "" {
		log.Println("Warning: cron.secret not set, campaign trigger disabled")
	}

	log.Printf("inboxdesk backend listening on %s\n", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
