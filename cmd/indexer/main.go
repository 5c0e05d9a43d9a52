package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"freelance-marketplace/internal/config"
	"freelance-marketplace/internal/gateway"
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/snapshot"
	"freelance-marketplace/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config.Load()
	logger := log.New(os.Stderr, "[indexer] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	node, err := ledger.NewClient(ledger.Network(cfg.Network, cfg.NodeURL),
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		log.Fatalf("init ledger client: %v", err)
	}
	// The indexer only reads; it never signs.
	gw := gateway.New(node, ledger.StaticWallet{}, gateway.Config{
		ModuleAddress: cfg.ModuleAddress,
		ModuleName:    cfg.ModuleName,
	}, log.New(os.Stderr, "[gateway] ", log.LstdFlags))

	publisher, err := snapshot.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init snapshot publisher: %v", err)
	}

	resync := func() {
		loc, n, err := publisher.Resync(ctx, gw)
		if err != nil {
			logger.Printf("resync skipped: %v", err)
			return
		}
		logger.Printf("published %d jobs to %s", n, loc)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ResyncSchedule, resync); err != nil {
		log.Fatalf("resync schedule %q: %v", cfg.ResyncSchedule, err)
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Printf("metrics server stopped: %v", err)
		}
	}()

	logger.Printf("indexer started node=%s schedule=%q", node.NodeURL(), cfg.ResyncSchedule)
	resync()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Printf("indexer stopped")
}
