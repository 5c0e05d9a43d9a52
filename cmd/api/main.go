package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	api "freelance-marketplace/internal/api"
	"freelance-marketplace/internal/config"
	"freelance-marketplace/internal/gateway"
	"freelance-marketplace/internal/joblist"
	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/ratelimit"
	"freelance-marketplace/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := config.Load()

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
		ledger.WithPolling(cfg.ConfirmPollInitial, cfg.ConfirmPollMax),
	)
	if err != nil {
		log.Fatalf("init ledger client: %v", err)
	}

	var wallet ledger.Wallet = ledger.StaticWallet{}
	if cfg.SignerURL != "" {
		wallet = ledger.NewRemoteSigner(cfg.SignerURL, cfg.SignerToken)
	} else {
		log.Printf("SIGNER_URL not set, job postings will be refused")
	}

	gw := gateway.New(node, wallet, gateway.Config{
		ModuleAddress:  cfg.ModuleAddress,
		ModuleName:     cfg.ModuleName,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}, log.New(os.Stderr, "[gateway] ", log.LstdFlags))

	ids, err := joblist.StrategyByName(cfg.JobIDStrategy, cfg.JobIDOffset)
	if err != nil {
		log.Fatalf("job id strategy: %v", err)
	}
	ctrlOpts := []joblist.Option{
		joblist.WithLogger(log.New(os.Stderr, "[joblist] ", log.LstdFlags)),
		joblist.WithIDStrategy(ids),
	}
	var serverOpts []api.Option

	if cfg.PostgresDSN != "" {
		st, err := store.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer st.Close()
		if err := st.RunMigrations(ctx); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		ctrlOpts = append(ctrlOpts, joblist.WithRecorder(st))
		serverOpts = append(serverOpts, api.WithAttempts(st))
	}

	if cfg.RedisAddr != "" {
		redisLimiter := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisLimiter.Close()
		limiter := ratelimit.NewTokenBucket(redisLimiter, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)
		serverOpts = append(serverOpts, api.WithLimiter(limiter))
	}

	ctrl := joblist.New(gw, ctrlOpts...)

	actor, err := wallet.Address(ctx)
	if err != nil {
		log.Printf("read connected account: %v", err)
	}
	ctrl.SetIdentity(ctx, actor)

	server := api.New(ctrl, serverOpts...)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s node=%s module=%s::%s", cfg.HTTPPort, node.NodeURL(), cfg.ModuleAddress, cfg.ModuleName)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
