package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/auth"
	bidding "github.com/philippspitzley/auctioneer/internal/biddingService"
	"github.com/philippspitzley/auctioneer/internal/config"
	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/notify"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/internal/repository/postgres"
	"github.com/philippspitzley/auctioneer/internal/scheduler"
	"github.com/philippspitzley/auctioneer/internal/server"
	"github.com/philippspitzley/auctioneer/utils"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auctioneer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := utils.ConfigureLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, ping, closeStore, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := notify.NewDispatcher(newMailer(cfg.Mail), notify.DispatcherConfig{
		Workers:     cfg.Mail.Workers,
		QueueSize:   cfg.Mail.QueueSize,
		SendTimeout: cfg.Mail.SendTimeout,
		DedupeSize:  cfg.Mail.DedupeSize,
	})
	if err != nil {
		return fmt.Errorf("mail dispatcher: %w", err)
	}
	// Outlives the signal context so queued mail drains during shutdown.
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()
	notifier := notify.NewNotifier(dispatcher, cfg.Mail.LoginURL)

	biddingSvc := bidding.NewBiddingService(store,
		bidding.WithNotifier(notifier),
		bidding.WithDefaultDuration(cfg.Auction.DefaultDuration),
	)
	marketSvc := marketplace.NewMarketplaceService(store,
		marketplace.WithRegistrar(notifier),
		marketplace.WithDefaultMinBid(cfg.Auction.MinBid()),
	)

	if err := seedAdmin(ctx, marketSvc, cfg.Admin); err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if cfg.Sweeper.Enabled {
		sched, err = scheduler.New(biddingSvc, cfg.Sweeper.Schedule, cfg.Sweeper.Timeout)
		if err != nil {
			return fmt.Errorf("sweeper: %w", err)
		}
		sched.Start()
	}

	router := server.SetupRouter(server.Deps{
		Bidding:     biddingSvc,
		Marketplace: marketSvc,
		JWT:         auth.JWT{Secret: []byte(cfg.Auth.Secret), TokenTTL: cfg.Auth.TokenTTL},
		Ping:        ping,
	})
	srv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": cfg.Server.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		utils.Info("Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("HTTP server shutdown failed", map[string]any{"error": err.Error()})
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	utils.Info("Server stopped", map[string]any{"pending_mail": dispatcher.Pending()})
	return nil
}

func loadConfig() (config.Config, error) {
	path := os.Getenv("AUCTIONEER_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		// No file: defaults plus AUCTIONEER_* environment variables.
		return config.Load("", true)
	}
	return config.Load(path, false)
}

func openStore(ctx context.Context, cfg config.DBConfig) (repository.Store, func(context.Context) error, func(), error) {
	if cfg.DSN == "" {
		utils.Warn("No database DSN configured, using in-memory store", nil)
		return repository.NewMemoryRepo(), nil, func() {}, nil
	}

	db := postgres.Open(cfg.DSN, cfg.SlowQuery)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	repo := postgres.New(db)
	closeFn := func() {
		if err := repo.Close(); err != nil {
			utils.Error("Closing database failed", map[string]any{"error": err.Error()})
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := repo.CreateSchema(ctx); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("database schema: %w", err)
	}
	return repo, db.PingContext, closeFn, nil
}

func newMailer(cfg config.MailConfig) notify.Mailer {
	if cfg.Driver == "smtp" {
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return notify.LogMailer{}
}

func seedAdmin(ctx context.Context, svc *marketplace.MarketplaceService, cfg config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}
	admin, created, err := svc.EnsureAdmin(ctx, cfg.Username, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		utils.Info("Admin account created", map[string]any{"user_id": admin.UserID, "email": admin.Email})
	}
	return nil
}
