package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchantpay/internal/commission"
	"merchantpay/internal/config"
	"merchantpay/internal/db"
	"merchantpay/internal/encryption"
	"merchantpay/internal/handlers"
	"merchantpay/internal/ledger"
	"merchantpay/internal/logging"
	"merchantpay/internal/metrics"
	"merchantpay/internal/notify"
	"merchantpay/internal/payments"
	"merchantpay/internal/payouts"
	"merchantpay/internal/psp"
	"merchantpay/internal/store"
	"merchantpay/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const expirySweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("failed to initialise card encryption", zap.Error(err))
	}

	recorder := metrics.New(prometheus.NewRegistry())
	hub := websocket.NewHub()
	sinks := []notify.Sink{hub}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		defer client.Close()
		sinks = append(sinks, notify.NewRedisSink(client, notify.EventsChannel, notify.CustomerChannel))
	}
	dispatcher := notify.NewDispatcher(cfg.NotificationBuffer, recorder, logger, sinks...)
	dispatcher.Start()

	users := store.NewUserStore(database)
	balanceStore := store.NewBalanceStore(database)
	entries := store.NewBalanceEntryStore(database)
	requests := store.NewPaymentRequestStore(database)
	timeline := store.NewTimelineStore(database)
	submissions := store.NewCardSubmissionStore(database)
	commissions := store.NewCommissionStore(database)
	settings := store.NewSettingsStore(database)
	txRunner := db.NewTxRunner(database, logger)

	balances := ledger.New(txRunner, balanceStore, entries, ledger.NewKeyLock(), cfg.DefaultCurrency)
	commissionLedger := commission.NewLedger(commissions, balances, recorder, logger)
	paymentService := payments.NewService(txRunner, requests, timeline, users, settings, balances, commissionLedger,
		dispatcher, recorder, logger, payments.Options{
			DefaultCurrency: cfg.DefaultCurrency,
			BankWirePercent: cfg.BankWireCommissionPercent,
		})
	cardService := psp.NewService(submissions, paymentService, cipher, dispatcher, logger, cfg.VerificationMaxAttempts)
	withdrawals := payouts.NewWithdrawalService(txRunner, store.NewWithdrawalStore(database), balances, dispatcher, recorder, logger, cfg.DefaultCurrency)
	settlements := payouts.NewSettlementService(txRunner, store.NewSettlementStore(database), balances, dispatcher, recorder, logger, cfg.DefaultCurrency)

	handler := handlers.New(handlers.Deps{
		TxRunner:    txRunner,
		Config:      cfg,
		Logger:      logger,
		Users:       users,
		Settings:    settings,
		Commissions: commissions,
		Balances:    balances,
		Payments:    paymentService,
		Cards:       cardService,
		Withdrawals: withdrawals,
		Settlements: settlements,
		Hub:         hub,
		Metrics:     recorder,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go paymentService.RunExpiry(ctx, expirySweepInterval)

	go func() {
		logger.Info("merchantpay API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	dispatcher.Close()
}
