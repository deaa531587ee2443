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

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/docs"
	"github.com/undefinedable/zeppelin-orderkuota/internal/audit"
	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
	"github.com/undefinedable/zeppelin-orderkuota/internal/database"
	"github.com/undefinedable/zeppelin-orderkuota/internal/gateway"
	"github.com/undefinedable/zeppelin-orderkuota/internal/handlers"
	"github.com/undefinedable/zeppelin-orderkuota/internal/logging"
	mW "github.com/undefinedable/zeppelin-orderkuota/internal/middleware"
	"github.com/undefinedable/zeppelin-orderkuota/internal/services"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

// @title Top-up Ledger API
// @version 1.0
// @description QRIS balance top-up service backed by the Zeppelin payment gateway
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	swaggerHost := kingpin.Flag("swagger-host", "Host advertised in the API docs").Default("localhost:8080").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Encoding, "topup-ledger")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	docs.SwaggerInfo.Host = *swaggerHost

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Connect(ctx, cfg, cfg.Ledger.Backend, logger)
	if err != nil {
		logger.Fatal("cannot open ledger store", zap.Error(err))
	}
	defer closeStore()

	qrCache, closeQRCache := qrCacheClient(ctx, cfg, st, logger)
	defer closeQRCache()

	auditLogger := audit.NewLogger(logger)
	ledger := services.NewLedger(st, logger)
	transactions := services.NewTransactionManager(ledger, cfg.Ledger.Retention, auditLogger, logger)
	balances := services.NewBalanceAccountant(ledger)
	gw := gateway.NewClient(cfg.Gateway, logger)
	qr := services.NewQRService(qrCache, time.Duration(cfg.Gateway.ExpiryMinutes)*time.Minute)

	topUps := services.NewTopUpService(transactions, balances, gw, qr, services.TopUpOptions{
		MinAmount:     cfg.TopUp.MinAmount,
		HistoryLimit:  cfg.TopUp.HistoryLimit,
		ExpiryMinutes: cfg.Gateway.ExpiryMinutes,
	}, auditLogger, logger)

	if cfg.Gateway.WebhookSecret == "" {
		logger.Warn("webhook secret not set, gateway notifications will be rejected")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		TopUps:         handlers.NewTopUpHandler(topUps, logger),
		Webhooks:       handlers.NewWebhookHandler(topUps, cfg.Gateway.WebhookSecret, logger),
		Auth:           mW.NewAuthenticator(cfg.JWT.SecretKey),
		RequestTimeout: 60 * time.Second,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// qrCacheClient reuses the ledger's Redis connection when the ledger lives in Redis and otherwise
// opens one. The cache is optional; without Redis the service still works but cannot re-render
// codes. The returned func closes only a connection opened here.
func qrCacheClient(ctx context.Context, cfg *config.Config, st store.Store, logger *zap.Logger) (*redis.Client, func()) {
	if rs, ok := st.(*store.RedisStore); ok {
		return rs.Client(), func() {}
	}

	rdb, err := database.OpenRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, QR codes will not be cached", zap.Error(err))
		return nil, func() {}
	}
	return rdb, func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
