package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"propmarket/internal/config"
	cronrunner "propmarket/internal/cron"
	"propmarket/internal/db"
	"propmarket/internal/handler"
	"propmarket/internal/logger"
	gormrepository "propmarket/internal/repository/gorm"
	"propmarket/internal/service"
	"propmarket/internal/stream"
	"propmarket/internal/wallet"

	_ "propmarket/docs"
)

func main() {
	cfgPath := os.Getenv("PROP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PROP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	hub := stream.NewHub(logger)
	seq := service.NewSequencer()
	admin := wallet.Normalize(cfg.Ledger.AdminAddress)

	accountsSvc := &service.AccountService{Repo: store, Seq: seq, Events: hub, Logger: logger, Admin: admin}
	settingsSvc := &service.SettingsService{Repo: store, Seq: seq, Events: hub, Logger: logger, Admin: admin}
	if err := settingsSvc.EnsureDefaults(context.Background(), cfg.Ledger.FeeBP, wallet.Normalize(cfg.Ledger.FeeRecipient)); err != nil {
		logger.Warn("init default platform settings failed", zap.Error(err))
	}
	registrySvc := &service.PropertyRegistryService{Repo: store, Seq: seq, Events: hub, Logger: logger, Admin: admin}
	ledgerSvc := &service.ShareLedgerService{Repo: store, Accounts: accountsSvc, Seq: seq, Events: hub, Logger: logger}
	marketSvc := &service.MarketplaceService{Repo: store, Accounts: accountsSvc, Settings: settingsSvc, Seq: seq, Events: hub, Logger: logger}
	snapshotSvc := &service.PoolSnapshotService{Repo: store, Logger: logger}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(wallet.CallerMiddleware())
	engine.Use(wallet.WriteAuditMiddleware(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	propertyHandler := &handler.PropertyHandler{Registry: registrySvc}
	propertyHandler.Register(engine)
	sharesHandler := &handler.SharesHandler{Ledger: ledgerSvc}
	sharesHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Market: marketSvc}
	marketHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Registry:  registrySvc,
		Settings:  settingsSvc,
		Accounts:  accountsSvc,
		Snapshots: snapshotSvc,
	}
	adminHandler.Register(engine)
	eventsHandler := &handler.EventsHandler{
		Repo:      store,
		Accounts:  accountsSvc,
		Snapshots: snapshotSvc,
	}
	if cfg.Stream.Enabled {
		eventsHandler.Stream = &stream.WSHandler{Hub: hub, Logger: logger}
	}
	eventsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.PoolSnapshot, func(ctx context.Context) {
			if err := snapshotSvc.RunOnce(ctx); err != nil {
				logger.Warn("cron pool snapshot failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register pool snapshot failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,X-Wallet-Address")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
