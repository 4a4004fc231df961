package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulsepath/internal/config"
	"pulsepath/internal/handlers"
	"pulsepath/internal/middleware"
	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/internal/repositories/memory"
	"pulsepath/internal/repositories/mongodb"
	"pulsepath/internal/services"
	"pulsepath/pkg/cache"
	"pulsepath/pkg/database"
	"pulsepath/pkg/logger"
	"pulsepath/pkg/push"
	"pulsepath/pkg/sms"
	"pulsepath/pkg/websocket"
	"pulsepath/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	fanout := services.NewFanoutService(log, cfg.Dispatch.FanoutBuffer)

	var (
		requestRepo   interfaces.RequestRepository
		hospitalRepo  interfaces.HospitalRepository
		ambulanceRepo interfaces.AmbulanceRepository
		redisCache    *cache.RedisCache
		bridge        *services.EventBridge
	)

	// announce is the single sink for committed events: local fanout plus,
	// when Redis is up, the cross-instance bridge.
	announce := func(evt *models.RequestEvent) {
		fanout.Publish(evt)
		if bridge != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			bridge.Forward(ctx, evt)
		}
	}

	switch cfg.Dispatch.Store {
	case "memory":
		store := memory.NewStore()
		store.OnCommit(announce)
		requestRepo = store
		hospitalRepo = store.Hospitals()
		ambulanceRepo = store.Ambulances()
		log.Info("using in-memory store")
	default:
		db, err := database.NewMongoDB(&database.DatabaseConfig{
			URI:            cfg.Database.URI,
			Database:       cfg.Database.Database,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			SocketTimeout:  cfg.Database.SocketTimeout,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to MongoDB")
		}
		defer db.Close()

		if err := database.NewMigrator(db.Database).Up(); err != nil {
			log.WithError(err).Fatal("migrations failed")
		}

		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer redisCache.Close()

		bridge = services.NewEventBridge(redisCache, fanout, log)

		requestRepo = mongodb.NewRequestRepository(db, redisCache, announce)
		hospitalRepo = mongodb.NewHospitalRepository(db)
		ambulanceRepo = mongodb.NewAmbulanceRepository(db)
		log.Info("using MongoDB store")
	}

	gateway := services.NewRoleGateway()
	dispatchService := services.NewDispatchService(requestRepo, hospitalRepo, ambulanceRepo, gateway, announce, log)
	directoryService := services.NewDirectoryService(hospitalRepo, ambulanceRepo, log)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if bridge != nil {
		go bridge.Run(rootCtx)
	}

	var pushProvider push.Provider
	if cfg.Push.Enabled && cfg.Push.Credentials != "" {
		fcm, err := push.NewFCMProvider(cfg.Push.Credentials)
		if err != nil {
			log.WithError(err).Warn("push disabled, FCM init failed")
		} else {
			pushProvider = fcm
		}
	}

	var smsProvider sms.Provider
	switch cfg.SMS.Provider {
	case "twilio":
		if cfg.SMS.Twilio.AccountSID != "" {
			smsProvider = sms.NewTwilioProvider(cfg.SMS.Twilio.AccountSID, cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber)
		}
	case "aws":
		provider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			log.WithError(err).Warn("SMS disabled, SNS init failed")
		} else {
			smsProvider = provider
		}
	}

	if pushProvider != nil || smsProvider != nil {
		notifier := services.NewNotifierService(hospitalRepo, pushProvider, smsProvider, cfg.SMS.DefaultFrom, log)
		go notifier.Run(rootCtx, fanout)
	}

	reaper := services.NewReaperService(requestRepo, cfg.Dispatch.PendingTTL, cfg.Dispatch.ReaperSchedule, log)
	if err := reaper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start reaper")
	}
	defer reaper.Stop()

	subscribe := func(filter models.EventFilter) (string, <-chan *models.RequestEvent, func()) {
		sub := fanout.Subscribe(filter)
		return sub.ID, sub.C, sub.Close
	}
	wsHandler := websocket.NewHandler(subscribe, hospitalRepo, log)
	defer wsHandler.Hub().Shutdown()

	sosHandler := handlers.NewSOSHandler(dispatchService)
	hospitalHandler := handlers.NewHospitalHandler(directoryService)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := router.Group("/api/v1")
	{
		routes.SetupSOSRoutes(v1, cfg.Security.JWTSecret, sosHandler)
		routes.SetupDirectoryRoutes(v1, cfg.Security.JWTSecret, hospitalHandler)
		routes.SetupEventRoutes(v1, cfg.Security.JWTSecret, wsHandler)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
