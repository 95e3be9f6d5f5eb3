package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vnkhanh/matchday-server/config"
	"github.com/vnkhanh/matchday-server/controllers"
	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/notify"
	"github.com/vnkhanh/matchday-server/queue"
	"github.com/vnkhanh/matchday-server/realtime"
	"github.com/vnkhanh/matchday-server/roster"
	"github.com/vnkhanh/matchday-server/routes"
	"github.com/vnkhanh/matchday-server/storage"
	"github.com/vnkhanh/matchday-server/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Kết nối DB + AutoMigrate
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := config.ConnectPool(connectCtx, cfg.DSN(), cfg.DBMaxConns)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	db, err := config.ConnectDB(pool)
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}
	logger.Info().Msg("connected to PostgreSQL & migrated successfully")

	rdb, err := config.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub := realtime.NewHub()
	broker := realtime.NewBroker(hub, rdb, cfg.RealtimeChannel)

	// không có Redis thì notification giao bằng goroutine trong process
	var (
		qClient queue.Client
		qServer *queue.AsynqServer
	)
	if cfg.RedisURL != "" {
		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("queue client: %w", err)
		}
		defer client.Close()
		qClient = client

		qServer, err = queue.NewAsynqServer(cfg.RedisURL, cfg.QueueConcurrency, cfg.QueueWeights)
		if err != nil {
			return fmt.Errorf("queue server: %w", err)
		}
	}
	dispatcher := notify.NewDispatcher(db, broker, qClient)
	if qServer != nil {
		dispatcher.Register(qServer)
	}

	manager := roster.NewManager(storage.NewRosterStore(db), dispatcher, broker, logger)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	h := controllers.New(controllers.Deps{
		DB:             db,
		Pool:           pool,
		Roster:         manager,
		Notifier:       dispatcher,
		Publisher:      broker,
		Tokens:         tokens,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	authLimiter := middleware.NewAuthLimiter()
	defer authLimiter.Stop()
	createLimiter := middleware.NewMatchCreateLimiter()
	defer createLimiter.Stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	routes.SetupRoutes(r, h, routes.Options{
		DB:             db,
		Tokens:         tokens,
		AuthLimiter:    authLimiter,
		CreateLimiter:  createLimiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return broker.Run(gctx)
	})
	if qServer != nil {
		g.Go(func() error {
			return qServer.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		err := srv.Shutdown(shutdownCtx)
		dispatcher.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
