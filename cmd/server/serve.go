package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/technosupport/control-center/internal/api"
	"github.com/technosupport/control-center/internal/cameras"
	"github.com/technosupport/control-center/internal/config"
	"github.com/technosupport/control-center/internal/data"
	"github.com/technosupport/control-center/internal/events"
	"github.com/technosupport/control-center/internal/ingest"
	"github.com/technosupport/control-center/internal/logging"
	"github.com/technosupport/control-center/internal/middleware"
	"github.com/technosupport/control-center/internal/ratelimit"
	"github.com/technosupport/control-center/internal/stream"
	"github.com/technosupport/control-center/internal/tokens"
)

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API, event stream and detection ingest",
		Action: func(c *cli.Context) error {
			return serve(c.Context, c.String("config"))
		},
	}
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, level, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	cameraModel := data.CameraModel{DB: db}
	eventModel := data.EventModel{DB: db}
	userModel := data.UserModel{DB: db}
	videoModel := data.VideoModel{DB: db}

	// Stream core
	hub := stream.NewHub(stream.Config{BufferSize: cfg.Stream.BufferSize, Location: loc}, logger)
	heartbeat := stream.NewHeartbeat(hub, cfg.Stream.HeartbeatInterval)
	heartbeat.Start()

	eventService := events.NewService(eventModel, cameraModel, videoModel, data.TrafficModel{DB: db}, hub, loc, logger)
	cameraService := cameras.NewService(cameraModel, userModel, cameras.Config{
		StreamURLTemplate: cfg.Cameras.StreamURLTemplate,
		ProtectedIDs:      cfg.Cameras.ProtectedIDs,
	}, logger)

	// Auth
	var defaultUser uuid.UUID
	if cfg.Auth.DefaultUserID != "" {
		defaultUser, err = uuid.Parse(cfg.Auth.DefaultUserID)
		if err != nil {
			return fmt.Errorf("auth.default_user_id: %w", err)
		}
		logger.Warn("unauthenticated camera requests fall back to the default user", zap.String("user", defaultUser.String()))
	}
	if cfg.Auth.SigningKey == "" {
		logger.Warn("JWT_SIGNING_KEY not set, bearer tokens cannot be verified")
	}
	tokenManager := tokens.NewManager(cfg.Auth.SigningKey, cfg.Auth.TokenTTL)
	auth := middleware.NewJWTAuth(tokenManager, defaultUser, logger)

	// Rate limiting
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting fails open", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	limiter := ratelimit.NewLimiter(rdb, cfg.Redis.IPSalt)
	rl := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit, logger)

	// Detection ingest
	if cfg.Ingest.Enabled {
		nc, err := nats.Connect(cfg.Ingest.URL,
			nats.Name("control-center"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", cfg.Ingest.URL, err)
		}
		defer nc.Close()

		consumer := ingest.NewConsumer(eventService,
			ingest.NewDedup(cfg.Ingest.DedupMaxKeys, cfg.Ingest.DedupTTL),
			ingest.Config{
				SubjectPrefix: cfg.Ingest.SubjectPrefix,
				QueueGroup:    cfg.Ingest.QueueGroup,
				Location:      loc,
			}, logger)
		if err := consumer.Start(nc); err != nil {
			return err
		}
		defer consumer.Stop()
	}

	// Hot reload of log level and rate limits
	err = config.Watch(ctx, configPath, func(next *config.Config) {
		level.SetLevel(logging.ParseLevel(next.Log.Level))
		rl.SetPolicy(next.RateLimit)
		logger.Info("config reloaded", zap.String("log_level", next.Log.Level), zap.Bool("rate_limit", next.RateLimit.Enabled))
	}, logger)
	if err != nil {
		logger.Warn("config watcher disabled", zap.String("path", configPath), zap.Error(err))
	}

	router := api.NewRouter(api.Deps{
		Events:             eventService,
		Cameras:            cameraService,
		Hub:                hub,
		DB:                 db,
		Auth:               auth,
		RateLimit:          rl,
		CORSOrigins:        cfg.Server.CORSOrigins,
		StreamWriteTimeout: cfg.Stream.WriteTimeout,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	// Streams never finish on their own, so close them before Shutdown waits
	// on active handlers.
	heartbeat.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
