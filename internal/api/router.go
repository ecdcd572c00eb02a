package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/technosupport/control-center/internal/middleware"
	"github.com/technosupport/control-center/internal/stream"
	"go.uber.org/zap"
)

type Deps struct {
	Events  EventService
	Cameras CameraService
	Hub     *stream.Hub
	DB      Pinger

	Auth      *middleware.JWTAuth
	RateLimit *middleware.RateLimitMiddleware

	CORSOrigins        []string
	StreamWriteTimeout time.Duration
	Logger             *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eventHandler := NewEventHandler(d.Events, logger.Named("api"))
	cameraHandler := NewCameraHandler(d.Cameras, logger.Named("api"))
	streamHandler := NewStreamHandler(d.Hub, d.StreamWriteTimeout, logger)
	healthHandler := NewHealthHandler(d.DB, d.Hub)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(d.CORSOrigins))
	if d.RateLimit != nil {
		r.Use(d.RateLimit.GlobalLimiter)
	}

	r.Get("/healthz", healthHandler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/", eventHandler.Create)
		r.Post("/traffic", eventHandler.CreateTraffic)
		r.Get("/", eventHandler.Query)
		r.Get("/stream", streamHandler.SSE)
		r.Get("/ws", streamHandler.WebSocket)
		r.Get("/camera/{cameraId}", eventHandler.ListByCamera)
		r.Get("/{id}", eventHandler.Get)
	})

	r.Route("/api/cameras", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(d.Auth.Middleware)
		}
		if d.RateLimit != nil {
			r.Use(d.RateLimit.UserLimiter)
		}
		r.Get("/", cameraHandler.List)
		r.Post("/", cameraHandler.Create)
		r.Get("/{id}", cameraHandler.Get)
		r.Put("/{id}", cameraHandler.Update)
		r.Put("/{id}/status", cameraHandler.UpdateStatus)
		r.Delete("/{id}", cameraHandler.Delete)
	})

	return r
}
