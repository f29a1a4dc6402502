package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/heartwatch/heartwatch/internal/config"
	"github.com/heartwatch/heartwatch/internal/domain/registry"
	"github.com/heartwatch/heartwatch/internal/domain/vitals"
	"github.com/heartwatch/heartwatch/internal/platform/middleware"
	"github.com/heartwatch/heartwatch/internal/platform/notification"
	"github.com/heartwatch/heartwatch/internal/platform/websocket"
)

// VitalsFeedAdapter adapts the websocket Hub to the vitals.Publisher
// interface, avoiding a direct dependency from the vitals engine on the
// transport layer.
type VitalsFeedAdapter struct {
	hub *websocket.Hub
}

// NewVitalsFeedAdapter creates a new adapter.
func NewVitalsFeedAdapter(hub *websocket.Hub) *VitalsFeedAdapter {
	return &VitalsFeedAdapter{hub: hub}
}

// PublishReading implements vitals.Publisher. Broadcast never blocks; slow
// clients are skipped.
func (a *VitalsFeedAdapter) PublishReading(res vitals.RecordResult) {
	a.hub.Broadcast(websocket.VitalsTopic(res.PatientID), readingEvent(res))
}

// readingEvent renders one accepted reading as a feed event. Tachycardic
// readings are typed "alert.raised" so dashboards can highlight them.
func readingEvent(res vitals.RecordResult) websocket.Event {
	eventType := "reading.recorded"
	if res.Status == registry.StatusTachycardic {
		eventType = "alert.raised"
	}

	data, _ := json.Marshal(res)
	return websocket.Event{
		Type:      eventType,
		Topic:     websocket.VitalsTopic(res.PatientID),
		PatientID: res.PatientID,
		Timestamp: res.Reading.Taken,
		Data:      data,
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "heartwatch-server",
		Short: "Heart-rate monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// API group
	api := e.Group("/api")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(30 * time.Second))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Alert delivery path. The manager wraps the sink with a delivery log so
	// operators can inspect and retry failed alerts.
	var sink notification.Sink
	if cfg.EmailRelayURL != "" {
		sink = notification.NewRelaySink(cfg.EmailRelayURL, cfg.EmailFrom, cfg.RelayTimeout())
		logger.Info().Str("relay_url", cfg.EmailRelayURL).Msg("using email relay sink")
	} else {
		sink = notification.NewLogSink(logger)
		logger.Info().Msg("no relay configured, alerts go to the log")
	}
	manager := notification.NewManager(sink)
	notificationHandler := notification.NewHandler(manager)
	notificationHandler.RegisterRoutes(api)

	// Live vitals feed
	hub := websocket.NewHub()
	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(api)

	// Patient and attending registry
	store := registry.NewStore()
	registrySvc := registry.NewService(store)
	registryHandler := registry.NewHandler(registrySvc)
	registryHandler.RegisterRoutes(api)

	// Vital-sign engine
	vitalsSvc := vitals.NewService(store, manager, NewVitalsFeedAdapter(hub))
	vitalsHandler := vitals.NewHandler(vitalsSvc)
	vitalsHandler.RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
