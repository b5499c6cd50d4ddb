package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/nostr-signer/internal/metrics"
)

// KeyAvailability reports whether an active key encryption key is configured.
type KeyAvailability interface {
	Available() bool
}

// MetricsServer serves /health, /ready and, when a provider is given, /metrics.
type MetricsServer struct {
	db     *sql.DB
	keys   KeyAvailability
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer creates a new MetricsServer. db and metricsProvider may be nil.
func NewMetricsServer(
	host string,
	port int,
	db *sql.DB,
	keys KeyAvailability,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) *MetricsServer {
	s := &MetricsServer{
		db:     db,
		keys:   keys,
		logger: logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(CustomLoggerMiddleware(logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.router
}

func (s *MetricsServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler checks the database connection and the active key.
func (s *MetricsServer) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok", "key_encryption_key": "ok"}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("database not ready", slog.Any("error", err))
			components["database"] = "error"
			ready = false
		}
	}

	if s.keys == nil || !s.keys.Available() {
		components["key_encryption_key"] = "unavailable"
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// Start listens until Shutdown is called.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics HTTP server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
