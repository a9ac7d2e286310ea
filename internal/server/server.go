// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/alerting"
	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/poller"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// HTTPServer exposes health, stats, metrics, and read-only views over the
// monitoring data. Administrative CRUD lives in the operator UI backend;
// this surface is diagnostic.
type HTTPServer struct {
	config         *config.ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Store
	poller         *poller.Poller
	engine         *alerting.Engine
	metricsManager *metrics.Manager
	logger         *logrus.Logger
	version        string
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Store,
	p *poller.Poller,
	engine *alerting.Engine,
	metricsManager *metrics.Manager,
	version string,
) *HTTPServer {
	s := &HTTPServer{
		config:         cfg,
		storage:        store,
		poller:         p,
		engine:         engine,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
		version:        version,
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	api.HandleFunc("/targets", s.listTargetsHandler).Methods("GET")
	api.HandleFunc("/targets/{id}", s.getTargetHandler).Methods("GET")
	api.HandleFunc("/targets/{id}/history", s.targetHistoryHandler).Methods("GET")

	api.HandleFunc("/alerts", s.listAlertsHandler).Methods("GET")
	api.HandleFunc("/alerts/{id}/deliveries", s.alertDeliveriesHandler).Methods("GET")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.metricsManager.UpdateSystemMetrics()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Catch immediate binding errors before reporting success.
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  time.Since(start).String(),
			"remote_ip": r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		s.metricsManager.GetMetrics().RecordHTTPRequest(
			r.Method, route, strconv.Itoa(recorder.status), time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handlers

func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"version":   s.version,
	})
}

func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	storageHealth := s.storage.GetHealth()
	pollerHealthy := s.poller != nil && s.poller.IsHealthy()
	engineHealthy := s.engine != nil && s.engine.IsHealthy()

	status := "healthy"
	code := http.StatusOK
	if !storageHealth.Healthy || !pollerHealthy || !engineHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   s.version,
		"components": map[string]interface{}{
			"storage": storageHealth,
			"poller":  pollerHealthy,
			"engine":  engineHealthy,
		},
	})
}

func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	stats := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"storage":   storageStats,
	}
	if s.poller != nil {
		stats["poller"] = s.poller.GetStats()
	}
	if s.engine != nil {
		stats["engine"] = s.engine.GetStats()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) listTargetsHandler(w http.ResponseWriter, r *http.Request) {
	var enabled *bool
	if value := r.URL.Query().Get("enabled"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid enabled parameter", err)
			return
		}
		enabled = &parsed
	}

	targets, err := s.storage.GetTargets(r.Context(), enabled)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve targets", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"targets": targets, "count": len(targets)})
}

func (s *HTTPServer) getTargetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid target id", err)
		return
	}

	target, err := s.storage.GetTarget(r.Context(), id)
	if err != nil {
		if utils.IsCode(err, utils.ErrCodeNotFound) {
			s.writeError(w, http.StatusNotFound, "Target not found", err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve target", err)
		return
	}

	response := map[string]interface{}{"target": target}
	if latest, err := s.storage.GetLatestPollResult(r.Context(), id); err == nil {
		response["latest_poll"] = latest
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) targetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid target id", err)
		return
	}

	filter := models.PollResultFilter{TargetID: &id, Limit: 100}
	if value := r.URL.Query().Get("limit"); value != "" {
		if limit, err := strconv.Atoi(value); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}

	results, err := s.storage.GetPollResults(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve poll history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

func (s *HTTPServer) listAlertsHandler(w http.ResponseWriter, r *http.Request) {
	filter := models.AlertHistoryFilter{Limit: 100}

	if value := r.URL.Query().Get("target_id"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid target_id parameter", err)
			return
		}
		filter.TargetID = &id
	}
	if value := r.URL.Query().Get("active"); value != "" {
		active, err := strconv.ParseBool(value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid active parameter", err)
			return
		}
		filter.Active = &active
	}

	alerts, err := s.storage.GetAlertHistory(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (s *HTTPServer) alertDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid alert id", err)
		return
	}

	deliveries, err := s.storage.GetDeliveries(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve deliveries", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deliveries": deliveries, "count": len(deliveries)})
}

// Helpers

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		response["detail"] = err.Error()
	}
	s.writeJSON(w, status, response)
}
