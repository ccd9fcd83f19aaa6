// Package server provides the HTTP API and local web UI for mudra.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Pipeline is the part of the detection pipeline the API drives.
type Pipeline interface {
	Progress() confirm.Progress
	Snapshot() confirm.Snapshot
	LatestSample() (classifier.Sample, bool)
	IsEnabled() bool
	SetEnabled(enabled bool)
	TrainClass(classID string) error
	ForgetClass(name string)
}

// Config holds the server configuration. Every field is optional; routes
// whose dependency is missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
	Preview   *capture.Preview
	Events    *EventHub
	Plugins   *plugin.Manager
	Logger    *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	config Config
	logger *slog.Logger
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		logger: logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var trainer api.Trainer
	if s.config.Pipeline != nil {
		trainer = s.config.Pipeline
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/progress", s.handleProgress)
		s.mux.HandleFunc("/api/features", s.handleFeatures)
	}

	if s.config.Store != nil {
		classHandler := api.NewClassHandler(s.config.Store, trainer)
		samplesHandler := api.NewSamplesHandler(s.config.Store, trainer)

		// /api/classes/{id}/samples goes to the samples handler.
		classRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/samples") {
				samplesHandler.ServeHTTP(w, r)
				return
			}
			classHandler.ServeHTTP(w, r)
		})
		s.mux.Handle("/api/classes", classRouter)
		s.mux.Handle("/api/classes/", classRouter)

		var lookup api.PluginLookup
		if s.config.Plugins != nil {
			lookup = s.config.Plugins
		}
		actionHandler := api.NewActionHandler(s.config.Store, lookup)
		s.mux.Handle("/api/actions", actionHandler)
		s.mux.Handle("/api/actions/", actionHandler)

		s.mux.Handle("/api/confirmations", api.NewConfirmationHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview, s.logger))
		s.mux.Handle("/api/snapshot", NewSnapshotHandler(s.config.Preview))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Events != nil {
		s.config.Events.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type statusResponse struct {
	Enabled  bool             `json:"enabled"`
	Progress confirm.Progress `json:"progress"`
	State    confirm.Snapshot `json:"state"`
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleStatus reports the confirmer state (GET) or toggles detection (PUT).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.config.Pipeline

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		p.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:  p.IsEnabled(),
		Progress: displayProgress(p.Progress()),
		State:    p.Snapshot(),
	})
}

// handleProgress returns the streak progress for the UI's progress bar.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, displayProgress(s.config.Pipeline.Progress()))
}

// displayProgress clamps the ratio to 1; held signs keep counting.
func displayProgress(p confirm.Progress) confirm.Progress {
	p.Ratio = min(p.Ratio, 1)
	return p
}

// handleFeatures returns the most recent frame's feature vector so the UI
// can record training samples.
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sample, ok := s.config.Pipeline.LatestSample()
	if !ok {
		writeError(w, http.StatusNotFound, "No hands in view")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

type pluginResponse struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Actions     []string        `json:"actions"`
	Schema      json.RawMessage `json:"config_schema,omitempty"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// handlePlugins lists installed plugins (GET) or rescans the plugin
// directory first (POST).
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := s.config.Plugins.Discover(); err != nil {
			s.logger.Error("plugin discovery failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to discover plugins")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.Plugins.List()
	response := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     p.Manifest.Actions,
			Schema:      p.Manifest.ConfigSchema,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
