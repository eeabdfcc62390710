// Package api exposes the command surface over HTTP: the four scheduler
// transitions, recording and ROI management, the live MJPEG stream, and
// websocket event/stats feeds.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/framescope/framescope/internal/config"
	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
	"github.com/framescope/framescope/internal/output"
	"github.com/framescope/framescope/internal/sched"
	"github.com/framescope/framescope/internal/source"
	"github.com/framescope/framescope/internal/stats"
	"github.com/framescope/framescope/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router    *mux.Router
	scheduler *sched.Scheduler
	configMgr *config.Manager
	slot      *frame.Latest
	roiSet    *stats.Set
	collector *stats.Collector
	stream    *output.MJPEG
	upgrader  websocket.Upgrader
}

// NewServer wires the API over the capture pipeline.
func NewServer(scheduler *sched.Scheduler, configMgr *config.Manager, slot *frame.Latest,
	roiSet *stats.Set, collector *stats.Collector, stream *output.MJPEG) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		scheduler: scheduler,
		configMgr: configMgr,
		slot:      slot,
		roiSet:    roiSet,
		collector: collector,
		stream:    stream,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Capture and recording control
	api.HandleFunc("/capture/start", s.handleCaptureStart).Methods("POST")
	api.HandleFunc("/capture/stop", s.handleCaptureStop).Methods("POST")
	api.HandleFunc("/recording/start", s.handleRecordingStart).Methods("POST")
	api.HandleFunc("/recording/stop", s.handleRecordingStop).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)

	// ROI statistics
	api.HandleFunc("/rois", s.handleGetROIs).Methods("GET")
	api.HandleFunc("/rois", s.handleAddROI).Methods("POST")
	api.HandleFunc("/rois/{name}", s.handleRemoveROI).Methods("DELETE")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/stats/stream", s.handleStatsStream)

	// Recorded datasets
	api.HandleFunc("/recordings", s.handleListRecordings).Methods("GET")
	api.HandleFunc("/recordings/{name}/frames/{index}", s.handleGetFrame).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Live view and metrics
	s.router.HandleFunc("/stream", s.stream.Handler())
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the HTTP server.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("HTTP server listening")
	return http.ListenAndServe(addr, s.router)
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HTTP handlers

type captureStartRequest struct {
	Source string `json:"source,omitempty"`
	Path   string `json:"path,omitempty"`
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	var req captureStartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	src, err := s.buildSource(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.scheduler.StartCapture(src); err != nil {
		src.Close()
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, s.scheduler.Status())
}

func (s *Server) buildSource(req captureStartRequest) (source.Source, error) {
	cfg := s.configMgr.Get()

	kind := config.SourceKind(req.Source)
	if kind == "" {
		kind = cfg.Capture.Source
	}

	switch kind {
	case config.SourceCamera:
		return source.OpenCamera(cfg.Capture.Device, cfg.Capture.Width, cfg.Capture.Height)
	case config.SourceScreen:
		reg := cfg.Capture.Screen
		return source.OpenScreen(reg.X, reg.Y, reg.Width, reg.Height)
	case "playback":
		if req.Path == "" {
			return nil, fmt.Errorf("playback source needs a path")
		}
		return source.OpenPlayback(req.Path)
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.StopCapture(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.scheduler.Status())
}

type recordingStartRequest struct {
	Path string `json:"path,omitempty"`
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	var req recordingStartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	path := req.Path
	if path == "" {
		cfg := s.configMgr.Get()
		if err := os.MkdirAll(cfg.Recording.Dir, 0755); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		name := "dataset_" + time.Now().Format("02-01-2006_15-04-05") + ".fsr"
		path = filepath.Join(cfg.Recording.Dir, name)
	}

	if err := s.scheduler.StartRecording(path); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, s.scheduler.Status())
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.StopRecording(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.scheduler.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.scheduler.Status()
	writeJSON(w, map[string]interface{}{
		"scheduler":  st,
		"generation": s.slot.Generation(),
		"streaming":  s.stream.IsRunning(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.scheduler.Subscribe()
	defer s.scheduler.Unsubscribe(events)

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) handleGetROIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.roiSet.List())
}

func (s *Server) handleAddROI(w http.ResponseWriter, r *http.Request) {
	var roi stats.ROI
	if err := json.NewDecoder(r.Body).Decode(&roi); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.roiSet.Add(roi); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.saveROIs()
	writeJSON(w, s.roiSet.List())
}

func (s *Server) handleRemoveROI(w http.ResponseWriter, r *http.Request) {
	s.roiSet.Remove(mux.Vars(r)["name"])
	s.saveROIs()
	writeJSON(w, s.roiSet.List())
}

func (s *Server) saveROIs() {
	cfg := s.configMgr.Get()
	if cfg.ROIFile == "" {
		return
	}
	if err := s.roiSet.SaveFile(cfg.ROIFile); err != nil {
		logger.WithComponent("api").Error().Err(err).Msg("Failed to save ROI file")
	}
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	results := s.collector.Latest()
	if results == nil {
		results = []stats.Result{}
	}
	writeJSON(w, results)
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	results := s.collector.Subscribe()
	defer s.collector.Unsubscribe(results)

	for batch := range results {
		if err := conn.WriteJSON(batch); err != nil {
			return
		}
	}
}

type recordingInfo struct {
	Name   string `json:"name"`
	Frames int    `json:"frames"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	entries, err := os.ReadDir(cfg.Recording.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, []recordingInfo{})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]recordingInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".fsr" {
			continue
		}
		rd, err := store.OpenFile(filepath.Join(cfg.Recording.Dir, e.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, recordingInfo{
			Name:   e.Name(),
			Frames: rd.Len(),
			Height: rd.Height(),
			Width:  rd.Width(),
		})
		rd.Close()
	}
	writeJSON(w, infos)
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := filepath.Base(vars["name"])
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "bad frame index", http.StatusBadRequest)
		return
	}

	cfg := s.configMgr.Get()
	rd, err := store.OpenFile(filepath.Join(cfg.Recording.Dir, name))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer rd.Close()

	fr, err := rd.ReadFrame(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := output.EncodePNG(w, fr); err != nil {
		logger.WithComponent("api").Error().Err(err).Msg("PNG encode failed")
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.configMgr.Update(&cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}
