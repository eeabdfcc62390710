// Package output renders the live view slot for display consumers. The MJPEG
// stream is the display path: it reads the newest frame on its own cadence
// and tolerates missed frames, never touching the capture or recording side.
package output

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
)

// Config holds the MJPEG output settings.
type Config struct {
	FPS      int // repaint rate, independent of the capture tick
	MaxWidth int // downscale limit, 0 for native size
	Quality  int // jpeg quality, 0 for the default
}

// MJPEG streams the live view slot as Motion JPEG over HTTP. Each connected
// client gets a small buffered channel; slow clients skip frames instead of
// backpressuring the renderer.
type MJPEG struct {
	config Config
	slot   *frame.Latest

	mu      sync.RWMutex
	running bool

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	lastGen  uint64
	stopChan chan struct{}
}

// NewMJPEG creates an MJPEG output over slot.
func NewMJPEG(slot *frame.Latest, config Config) *MJPEG {
	if config.FPS <= 0 {
		config.FPS = 10
	}
	if config.Quality <= 0 {
		config.Quality = 90
	}
	return &MJPEG{
		config:  config,
		slot:    slot,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start launches the render loop.
func (m *MJPEG) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopChan = make(chan struct{})
	go m.run(m.stopChan)

	logger.WithComponent("mjpeg").Info().
		Int("fps", m.config.FPS).
		Msg("MJPEG output started")
	return nil
}

// Stop shuts down the render loop and disconnects all clients. Idempotent.
func (m *MJPEG) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopChan)

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().Msg("MJPEG output stopped")
	return nil
}

// IsRunning returns true if the render loop is active.
func (m *MJPEG) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *MJPEG) run(stop chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(m.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.renderOnce()
		}
	}
}

func (m *MJPEG) renderOnce() {
	fr, gen := m.slot.Read()
	if fr == nil || gen == m.lastGen {
		return
	}
	m.lastGen = gen

	m.clientsMu.RLock()
	idle := len(m.clients) == 0
	m.clientsMu.RUnlock()
	if idle {
		return
	}

	img := Downscale(Render(fr), m.config.MaxWidth)
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		logger.WithComponent("mjpeg").Error().Err(err).Msg("JPEG encode failed")
		return
	}
	data := buf.Bytes()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- data:
		default:
			// Client is slow, skip this frame.
		}
	}
	m.clientsMu.RUnlock()
}

// Handler returns the HTTP handler serving the multipart MJPEG stream.
func (m *MJPEG) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		count := len(m.clients)
		m.clientsMu.Unlock()
		logger.WithComponent("mjpeg").Info().Int("clients", count).Msg("Stream client connected")

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			count := len(m.clients)
			m.clientsMu.Unlock()
			logger.WithComponent("mjpeg").Info().Int("clients", count).Msg("Stream client disconnected")
		}()

		for data := range frameChan {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
