// Package sched drives the capture pipeline: a single goroutine pulls one
// frame from the active source per tick, publishes it to the live view slot,
// and appends it to the recording store when recording is enabled. All state
// transitions are serialized with the tick through one mutex, so an in-flight
// tick always runs to completion and ticks never overlap.
package sched

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
	"github.com/framescope/framescope/internal/metrics"
	"github.com/framescope/framescope/internal/source"
	"github.com/framescope/framescope/internal/store"
)

// State is the scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateRecording // capturing with an open recording store
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// DefaultPeriod is the default tick interval.
const DefaultPeriod = 100 * time.Millisecond

// Options tunes the scheduler and the stores it opens.
type Options struct {
	Period          time.Duration
	InitialCapacity int
	ChunkSize       int
}

// Status is a snapshot of the scheduler for the API surface. The recording
// fields reflect actual recording state, never desired state.
type Status struct {
	State         string `json:"state"`
	Source        string `json:"source,omitempty"`
	FrameIndex    int    `json:"frame_index"`
	StorePath     string `json:"store_path,omitempty"`
	StoreLength   int    `json:"store_length"`
	StoreCapacity int    `json:"store_capacity"`
}

// Scheduler owns the tick loop and the recording store it opens. It is the
// single writer of the live view slot.
type Scheduler struct {
	mu         sync.Mutex
	state      State
	src        source.Source
	st         *store.Store
	frameIndex int
	stopChan   chan struct{}
	stopped    bool

	slot *frame.Latest
	opts Options

	listenersMu sync.RWMutex
	listeners   []chan Event
}

// New creates a scheduler publishing into slot.
func New(slot *frame.Latest, opts Options) *Scheduler {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = store.DefaultInitialCapacity
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = store.DefaultChunkSize
	}
	return &Scheduler{slot: slot, opts: opts}
}

// StartCapture takes ownership of src and begins periodic ticking.
func (s *Scheduler) StartCapture(src source.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return errors.New("already capturing")
	}

	s.src = src
	s.frameIndex = 0
	s.state = StateCapturing
	s.stopChan = make(chan struct{})
	s.stopped = false

	go s.run(s.stopChan)

	logger.WithComponent("sched").Info().
		Str("source", src.Name()).
		Dur("period", s.opts.Period).
		Msg("Capture started")
	s.notify(Event{Kind: EventCaptureStarted, Source: src.Name()})
	return nil
}

// StopCapture stops ticking, closes any open recording store, and releases
// the source. Calling it while idle is a no-op.
func (s *Scheduler) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil
	}
	s.stopLocked()
	return nil
}

// StartRecording opens a recording store at path, sized from the current
// source's frame dimensions, and starts appending on every tick. Fails when
// not capturing or when the store cannot be opened; an open failure leaves
// the scheduler capturing.
func (s *Scheduler) StartRecording(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return errors.New("not capturing")
	case StateRecording:
		return errors.New("already recording")
	}

	st, err := store.Open(path, s.src.Height(), s.src.Width(), s.opts.InitialCapacity, s.opts.ChunkSize)
	if err != nil {
		return err
	}

	s.st = st
	s.frameIndex = 0
	s.state = StateRecording
	metrics.StoreLength.Set(float64(st.Length()))
	metrics.StoreCapacity.Set(float64(st.Capacity()))

	logger.WithComponent("sched").Info().
		Str("path", path).
		Msg("Recording started")
	s.notify(Event{Kind: EventRecordingStarted, Source: s.src.Name(), StorePath: path})
	return nil
}

// StopRecording closes the recording store and keeps capturing. Calling it
// when not recording is a no-op.
func (s *Scheduler) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}
	return s.closeStoreLocked(StateCapturing)
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot for the API surface.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      s.state.String(),
		FrameIndex: s.frameIndex,
	}
	if s.src != nil {
		st.Source = s.src.Name()
	}
	if s.st != nil {
		st.StorePath = s.st.Path()
		st.StoreLength = s.st.Length()
		st.StoreCapacity = s.st.Capacity()
	}
	return st
}

// Subscribe registers a listener for scheduler events. Slow listeners miss
// events rather than blocking the tick.
func (s *Scheduler) Subscribe() chan Event {
	ch := make(chan Event, 16)
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, ch)
	s.listenersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (s *Scheduler) Unsubscribe(ch chan Event) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Scheduler) notify(ev Event) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()

	for _, listener := range s.listeners {
		select {
		case listener <- ev:
		default:
		}
	}
}

// run is the tick loop. It exits when the stop channel for its capture
// session is closed, either by StopCapture or by the tick itself on a fatal
// source failure.
func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.tick()
			s.mu.Unlock()
		}
	}
}

// tick executes one capture step. Caller holds s.mu.
func (s *Scheduler) tick() {
	if s.state == StateIdle {
		return
	}

	log := logger.WithComponent("sched")

	fr, err := s.src.Next()
	if err != nil {
		switch {
		case errors.Is(err, source.ErrEndOfStream):
			log.Info().Str("source", s.src.Name()).Msg("Source exhausted")
			s.notify(Event{Kind: EventEndOfStream, Source: s.src.Name()})
			s.stopLocked()
		case source.IsFatal(err):
			log.Error().Err(err).Str("source", s.src.Name()).Msg("Fatal capture error")
			s.notify(Event{Kind: EventFatalError, Source: s.src.Name(), Error: err.Error()})
			s.stopLocked()
		default:
			// Transient: the slot keeps its last good frame and this tick
			// records nothing.
			log.Warn().Err(err).Msg("Transient capture error, tick dropped")
			metrics.TransientDrops.Inc()
			s.notify(Event{Kind: EventTransientError, Source: s.src.Name(), Error: err.Error()})
		}
		return
	}

	s.slot.Write(fr)
	metrics.FramesCaptured.Inc()

	if s.state != StateRecording {
		return
	}

	prevCap := s.st.Capacity()
	if err := s.st.Append(fr); err != nil {
		if errors.Is(err, store.ErrDimensionMismatch) {
			// The source changed shape under us; recording cannot continue,
			// live view can.
			log.Error().Err(err).Msg("Frame dimensions changed, stopping recording")
			if cerr := s.closeStoreLocked(StateCapturing); cerr != nil {
				log.Error().Err(cerr).Msg("Store close failed")
			}
			s.notify(Event{Kind: EventStorageError, Error: err.Error()})
			return
		}
		// Recording degrades to dropped samples; display is unaffected
		// since the slot write already happened.
		log.Error().Err(err).Int("frame_index", s.frameIndex).Msg("Store append failed, sample dropped")
		metrics.RecordDrops.Inc()
		s.notify(Event{Kind: EventStorageError, FrameIndex: s.frameIndex, Error: err.Error()})
		return
	}

	s.frameIndex++
	metrics.FramesRecorded.Inc()
	metrics.StoreLength.Set(float64(s.st.Length()))
	if c := s.st.Capacity(); c != prevCap {
		metrics.StoreGrowths.Inc()
		metrics.StoreCapacity.Set(float64(c))
		log.Info().Int("capacity", c).Msg("Recording store grew")
		s.notify(Event{Kind: EventStoreGrown, StorePath: s.st.Path(), FrameIndex: s.st.Length()})
	}
}

// stopLocked tears down the capture session: recording store first, then the
// source. Caller holds s.mu.
func (s *Scheduler) stopLocked() {
	log := logger.WithComponent("sched")

	if s.state == StateRecording {
		if err := s.closeStoreLocked(StateCapturing); err != nil {
			log.Error().Err(err).Msg("Store close failed")
		}
	}

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}

	name := s.src.Name()
	if err := s.src.Close(); err != nil {
		log.Warn().Err(err).Msg("Source close failed")
	}
	s.src = nil
	s.state = StateIdle

	log.Info().Str("source", name).Msg("Capture stopped")
	s.notify(Event{Kind: EventCaptureStopped, Source: name})
}

// closeStoreLocked closes the recording store and moves to next. Caller
// holds s.mu and guarantees state is StateRecording.
func (s *Scheduler) closeStoreLocked(next State) error {
	path := s.st.Path()
	frames := s.st.Length()
	err := s.st.Close()
	s.st = nil
	s.state = next
	metrics.StoreLength.Set(0)
	metrics.StoreCapacity.Set(0)

	logger.WithComponent("sched").Info().
		Str("path", path).
		Int("frames", frames).
		Msg("Recording stopped")
	s.notify(Event{Kind: EventRecordingStopped, StorePath: path, FrameIndex: frames})
	return err
}
