package sched

// EventKind identifies a scheduler notification.
type EventKind string

const (
	EventCaptureStarted   EventKind = "capture_started"
	EventCaptureStopped   EventKind = "capture_stopped"
	EventRecordingStarted EventKind = "recording_started"
	EventRecordingStopped EventKind = "recording_stopped"
	EventStoreGrown       EventKind = "store_grown"
	EventEndOfStream      EventKind = "end_of_stream"
	EventTransientError   EventKind = "transient_error"
	EventStorageError     EventKind = "storage_error"
	EventFatalError       EventKind = "fatal_error"
)

// Event is a scheduler notification delivered to subscribers. Error events
// carry the error text rather than the error value so they can be shipped
// over the websocket stream unchanged.
type Event struct {
	Kind       EventKind `json:"kind"`
	Source     string    `json:"source,omitempty"`
	StorePath  string    `json:"store_path,omitempty"`
	FrameIndex int       `json:"frame_index,omitempty"`
	Error      string    `json:"error,omitempty"`
}
