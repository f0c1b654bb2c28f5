// Package events carries the structured event stream the engine emits for
// external activity/logging collaborators.
//
// Events are JSON-shaped objects of the form {type, timestamp, ...payload}
// with payload fields flattened into the top-level object.
package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	TypeAnchorResolved       = "anchorResolved"
	TypeArtifactDiscovered   = "artifactDiscovered"
	TypeProcessSweepPass     = "processSweepPass"
	TypeRemovalResult        = "removalResult"
	TypeForceRemovalPlan     = "forceRemovalPlan"
	TypeForceAttempt         = "forceAttempt"
	TypeVerificationReversal = "verificationReversal"
	TypeSummary              = "summary"
)

// Event is one entry in the stream.
type Event struct {
	Type      string
	Timestamp time.Time
	Payload   map[string]any
}

// MarshalJSON flattens the payload into the top-level object alongside
// type and timestamp. Payload keys named "type" or "timestamp" are
// ignored rather than allowed to shadow the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		if k == "type" || k == "timestamp" {
			continue
		}
		obj[k] = v
	}
	obj["type"] = e.Type
	obj["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(obj)
}

// Emitter receives engine events. Implementations must tolerate being
// called sequentially from a single goroutine.
type Emitter interface {
	Emit(e Event)
}

// JSONEmitter writes one JSON object per line to an io.Writer.
type JSONEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONEmitter creates a line-delimited JSON emitter.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{w: w}
}

// Emit writes the event. Marshal or write failures are dropped; the event
// stream is advisory and must never fail a removal phase.
func (j *JSONEmitter) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.w.Write(append(data, '\n'))
}

// Recorder captures events in memory for tests.
type Recorder struct {
	Events []Event
}

// Emit appends the event.
func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// OfType returns the captured events with the given type.
func (r *Recorder) OfType(t string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Nop discards all events.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(Event) {}
