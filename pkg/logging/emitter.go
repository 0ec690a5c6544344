package logging

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Sink delivers one record to an external collector. Delivery is
// at-most-once: implementations report failure through the returned error
// and must not block longer than the context allows.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

const defaultDeliverTimeout = 10 * time.Second

// Emitter turns call-site events into normalized Records. It stamps
// defaults, writes one JSON object per line to the local output, and hands
// the record to every sink in a detached goroutine. Emit never blocks on
// delivery and never fails the caller.
type Emitter struct {
	service        string
	sinks          []Sink
	deliverTimeout time.Duration
	now            func() time.Time

	mu  sync.Mutex
	out io.Writer
}

// NewEmitter creates an emitter. service tags every record it stamps; out
// receives one complete JSON line per record.
func NewEmitter(service string, out io.Writer, sinks ...Sink) *Emitter {
	return &Emitter{
		service:        service,
		out:            out,
		sinks:          sinks,
		deliverTimeout: defaultDeliverTimeout,
		now:            time.Now,
	}
}

// Emit builds a record for event and sends it down the pipeline. Caller
// fields overlay the stamped defaults, so an explicit level or message in
// fields survives verbatim.
func (e *Emitter) Emit(event string, fields map[string]any) {
	rec := NewRecord(map[string]any{
		KeyTimestamp: Timestamp(e.now()),
		KeyService:   e.service,
		KeyEvent:     event,
		KeyLevel:     LevelInfo,
		KeyMessage:   event,
	}, fields)
	e.EmitRecord(rec)
}

// EmitRecord writes an already-normalized record locally and dispatches it
// to the sinks. The local write always completes before dispatch starts.
func (e *Emitter) EmitRecord(rec Record) {
	e.writeLocal(rec)
	if len(e.sinks) == 0 {
		return
	}
	go e.dispatch(rec)
}

// writeLocal serializes rec to a single line. A record that cannot be
// marshalled is dropped; emission never propagates a failure.
func (e *Emitter) writeLocal(rec Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	b = append(b, '\n')

	e.mu.Lock()
	_, _ = e.out.Write(b)
	e.mu.Unlock()
}

// dispatch runs outside the request path. Each delivery result is discarded
// here, and only here: record loss on sink failure is an accepted outcome.
func (e *Emitter) dispatch(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), e.deliverTimeout)
	defer cancel()

	for _, sink := range e.sinks {
		_ = sink.Deliver(ctx, rec)
	}
}
