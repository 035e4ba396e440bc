package protocol

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Emitter writes protocol messages as JSON lines. It is safe for
// concurrent use; lines are never interleaved.
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time

	records int
}

// NewEmitter creates an emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

// WithClock overrides the clock stamping records and traces.
func (e *Emitter) WithClock(now func() time.Time) *Emitter {
	e.now = now
	return e
}

// Emit writes msg as one line.
func (e *Emitter) Emit(msg *Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(msg); err != nil {
		return fmt.Errorf("emit %s: %w", msg.Type, err)
	}
	if msg.Type == TypeRecord {
		e.records++
	}
	return nil
}

// EmitSpec writes a SPEC message.
func (e *Emitter) EmitSpec(spec *ConnectorSpecification) error {
	return e.Emit(&Message{Type: TypeSpec, Spec: spec})
}

// EmitConnectionStatus writes a CONNECTION_STATUS message.
func (e *Emitter) EmitConnectionStatus(status ConnectionStatus) error {
	return e.Emit(&Message{Type: TypeConnectionStatus, ConnectionStatus: &status})
}

// EmitCatalog writes a CATALOG message.
func (e *Emitter) EmitCatalog(cat *Catalog) error {
	return e.Emit(&Message{Type: TypeCatalog, Catalog: cat})
}

// EmitRecord writes data unmodified as one RECORD of stream.
func (e *Emitter) EmitRecord(stream string, data json.RawMessage) error {
	return e.Emit(&Message{
		Type: TypeRecord,
		Record: &Record{
			Stream:    stream,
			Data:      data,
			EmittedAt: e.now().UnixMilli(),
		},
	})
}

// EmitLog writes a LOG message.
func (e *Emitter) EmitLog(level LogLevel, message string) error {
	return e.Emit(&Message{Type: TypeLog, Log: &Log{Level: level, Message: message}})
}

// EmitError writes an error TRACE for err.
func (e *Emitter) EmitError(err error, failure FailureType) error {
	return e.Emit(&Message{
		Type: TypeTrace,
		Trace: &Trace{
			Type:      "ERROR",
			EmittedAt: float64(e.now().UnixMilli()),
			Error: &TraceError{
				Message:         err.Error(),
				InternalMessage: fmt.Sprintf("%+v", err),
				FailureType:     failure,
			},
		},
	})
}

// Records returns how many RECORD messages were written.
func (e *Emitter) Records() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.records
}
