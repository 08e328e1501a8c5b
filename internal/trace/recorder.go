// Package trace records the lifecycle of a single outbound HTTP request.
//
// A Recorder holds one timestamp per lifecycle Event. Timestamps are taken
// from the monotonic clock and stored as offsets from the recorder's origin;
// zero always means "not observed". Events are stamped once and never moved,
// so a retried dial or a second response read cannot rewrite an earlier
// observation.
//
// Each request owns its Recorder. Hooks are attached to the request context
// with WithRecorder, so concurrent requests never share timing state.
package trace

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a named point in the request lifecycle.
type Event int

const (
	// EventStart is stamped when the transport asks for a connection.
	EventStart Event = iota
	EventDNSStart
	EventDNSDone
	EventConnectStart
	EventConnectDone
	EventTLSStart
	EventTLSDone
	// EventHandshakeDone is stamped when the connection is ready for HTTP.
	EventHandshakeDone
	// EventWritten is stamped once the whole request has been flushed.
	EventWritten
	EventFirstByte
	// EventDone is stamped by the caller once the body has been read.
	EventDone

	eventCount
)

var eventNames = [eventCount]string{
	EventStart:         "start",
	EventDNSStart:      "dns_start",
	EventDNSDone:       "dns_done",
	EventConnectStart:  "connect_start",
	EventConnectDone:   "connect_done",
	EventTLSStart:      "tls_start",
	EventTLSDone:       "tls_done",
	EventHandshakeDone: "handshake_done",
	EventWritten:       "written",
	EventFirstByte:     "first_byte",
	EventDone:          "done",
}

func (e Event) String() string {
	if e < 0 || e >= eventCount {
		return "unknown"
	}
	return eventNames[e]
}

// Recorder collects the timestamps of one request.
type Recorder struct {
	origin time.Time
	stamps [eventCount]atomic.Int64
	tls    atomic.Bool

	mu     sync.Mutex
	cipher string

	now func() time.Duration
}

// New returns an empty Recorder.
func New() *Recorder {
	r := &Recorder{origin: time.Now()}
	r.now = func() time.Duration { return time.Since(r.origin) }
	return r
}

// Stamp records the current time for e unless e was already observed.
func (r *Recorder) Stamp(e Event) {
	if e < 0 || e >= eventCount {
		return
	}
	// Offset by one so that an event at the origin is still non-zero.
	r.stamps[e].CompareAndSwap(0, int64(r.now())+1)
}

// Done stamps EventDone.
func (r *Recorder) Done() {
	r.Stamp(EventDone)
}

// Observed reports whether e has been stamped.
func (r *Recorder) Observed(e Event) bool {
	return r.at(e) != 0
}

func (r *Recorder) at(e Event) int64 {
	if e < 0 || e >= eventCount {
		return 0
	}
	return r.stamps[e].Load()
}

// Between returns the time elapsed from start to end, or zero when either
// event was not observed.
func (r *Recorder) Between(start, end Event) time.Duration {
	s, e := r.at(start), r.at(end)
	if s == 0 || e == 0 || e < s {
		return 0
	}
	return time.Duration(e - s)
}

// MarkTLS flags the request as running over TLS.
func (r *Recorder) MarkTLS() {
	r.tls.Store(true)
}

// IsTLS reports whether MarkTLS was called.
func (r *Recorder) IsTLS() bool {
	return r.tls.Load()
}

// SetCipher records the negotiated cipher suite name.
func (r *Recorder) SetCipher(name string) {
	r.mu.Lock()
	r.cipher = name
	r.mu.Unlock()
}

// Cipher returns the negotiated cipher suite name, if any.
func (r *Recorder) Cipher() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cipher
}
