package trace

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
)

// Signal is a transport lifecycle notification.
type Signal string

// Signals emitted by the net/http client trace hooks.
const (
	SignalGetConn              Signal = "get-conn"
	SignalDNSStart             Signal = "dns-start"
	SignalDNSDone              Signal = "dns-done"
	SignalConnectStart         Signal = "connect-start"
	SignalConnectDone          Signal = "connect-done"
	SignalTLSHandshakeStart    Signal = "tls-handshake-start"
	SignalTLSHandshakeDone     Signal = "tls-handshake-done"
	SignalGotConn              Signal = "got-conn"
	SignalWroteRequest         Signal = "wrote-request"
	SignalGotFirstResponseByte Signal = "got-first-response-byte"
)

// signalEvents maps transport signals to lifecycle events.
var signalEvents = map[Signal]Event{
	SignalGetConn:              EventStart,
	SignalDNSStart:             EventDNSStart,
	SignalDNSDone:              EventDNSDone,
	SignalConnectStart:         EventConnectStart,
	SignalConnectDone:          EventConnectDone,
	SignalTLSHandshakeStart:    EventTLSStart,
	SignalTLSHandshakeDone:     EventTLSDone,
	SignalGotConn:              EventHandshakeDone,
	SignalWroteRequest:         EventWritten,
	SignalGotFirstResponseByte: EventFirstByte,
}

// Observe stamps the event mapped to sig. Unknown signals are ignored and
// reported as false.
func (r *Recorder) Observe(sig Signal) bool {
	e, ok := signalEvents[sig]
	if !ok {
		return false
	}
	r.Stamp(e)
	return true
}

// ClientTrace returns hooks that feed r from the net/http transport.
// Failed DNS lookups, dials and handshakes are not stamped.
func (r *Recorder) ClientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			r.Observe(SignalGetConn)
		},
		DNSStart: func(info httptrace.DNSStartInfo) {
			r.Observe(SignalDNSStart)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if info.Err == nil {
				r.Observe(SignalDNSDone)
			}
		},
		ConnectStart: func(network, addr string) {
			r.Observe(SignalConnectStart)
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				r.Observe(SignalConnectDone)
			}
		},
		TLSHandshakeStart: func() {
			r.Observe(SignalTLSHandshakeStart)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			r.SetCipher(tls.CipherSuiteName(state.CipherSuite))
			r.Observe(SignalTLSHandshakeDone)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			r.Observe(SignalGotConn)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				r.Observe(SignalWroteRequest)
			}
		},
		GotFirstResponseByte: func() {
			r.Observe(SignalGotFirstResponseByte)
		},
	}
}

// WithRecorder returns a context whose outbound requests report to r.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return httptrace.WithClientTrace(ctx, r.ClientTrace())
}
