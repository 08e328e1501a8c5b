package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/trace"
)

// Dispatcher executes built requests over a fresh HTTP/1.1 transport per
// request, so every request is measured from DNS lookup onwards.
type Dispatcher struct {
	// RootCAs overrides the platform trust store when non-nil.
	RootCAs *x509.CertPool

	logger zerolog.Logger
}

// Exchange is an in-flight response. Close must always be called.
type Exchange struct {
	Response *http.Response

	transport *http.Transport
	conn      *connState
	rec       *trace.Recorder
}

// RemoteAddr returns the address of the peer the request was sent to.
func (x *Exchange) RemoteAddr() string {
	return x.conn.remoteAddr()
}

// ReadBody reads the whole response body, mapping stage timeouts.
func (x *Exchange) ReadBody() ([]byte, error) {
	buf, err := io.ReadAll(x.Response.Body)
	if err != nil {
		return nil, classify(err, x.conn, x.rec)
	}
	return buf, nil
}

// Close releases the body and the connection.
func (x *Exchange) Close() {
	if x.Response != nil {
		x.Response.Body.Close()
	}
	x.transport.CloseIdleConnections()
}

// Dispatch sends req and returns once response headers have arrived. The
// recorder receives phase hooks for the whole exchange.
func (d *Dispatcher) Dispatch(req *http.Request, budget Timeout, rec *trace.Recorder) (*Exchange, error) {
	state := &connState{}

	var transport *http.Transport
	if req.URL.Scheme == "https" {
		rec.MarkTLS()
		transport = d.newTLSTransport(budget, state)
	} else {
		transport = d.newPlainTransport(budget, state)
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ctx := trace.WithRecorder(req.Context(), rec)
	// Read and write budgets start once the connection is ready for HTTP;
	// until then the dial and TLS handshake run under the connect budget.
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { state.markReady() },
	})
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, classify(err, state, rec)
	}

	d.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Str("remote", state.remoteAddr()).
		Msg("response headers received")

	return &Exchange{Response: resp, transport: transport, conn: state, rec: rec}, nil
}

func (d *Dispatcher) newPlainTransport(budget Timeout, state *connState) *http.Transport {
	return &http.Transport{
		DialContext:        dialer(budget, state),
		DisableCompression: true,
		// HTTP/1.1 only.
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
}

func (d *Dispatcher) newTLSTransport(budget Timeout, state *connState) *http.Transport {
	t := d.newPlainTransport(budget, state)
	t.TLSClientConfig = &tls.Config{
		RootCAs:    d.RootCAs,
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
	}
	t.TLSHandshakeTimeout = budget.Connect
	return t
}

func dialer(budget Timeout, state *connState) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: budget.Connect}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			if isTimeout(err) {
				state.timedOut(apierror.StageConnect)
			}
			return nil, err
		}
		state.connected(conn.RemoteAddr())
		return &deadlineConn{Conn: conn, read: budget.Read, write: budget.Write, state: state}, nil
	}
}

// connState tracks what the dialer and connection observed for one request.
type connState struct {
	mu     sync.Mutex
	remote string
	stage  apierror.Stage
	ready  bool
}

func (s *connState) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

func (s *connState) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *connState) connected(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != nil {
		s.remote = addr.String()
	}
}

func (s *connState) timedOut(stage apierror.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == "" {
		s.stage = stage
	}
}

func (s *connState) remoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

func (s *connState) elapsedStage() apierror.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// deadlineConn arms a fresh deadline before every read and write once the
// connection is ready, so the budgets bound each I/O wait rather than the
// whole exchange.
type deadlineConn struct {
	net.Conn
	read, write time.Duration
	state       *connState
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 && c.state.isReady() {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	n, err := c.Conn.Read(p)
	if err != nil && isTimeout(err) && c.state.isReady() {
		c.state.timedOut(apierror.StageRead)
	}
	return n, err
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 && c.state.isReady() {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	n, err := c.Conn.Write(p)
	if err != nil && isTimeout(err) && c.state.isReady() {
		c.state.timedOut(apierror.StageWrite)
	}
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify maps a transport failure onto the error taxonomy. Timeouts are
// attributed to the stage whose budget elapsed when the connection saw it;
// otherwise a timeout before the connection was ready counts as connect.
func classify(err error, state *connState, rec *trace.Recorder) error {
	if stage := state.elapsedStage(); stage != "" {
		return apierror.Timeout(stage, err)
	}
	if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		if !rec.Observed(trace.EventHandshakeDone) {
			return apierror.Timeout(apierror.StageConnect, err)
		}
		return apierror.Timeout("", err)
	}
	return apierror.New(apierror.CategoryTransport, fmt.Errorf("request failed: %w", err))
}
