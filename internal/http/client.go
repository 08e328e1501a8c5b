package http

import (
	"context"
	"crypto/x509"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/trace"
)

// CookieJar is the cookie store used by the engine.
type CookieJar interface {
	CookieSource
	CookieSink
}

// Observer is notified after every execution, successful or not.
type Observer interface {
	ObserveExecution(method string, result *Result, err error)
}

// Engine executes request descriptors.
// Engine is safe for concurrent use; each execution owns its trace.
type Engine struct {
	jar        CookieJar
	dispatcher *Dispatcher
	observers  []Observer
	logger     zerolog.Logger
}

// Option is a function that configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.dispatcher.logger = logger
	}
}

// WithObserver registers an execution observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithRootCAs replaces the platform trust store for TLS requests.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(e *Engine) {
		e.dispatcher.RootCAs = pool
	}
}

// NewEngine creates an engine backed by jar. A nil jar disables cookies.
func NewEngine(jar CookieJar, options ...Option) *Engine {
	e := &Engine{
		jar:        jar,
		dispatcher: &Dispatcher{logger: zerolog.Nop()},
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Execute builds, sends and processes d. Budgets left at zero in budget fall
// back to the descriptor's own timeouts. Execute returns once the full,
// decoded body is available. Failures are never retried.
func (e *Engine) Execute(ctx context.Context, api string, d Descriptor, budget Timeout) (*Result, error) {
	method := NormalizeMethod(d.Method)
	result, err := e.execute(ctx, api, d, budget.Or(d.Timeout))

	for _, o := range e.observers {
		o.ObserveExecution(method, result, err)
	}

	if err != nil {
		e.logger.Debug().Err(err).Str("api", api).Str("category", string(apierror.CategoryOf(err))).Msg("request failed")
		return nil, err
	}

	for _, w := range result.Warnings {
		e.logger.Warn().Str("api", api).Str("category", string(w.Category)).Msg(w.Message)
	}
	e.logger.Debug().
		Str("api", api).
		Int("status", result.Status).
		Int64("dns", result.Stats.DNSLookup).
		Int64("tcp", result.Stats.TCP).
		Int64("tls", result.Stats.TLS).
		Int64("send", result.Stats.Send).
		Int64("serverProcessing", result.Stats.ServerProcessing).
		Int64("contentTransfer", result.Stats.ContentTransfer).
		Int64("total", result.Stats.Total).
		Msg("request completed")

	return result, nil
}

func (e *Engine) execute(ctx context.Context, api string, d Descriptor, budget Timeout) (*Result, error) {
	var source CookieSource
	var sink CookieSink
	if e.jar != nil {
		source, sink = e.jar, e.jar
	}

	req, u, err := Build(ctx, d, source)
	if err != nil {
		return nil, err
	}

	rec := trace.New()
	x, err := e.dispatcher.Dispatch(req, budget, rec)
	if err != nil {
		return nil, err
	}
	defer x.Close()

	return process(api, u, x, sink, rec)
}

// ResolveURL returns the URL a descriptor would be sent to.
func ResolveURL(d Descriptor) (*url.URL, error) {
	return resolveURL(d.URI, d.Query)
}
