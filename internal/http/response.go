package http

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/trace"
)

// Result is the outcome of one executed request.
type Result struct {
	// API echoes the caller supplied identifier.
	API string `json:"api" yaml:"api"`

	// Latency equals Stats.Total in milliseconds.
	Latency int64 `json:"latency" yaml:"latency"`

	Status int `json:"status" yaml:"status"`

	// Headers maps lower-cased names to values in arrival order.
	Headers map[string][]string `json:"headers" yaml:"headers"`

	// Body is the decoded body, base64 encoded without padding.
	Body string `json:"body" yaml:"body"`

	// BodySize is the size of the body as received, before decompression.
	BodySize int `json:"bodySize" yaml:"bodySize"`

	Stats trace.Stats `json:"stats" yaml:"stats"`

	// Warnings holds non-fatal failures, such as a cookie jar that could
	// not be saved after a successful exchange.
	Warnings []*apierror.Error `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// BodyBytes returns the decoded body.
func (r *Result) BodyBytes() ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(r.Body)
}

// Header returns the first value of the named header.
func (r *Result) Header(name string) string {
	values := r.Headers[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// IsSuccess returns true if the status code is in the 2xx range.
func (r *Result) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsRedirect returns true if the status code is in the 3xx range.
func (r *Result) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// CookieSink persists cookies received in a response.
type CookieSink interface {
	SetFromResponse(u *url.URL, lines []string) error
}

// process turns an exchange into a Result. Cookies are stored before the body
// is read; the trace is closed before decompression so that decoding cost is
// not reported as network time.
func process(api string, u *url.URL, x *Exchange, jar CookieSink, rec *trace.Recorder) (*Result, error) {
	resp := x.Response

	headers := make(map[string][]string, len(resp.Header))
	for name, values := range resp.Header {
		key := strings.ToLower(name)
		headers[key] = append(headers[key], values...)
	}

	result := &Result{
		API:     api,
		Status:  resp.StatusCode,
		Headers: headers,
	}

	if lines := headers["set-cookie"]; len(lines) > 0 && jar != nil {
		if err := jar.SetFromResponse(u, lines); err != nil {
			result.Warnings = append(result.Warnings, asCookieError(err))
		}
	}

	raw, err := x.ReadBody()
	if err != nil {
		return nil, err
	}
	rec.Done()

	result.BodySize = len(raw)

	body, err := decodeBody(contentEncodings(headers), raw)
	if err != nil {
		return nil, err
	}
	result.Body = base64.RawStdEncoding.EncodeToString(body)

	result.Stats = rec.Stats()
	result.Stats.RemoteAddr = x.RemoteAddr()
	result.Latency = result.Stats.Total

	return result, nil
}

// contentEncodings lists the codings applied to the body, in the order they
// were applied. Repeated headers and comma separated values are merged and
// identity is dropped.
func contentEncodings(headers map[string][]string) []string {
	var out []string
	for _, value := range headers["content-encoding"] {
		for _, coding := range strings.Split(value, ",") {
			coding = strings.ToLower(strings.TrimSpace(coding))
			if coding != "" && coding != "identity" {
				out = append(out, coding)
			}
		}
	}
	return out
}

// decodeBody removes codings from the last applied to the first. Decoding
// stops at the first coding other than gzip or br, and that layer and the
// ones beneath it are returned as received.
func decodeBody(encodings []string, raw []byte) ([]byte, error) {
	body := raw
	for i := len(encodings) - 1; i >= 0; i-- {
		switch encodings[i] {
		case "gzip", "x-gzip", "br":
		default:
			return body, nil
		}
		out, err := decodeContent(encodings[i], body)
		if err != nil {
			return nil, err
		}
		body = out
	}
	return body, nil
}

// decodeContent reverses a single gzip or br coding. Other codings, and empty
// bodies, pass through unchanged.
func decodeContent(encoding string, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	var r io.Reader
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, apierror.New(apierror.CategoryDecompression, fmt.Errorf("gzip: %w", err))
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(bytes.NewReader(raw))
	default:
		return raw, nil
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, apierror.New(apierror.CategoryDecompression, fmt.Errorf("%s: %w", encoding, err))
	}
	return out, nil
}

func asCookieError(err error) *apierror.Error {
	var e *apierror.Error
	if errors.As(err, &e) {
		return e
	}
	return apierror.New(apierror.CategoryCookiePersistence, err)
}
