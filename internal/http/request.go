package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/wesleyorama2/riposte/internal/apierror"
)

// acceptEncoding is sent on every request; the response processor decodes both.
const acceptEncoding = "gzip, br"

const multipartFormData = "multipart/form-data"

// KV is an ordered key/value entry that can be switched off without being
// removed from the descriptor.
type KV struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Timeout holds independent budgets for each I/O stage. Zero disables a budget.
type Timeout struct {
	Connect time.Duration `json:"connect" yaml:"connect"`
	Write   time.Duration `json:"write" yaml:"write"`
	Read    time.Duration `json:"read" yaml:"read"`
}

// Or returns t with every zero budget taken from fallback.
func (t Timeout) Or(fallback Timeout) Timeout {
	if t.Connect == 0 {
		t.Connect = fallback.Connect
	}
	if t.Write == 0 {
		t.Write = fallback.Write
	}
	if t.Read == 0 {
		t.Read = fallback.Read
	}
	return t
}

// Descriptor is a declarative, fully resolved request.
type Descriptor struct {
	Method      string  `json:"method" yaml:"method"`
	URI         string  `json:"uri" yaml:"uri"`
	Query       []KV    `json:"query,omitempty" yaml:"query,omitempty"`
	Headers     []KV    `json:"headers,omitempty" yaml:"headers,omitempty"`
	ContentType string  `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Body        string  `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout     Timeout `json:"timeout" yaml:"timeout"`
}

// CookieSource supplies the Cookie header for an outbound URL.
type CookieSource interface {
	Header(u *url.URL) (string, error)
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodConnect: true,
	http.MethodPatch:   true,
	http.MethodTrace:   true,
}

// NormalizeMethod upper-cases method and maps anything unrecognized to GET.
func NormalizeMethod(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	if knownMethods[m] {
		return m
	}
	return http.MethodGet
}

// Build turns d into a wire request bound to ctx. It returns the resolved URL
// (base URL plus enabled query parameters) alongside the request.
func Build(ctx context.Context, d Descriptor, jar CookieSource) (*http.Request, *url.URL, error) {
	method := NormalizeMethod(d.Method)

	u, err := resolveURL(d.URI, d.Query)
	if err != nil {
		return nil, nil, err
	}

	body, err := decodeRequestBody(d.ContentType, d.Body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, apierror.New(apierror.CategoryInvalidURL, err)
	}

	contentTypeSet := false
	for _, h := range d.Headers {
		if !h.Enabled {
			continue
		}
		if !httpguts.ValidHeaderFieldName(h.Key) {
			return nil, nil, apierror.Newf(apierror.CategoryInvalidHeader, "invalid header name %q", h.Key)
		}
		if !httpguts.ValidHeaderFieldValue(h.Value) {
			return nil, nil, apierror.Newf(apierror.CategoryInvalidHeader, "invalid value for header %q", h.Key)
		}
		if strings.EqualFold(h.Key, "Host") {
			req.Host = h.Value
			continue
		}
		if strings.EqualFold(h.Key, "Content-Type") {
			contentTypeSet = true
		}
		req.Header.Add(h.Key, h.Value)
	}

	if !contentTypeSet && d.ContentType != "" {
		if !httpguts.ValidHeaderFieldValue(d.ContentType) {
			return nil, nil, apierror.Newf(apierror.CategoryInvalidHeader, "invalid content type %q", d.ContentType)
		}
		req.Header.Set("Content-Type", d.ContentType)
	}

	req.Header.Set("Accept-Encoding", acceptEncoding)

	if jar != nil {
		cookie, err := jar.Header(u)
		if err != nil {
			return nil, nil, err
		}
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}

	return req, u, nil
}

// resolveURL parses base and appends the enabled query parameters in order,
// keeping any query already present in base.
func resolveURL(base string, query []KV) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, apierror.New(apierror.CategoryInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apierror.Newf(apierror.CategoryInvalidURL, "unsupported scheme %q in %q", u.Scheme, base)
	}
	if u.Host == "" {
		return nil, apierror.Newf(apierror.CategoryInvalidURL, "missing host in %q", base)
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, q := range query {
		if !q.Enabled {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(q.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.Value))
	}
	u.RawQuery = b.String()
	return u, nil
}

// decodeRequestBody returns the raw body bytes. Multipart bodies arrive base64
// encoded; padding is optional.
func decodeRequestBody(contentType, body string) ([]byte, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), multipartFormData) {
		return []byte(body), nil
	}
	buf, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
	if err != nil {
		return nil, apierror.New(apierror.CategoryInvalidBody, fmt.Errorf("decode multipart body: %w", err))
	}
	return buf, nil
}
