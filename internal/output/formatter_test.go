package output

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/cookies"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/summary"
	"github.com/wesleyorama2/riposte/internal/trace"
)

func testResult(body string) *http.Result {
	return &http.Result{
		API:     "a1",
		Latency: 42,
		Status:  200,
		Headers: map[string][]string{
			"content-type": {"application/json"},
			"set-cookie":   {"a=1", "b=2"},
		},
		Body:     base64.RawStdEncoding.EncodeToString([]byte(body)),
		BodySize: len(body),
		Stats: trace.Stats{
			RemoteAddr:       "127.0.0.1:8080",
			IsHTTPS:          true,
			Cipher:           "TLS_AES_128_GCM_SHA256",
			DNSLookup:        1,
			TCP:              2,
			TLS:              3,
			Send:             4,
			ServerProcessing: 30,
			ContentTransfer:  2,
			Total:            42,
		},
	}
}

func TestFormatter_FormatRequest(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/users?page=1")
	d := http.Descriptor{
		Headers: []http.KV{
			{Key: "Accept", Value: "application/json", Enabled: true},
			{Key: "X-Off", Value: "nope", Enabled: false},
		},
		Body: `{"name":"x"}`,
	}

	out := NewFormatter(false, true).FormatRequest("GET", u, d)
	assert.Contains(t, out, "▶ REQUEST: GET https://api.example.com/users?page=1")
	assert.Contains(t, out, "Accept: application/json")
	assert.NotContains(t, out, "X-Off")
	assert.NotContains(t, out, "Body:")

	verbose := NewFormatter(true, true).FormatRequest("POST", u, d)
	assert.Contains(t, verbose, "Body:")
	assert.Contains(t, verbose, `"name": "x"`)
}

func TestFormatter_FormatResult(t *testing.T) {
	r := testResult(`{"id":1}`)

	out := NewFormatter(false, true).FormatResult(r)
	assert.Contains(t, out, "◀ RESPONSE: 200 OK (42ms)")
	assert.Contains(t, out, `"id": 1`)
	assert.NotContains(t, out, "Timing:")
	assert.NotContains(t, out, "set-cookie")

	verbose := NewFormatter(true, true).FormatResult(r)
	assert.Contains(t, verbose, "Remote Address:  127.0.0.1:8080")
	assert.Contains(t, verbose, "Cipher:          TLS_AES_128_GCM_SHA256")
	assert.Contains(t, verbose, "Server Processing: 30ms")
	assert.Contains(t, verbose, "set-cookie: a=1")
	assert.Contains(t, verbose, "set-cookie: b=2")
	assert.Less(t, strings.Index(verbose, "content-type"), strings.Index(verbose, "set-cookie"))
}

func TestFormatter_BinaryBodyAndWarnings(t *testing.T) {
	r := testResult(string([]byte{0xff, 0xfe, 0x00}))
	r.Warnings = []*apierror.Error{apierror.Newf(apierror.CategoryCookiePersistence, "disk full")}

	out := NewFormatter(false, true).FormatResult(r)
	assert.Contains(t, out, "<3 bytes of binary data>")
	assert.Contains(t, out, "⚠ cookiePersistence: disk full")
}

func TestFormatter_FormatError(t *testing.T) {
	f := NewFormatter(false, true)

	out := f.FormatError(apierror.Timeout(apierror.StageRead, errors.New("i/o timeout")))
	assert.Equal(t, "✗ timeout (read): i/o timeout\n", out)

	assert.Equal(t, "✗ boom\n", f.FormatError(errors.New("boom")))
}

func TestFormatter_FormatCookies(t *testing.T) {
	f := NewFormatter(false, true)
	assert.Equal(t, "No cookies stored\n", f.FormatCookies(nil))

	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	out := f.FormatCookies([]cookies.Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", HostOnly: true, Secure: true},
		{Name: "pref", Value: "dark", Domain: "example.com", Path: "/app", Expires: &expires},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "DOMAIN"))
	assert.Contains(t, lines[1], "session")
	assert.Contains(t, lines[1], "host-only,secure")
	assert.Contains(t, lines[2], "2030-01-02T03:04:05Z")
}

func TestFormatter_FormatSummary(t *testing.T) {
	r := summary.Report{
		Runs:     3,
		Failures: 1,
		Statuses: map[int]int64{200: 2},
		Errors:   map[apierror.Category]int64{apierror.CategoryTimeout: 1},
		Phases: []summary.PhaseStats{
			{Phase: trace.PhaseTotal, Min: time.Millisecond, Mean: 2 * time.Millisecond, P50: 2 * time.Millisecond, P90: 3 * time.Millisecond, P99: 3 * time.Millisecond, Max: 3 * time.Millisecond},
		},
	}

	out := NewFormatter(false, true).FormatSummary(r)
	assert.Contains(t, out, "Runs: 3  Failures: 1")
	assert.Contains(t, out, "200×2")
	assert.Contains(t, out, "timeout×1")
	assert.Contains(t, out, "P99")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "3.00ms")
}
