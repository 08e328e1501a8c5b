package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookiesCommands(t *testing.T) {
	var (
		mu         sync.Mutex
		lastCookie string
	)
	sent := func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastCookie
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastCookie = r.Header.Get("Cookie")
		mu.Unlock()
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		}
	}))
	defer server.Close()

	dir := t.TempDir()

	_, _, err := runCLI(t, dir, "get", server.URL+"/login", "-o", "json")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, dir, "cookies", "list", "-o", "json")
	require.NoError(t, err)
	list := decodeJSON(t, stdout)["cookies"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "session", list[0].(map[string]interface{})["name"])
	assert.Equal(t, "127.0.0.1", list[0].(map[string]interface{})["domain"])

	_, _, err = runCLI(t, dir, "cookies", "add", "--name", "extra", "--value", "1", "--domain", "127.0.0.1", "--expires", "1h")
	require.NoError(t, err)

	_, _, err = runCLI(t, dir, "get", server.URL+"/profile", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, sent(), "session=abc")
	assert.Contains(t, sent(), "extra=1")

	_, _, err = runCLI(t, dir, "cookies", "delete", "--domain", "127.0.0.1", "--name", "session")
	require.NoError(t, err)

	_, _, err = runCLI(t, dir, "get", server.URL+"/profile", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "extra=1", sent())

	_, _, err = runCLI(t, dir, "cookies", "clear")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, dir, "cookies", "list")
	require.NoError(t, err)
	assert.Equal(t, "No cookies stored\n", stdout)
}

func TestCookiesAddRequiresNameAndDomain(t *testing.T) {
	_, stderr, err := runCLI(t, t.TempDir(), "cookies", "add", "--name", "a")
	require.Error(t, err)
	assert.Contains(t, stderr, `"domain" not set`)
}

func TestParseHeader(t *testing.T) {
	kv, err := parseHeader("Content-Type:  application/json ")
	require.NoError(t, err)
	assert.Equal(t, "Content-Type", kv.Key)
	assert.Equal(t, "application/json", kv.Value)
	assert.True(t, kv.Enabled)

	kv, err = parseHeader("X-Url: http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", kv.Value)

	_, err = parseHeader("missing-separator")
	assert.Error(t, err)
}

func TestParseQuery(t *testing.T) {
	kv, err := parseQuery("filter=a=b")
	require.NoError(t, err)
	assert.Equal(t, "filter", kv.Key)
	assert.Equal(t, "a=b", kv.Value)

	kv, err = parseQuery("empty=")
	require.NoError(t, err)
	assert.Equal(t, "", kv.Value)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseQuery(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com/a", normalizeURL("example.com/a"))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
	assert.Equal(t, "http://localhost:8080", normalizeURL("localhost:8080"))
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	at, err := parseExpiry("2030-05-06T07:08:09Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC), at)

	at, err = parseExpiry("90m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*time.Minute), at)

	at, err = parseExpiry("2 hours", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(2*time.Hour), at)

	_, err = parseExpiry("tomorrow", now)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid expiry"))
}
