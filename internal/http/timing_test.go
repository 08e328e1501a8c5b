package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/riposte/internal/trace"
)

func TestTiming_ServerProcessing(t *testing.T) {
	delay := 100 * time.Millisecond
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result, err := NewEngine(nil).Execute(context.Background(), "", Descriptor{URI: server.URL}, Timeout{})
	require.NoError(t, err)

	stats := result.Stats
	assert.GreaterOrEqual(t, stats.Durations[trace.PhaseServerProcessing], delay)
	assert.GreaterOrEqual(t, stats.ServerProcessing, delay.Milliseconds())
	assert.GreaterOrEqual(t, stats.Total, stats.ServerProcessing)

	// IP literal targets skip the resolver.
	assert.Zero(t, stats.DNSLookup)
	assert.Zero(t, stats.Durations[trace.PhaseDNSLookup])
	assert.Zero(t, stats.TLS)
}

func TestTiming_ContentTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("second"))
	}))
	defer server.Close()

	result, err := NewEngine(nil).Execute(context.Background(), "", Descriptor{URI: server.URL}, Timeout{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Stats.Durations[trace.PhaseContentTransfer], 50*time.Millisecond)

	body, err := result.BodyBytes()
	require.NoError(t, err)
	assert.Equal(t, "firstsecond", string(body))
}

func TestTiming_PhasesArePresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	result, err := NewEngine(nil).Execute(context.Background(), "", Descriptor{URI: server.URL}, Timeout{})
	require.NoError(t, err)

	for _, p := range []trace.Phase{trace.PhaseTCP, trace.PhaseSend, trace.PhaseServerProcessing, trace.PhaseContentTransfer, trace.PhaseTotal} {
		assert.Contains(t, result.Stats.Durations, p)
	}
	// An IP literal over plain http has no lookup and no handshake.
	assert.NotContains(t, result.Stats.Durations, trace.PhaseDNSLookup)
	assert.NotContains(t, result.Stats.Durations, trace.PhaseTLS)
	assert.Greater(t, result.Stats.Durations[trace.PhaseTotal], time.Duration(0))
	assert.Greater(t, result.Stats.Durations[trace.PhaseTCP], time.Duration(0))
}

func TestTiming_IndependentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(80 * time.Millisecond)
		}
	}))
	defer server.Close()

	engine := NewEngine(nil)
	done := make(chan *Result, 2)
	for _, path := range []string{"/slow", "/fast"} {
		go func(path string) {
			result, err := engine.Execute(context.Background(), path, Descriptor{URI: server.URL + path}, Timeout{})
			if err != nil {
				done <- nil
				return
			}
			done <- result
		}(path)
	}

	results := map[string]*Result{}
	for i := 0; i < 2; i++ {
		r := <-done
		require.NotNil(t, r)
		results[r.API] = r
	}

	assert.GreaterOrEqual(t, results["/slow"].Stats.Durations[trace.PhaseServerProcessing], 80*time.Millisecond)
	assert.Less(t, results["/fast"].Stats.Durations[trace.PhaseServerProcessing], 80*time.Millisecond)
}
