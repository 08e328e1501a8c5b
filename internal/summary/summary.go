// Package summary aggregates repeated executions of one request into
// per-phase latency percentiles.
//
// Durations are recorded into HDR histograms (1µs to 1h, 3 significant
// figures), so percentile queries are O(1) regardless of how many runs were
// recorded.
//
// # Thread Safety
//
// Summary is safe for concurrent use.
package summary

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/trace"
)

const (
	histogramMin     = 1
	histogramMax     = 3600000000 // 1 hour in microseconds
	histogramSigFigs = 3
)

// Summary collects executions.
type Summary struct {
	mu       sync.Mutex
	phases   map[trace.Phase]*hdrhistogram.Histogram
	statuses map[int]int64
	errors   map[apierror.Category]int64
	runs     int64
	failures int64
	bytes    int64
}

// PhaseStats holds the percentiles of one phase.
type PhaseStats struct {
	Phase trace.Phase   `json:"phase" yaml:"phase"`
	Min   time.Duration `json:"min" yaml:"min"`
	Mean  time.Duration `json:"mean" yaml:"mean"`
	P50   time.Duration `json:"p50" yaml:"p50"`
	P90   time.Duration `json:"p90" yaml:"p90"`
	P99   time.Duration `json:"p99" yaml:"p99"`
	Max   time.Duration `json:"max" yaml:"max"`
}

// Report is a point-in-time view of a Summary.
type Report struct {
	Runs       int64                       `json:"runs" yaml:"runs"`
	Failures   int64                       `json:"failures" yaml:"failures"`
	TotalBytes int64                       `json:"totalBytes" yaml:"totalBytes"`
	Statuses   map[int]int64               `json:"statuses" yaml:"statuses"`
	Errors     map[apierror.Category]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
	Phases     []PhaseStats                `json:"phases" yaml:"phases"`
}

// New creates an empty Summary.
func New() *Summary {
	s := &Summary{
		phases:   make(map[trace.Phase]*hdrhistogram.Histogram),
		statuses: make(map[int]int64),
		errors:   make(map[apierror.Category]int64),
	}
	for _, p := range trace.Phases() {
		s.phases[p] = hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	}
	return s
}

// ObserveExecution implements http.Observer so a Summary can be attached to
// an engine directly.
func (s *Summary) ObserveExecution(_ string, result *http.Result, err error) {
	if err != nil {
		s.RecordError(err)
		return
	}
	s.Record(result)
}

// Record adds a successful execution.
func (s *Summary) Record(result *http.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	s.bytes += int64(result.BodySize)
	s.statuses[result.Status]++

	for p, hist := range s.phases {
		d, ok := result.Stats.Durations[p]
		if !ok {
			continue
		}
		// HDR histograms cannot hold values below their minimum.
		v := d.Microseconds()
		if v < histogramMin {
			v = histogramMin
		}
		if v > histogramMax {
			v = histogramMax
		}
		_ = hist.RecordValue(v)
	}
}

// RecordError adds a failed execution.
func (s *Summary) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	s.failures++
	s.errors[apierror.CategoryOf(err)]++
}

// Report returns the current percentiles. Phases with no recorded values are
// omitted.
func (s *Summary) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		Runs:       s.runs,
		Failures:   s.failures,
		TotalBytes: s.bytes,
		Statuses:   make(map[int]int64, len(s.statuses)),
		Errors:     make(map[apierror.Category]int64, len(s.errors)),
	}
	for k, v := range s.statuses {
		r.Statuses[k] = v
	}
	for k, v := range s.errors {
		r.Errors[k] = v
	}

	for _, p := range trace.Phases() {
		hist := s.phases[p]
		if hist.TotalCount() == 0 {
			continue
		}
		r.Phases = append(r.Phases, PhaseStats{
			Phase: p,
			Min:   micros(hist.Min()),
			Mean:  micros(int64(hist.Mean())),
			P50:   micros(hist.ValueAtQuantile(50)),
			P90:   micros(hist.ValueAtQuantile(90)),
			P99:   micros(hist.ValueAtQuantile(99)),
			Max:   micros(hist.Max()),
		})
	}
	return r
}

// StatusCodes returns the observed status codes in ascending order.
func (r Report) StatusCodes() []int {
	codes := make([]int, 0, len(r.Statuses))
	for code := range r.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
