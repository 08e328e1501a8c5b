package trace

import "time"

// Phase is a derived interval of the request lifecycle.
type Phase string

const (
	PhaseDNSLookup        Phase = "dns_lookup"
	PhaseTCP              Phase = "tcp"
	PhaseTLS              Phase = "tls"
	PhaseSend             Phase = "send"
	PhaseServerProcessing Phase = "server_processing"
	PhaseContentTransfer  Phase = "content_transfer"
	PhaseTotal            Phase = "total"
)

type phaseBounds struct {
	phase      Phase
	start, end Event
}

// phases lists every derived interval in reporting order.
var phases = []phaseBounds{
	{PhaseDNSLookup, EventDNSStart, EventDNSDone},
	{PhaseTCP, EventConnectStart, EventConnectDone},
	{PhaseTLS, EventTLSStart, EventTLSDone},
	{PhaseSend, EventHandshakeDone, EventWritten},
	{PhaseServerProcessing, EventWritten, EventFirstByte},
	{PhaseContentTransfer, EventFirstByte, EventDone},
	{PhaseTotal, EventStart, EventDone},
}

// Phases returns every phase in reporting order.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	for i, p := range phases {
		out[i] = p.phase
	}
	return out
}

// Duration returns the length of p, zero when either bound was not observed.
func (r *Recorder) Duration(p Phase) time.Duration {
	for _, b := range phases {
		if b.phase == p {
			return r.Between(b.start, b.end)
		}
	}
	return 0
}

// Stats is the timing report of one request. Durations are whole milliseconds.
type Stats struct {
	RemoteAddr       string `json:"remoteAddr" yaml:"remoteAddr"`
	IsHTTPS          bool   `json:"isHttps" yaml:"isHttps"`
	Cipher           string `json:"cipher" yaml:"cipher"`
	DNSLookup        int64  `json:"dnsLookup" yaml:"dnsLookup"`
	TCP              int64  `json:"tcp" yaml:"tcp"`
	TLS              int64  `json:"tls" yaml:"tls"`
	Send             int64  `json:"send" yaml:"send"`
	ServerProcessing int64  `json:"serverProcessing" yaml:"serverProcessing"`
	ContentTransfer  int64  `json:"contentTransfer" yaml:"contentTransfer"`
	Total            int64  `json:"total" yaml:"total"`

	// Durations keeps full precision for aggregation. Phases whose start or
	// end was not observed, such as tls on a plain request, are absent.
	Durations map[Phase]time.Duration `json:"-" yaml:"-"`
}

// Stats builds the timing report. RemoteAddr is left for the caller.
func (r *Recorder) Stats() Stats {
	d := make(map[Phase]time.Duration, len(phases))
	observed := make(map[Phase]time.Duration, len(phases))
	for _, b := range phases {
		d[b.phase] = r.Between(b.start, b.end)
		if r.Observed(b.start) && r.Observed(b.end) {
			observed[b.phase] = d[b.phase]
		}
	}
	return Stats{
		IsHTTPS:          r.IsTLS(),
		Cipher:           r.Cipher(),
		DNSLookup:        d[PhaseDNSLookup].Milliseconds(),
		TCP:              d[PhaseTCP].Milliseconds(),
		TLS:              d[PhaseTLS].Milliseconds(),
		Send:             d[PhaseSend].Milliseconds(),
		ServerProcessing: d[PhaseServerProcessing].Milliseconds(),
		ContentTransfer:  d[PhaseContentTransfer].Milliseconds(),
		Total:            d[PhaseTotal].Milliseconds(),
		Durations:        observed,
	}
}
