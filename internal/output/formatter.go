package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/cookies"
	riposte "github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/summary"
)

// Formatter is responsible for formatting requests and results in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		colors:  colors,
	}
}

// FormatRequest formats a request for display
func (f *Formatter) FormatRequest(method string, u *url.URL, d riposte.Descriptor) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n", f.colors.Method.Sprint(method), f.colors.URL.Sprint(u.String())))

	var headers []riposte.KV
	for _, h := range d.Headers {
		if h.Enabled {
			headers = append(headers, h)
		}
	}
	if len(headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, h := range headers {
			buf.WriteString(fmt.Sprintf("    %s: %s\n", f.colors.HeaderKey.Sprint(h.Key), h.Value))
		}
	}

	if f.Verbose && d.Body != "" {
		buf.WriteString("  Body: ")
		buf.WriteString(formatJSONString(d.Body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResult formats a result for display
func (f *Formatter) FormatResult(r *riposte.Result) string {
	var buf strings.Builder

	status := fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status))
	buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%dms)\n", f.colors.Status(r.Status).Sprint(strings.TrimSpace(status)), r.Latency))

	if f.Verbose {
		s := r.Stats
		buf.WriteString("  Connection:\n")
		buf.WriteString(fmt.Sprintf("    Remote Address:  %s\n", s.RemoteAddr))
		if s.IsHTTPS {
			buf.WriteString(fmt.Sprintf("    Cipher:          %s\n", s.Cipher))
		}
		buf.WriteString("  Timing:\n")
		rows := []struct {
			label string
			ms    int64
		}{
			{"DNS Lookup", s.DNSLookup},
			{"TCP Connection", s.TCP},
			{"TLS Handshake", s.TLS},
			{"Send", s.Send},
			{"Server Processing", s.ServerProcessing},
			{"Content Transfer", s.ContentTransfer},
			{"Total", s.Total},
		}
		for _, row := range rows {
			buf.WriteString(fmt.Sprintf("    %-18s %s\n", row.label+":", f.colors.Phase.Sprintf("%dms", row.ms)))
		}

		buf.WriteString("  Headers:\n")
		names := make([]string, 0, len(r.Headers))
		for name := range r.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, value := range r.Headers[name] {
				buf.WriteString(fmt.Sprintf("    %s: %s\n", f.colors.HeaderKey.Sprint(name), f.colors.HeaderValue.Sprint(value)))
			}
		}
	}

	for _, w := range r.Warnings {
		buf.WriteString(fmt.Sprintf("  %s %s\n", WarningIcon(f.NoColor), f.colors.Warning.Sprint(w.Error())))
	}

	body, err := r.BodyBytes()
	if err == nil && len(body) > 0 {
		buf.WriteString(fmt.Sprintf("  Body (%d bytes received):\n", r.BodySize))
		if utf8.Valid(body) {
			buf.WriteString(formatJSONString(string(body)))
		} else {
			buf.WriteString(f.colors.Muted.Sprintf("  <%d bytes of binary data>", len(body)))
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatError formats an execution failure
func (f *Formatter) FormatError(err error) string {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s %s\n", ErrorIcon(f.NoColor), f.colors.Error.Sprint(apiErr.Error()))
	}
	return fmt.Sprintf("%s %s\n", ErrorIcon(f.NoColor), f.colors.Error.Sprint(err.Error()))
}

// FormatCookies formats the jar contents as a table
func (f *Formatter) FormatCookies(list []cookies.Cookie) string {
	if len(list) == 0 {
		return f.colors.Muted.Sprint("No cookies stored") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tPATH\tNAME\tVALUE\tEXPIRES\tFLAGS")
	for _, c := range list {
		expires := "session"
		if c.Expires != nil {
			expires = c.Expires.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Domain, c.Path, c.Name, c.Value, expires, cookieFlags(c))
	}
	w.Flush()
	return buf.String()
}

func cookieFlags(c cookies.Cookie) string {
	var flags []string
	if c.HostOnly {
		flags = append(flags, "host-only")
	}
	if c.Secure {
		flags = append(flags, "secure")
	}
	if c.HTTPOnly {
		flags = append(flags, "http-only")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

// FormatSummary formats repeat percentiles as a table
func (f *Formatter) FormatSummary(r summary.Report) string {
	var buf bytes.Buffer

	buf.WriteString(f.colors.Highlight.Sprint("Summary") + "\n")
	buf.WriteString(fmt.Sprintf("  Runs: %d  Failures: %d  Bytes: %d\n", r.Runs, r.Failures, r.TotalBytes))

	if codes := r.StatusCodes(); len(codes) > 0 {
		parts := make([]string, len(codes))
		for i, code := range codes {
			parts[i] = fmt.Sprintf("%s×%d", f.colors.Status(code).Sprint(code), r.Statuses[code])
		}
		buf.WriteString("  Statuses: " + strings.Join(parts, "  ") + "\n")
	}

	if len(r.Errors) > 0 {
		categories := make([]string, 0, len(r.Errors))
		for c := range r.Errors {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		for _, c := range categories {
			buf.WriteString(fmt.Sprintf("  %s %s×%d\n", ErrorIcon(f.NoColor), c, r.Errors[apierror.Category(c)]))
		}
	}

	if len(r.Phases) == 0 {
		return buf.String()
	}

	buf.WriteString("\n")
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PHASE\tMIN\tMEAN\tP50\tP90\tP99\tMAX\t")
	for _, p := range r.Phases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Phase, ms(p.Min), ms(p.Mean), ms(p.P50), ms(p.P90), ms(p.P99), ms(p.Max))
	}
	w.Flush()
	return buf.String()
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return "  " + prettyJSON.String()
}
