package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/riposte/internal/apierror"
	"github.com/wesleyorama2/riposte/internal/cookies"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/summary"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(method string, u *url.URL, d http.Descriptor) string
	FormatResult(r *http.Result) string
	FormatError(err error) string
	FormatCookies(list []cookies.Cookie) string
	FormatSummary(r summary.Report) string
}

// RequestData is the structured form of an outgoing request.
type RequestData struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// ErrorData is the structured form of a failed execution.
type ErrorData struct {
	Error *apierror.Error `json:"error" yaml:"error"`
}

func requestData(method string, u *url.URL, d http.Descriptor) RequestData {
	data := RequestData{Method: method, URL: u.String(), Body: d.Body}
	for _, h := range d.Headers {
		if !h.Enabled {
			continue
		}
		if data.Headers == nil {
			data.Headers = make(map[string]string)
		}
		data.Headers[h.Key] = h.Value
	}
	return data
}

func errorData(err error) ErrorData {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return ErrorData{Error: apiErr}
	}
	return ErrorData{Error: &apierror.Error{Message: err.Error()}}
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) marshal(v interface{}) string {
	var data []byte
	var err error
	if f.Pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":{"message":%q}}`, err.Error())
	}
	return string(data) + "\n"
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(method string, u *url.URL, d http.Descriptor) string {
	return f.marshal(map[string]RequestData{"request": requestData(method, u, d)})
}

// FormatResult formats a result as JSON
func (f *JSONFormatter) FormatResult(r *http.Result) string {
	return f.marshal(r)
}

// FormatError formats an error as JSON
func (f *JSONFormatter) FormatError(err error) string {
	return f.marshal(errorData(err))
}

// FormatCookies formats the jar contents as JSON
func (f *JSONFormatter) FormatCookies(list []cookies.Cookie) string {
	if list == nil {
		list = []cookies.Cookie{}
	}
	return f.marshal(map[string][]cookies.Cookie{"cookies": list})
}

// FormatSummary formats a repeat summary as JSON
func (f *JSONFormatter) FormatSummary(r summary.Report) string {
	return f.marshal(map[string]summary.Report{"summary": r})
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) marshal(v interface{}) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error:\n  message: %q\n", err.Error())
	}
	return string(data)
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(method string, u *url.URL, d http.Descriptor) string {
	return f.marshal(map[string]RequestData{"request": requestData(method, u, d)})
}

// FormatResult formats a result as YAML
func (f *YAMLFormatter) FormatResult(r *http.Result) string {
	return f.marshal(r)
}

// FormatError formats an error as YAML
func (f *YAMLFormatter) FormatError(err error) string {
	return f.marshal(errorData(err))
}

// FormatCookies formats the jar contents as YAML
func (f *YAMLFormatter) FormatCookies(list []cookies.Cookie) string {
	if list == nil {
		list = []cookies.Cookie{}
	}
	return f.marshal(map[string][]cookies.Cookie{"cookies": list})
}

// FormatSummary formats a repeat summary as YAML
func (f *YAMLFormatter) FormatSummary(r summary.Report) string {
	return f.marshal(map[string]summary.Report{"summary": r})
}

// GetFormatter returns the appropriate formatter for the given format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return NewFormatter(verbose, noColor)
	}
}
