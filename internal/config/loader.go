package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/riposte/internal/http"
)

// File is a request descriptor document as written on disk, in YAML or JSON.
type File struct {
	API         string            `yaml:"api"`
	Method      string            `yaml:"method"`
	URI         string            `yaml:"uri"`
	ContentType string            `yaml:"contentType"`
	Body        string            `yaml:"body"`
	Query       []Pair            `yaml:"query"`
	Headers     []Pair            `yaml:"headers"`
	Timeout     TimeoutFile       `yaml:"timeout"`
	Variables   map[string]string `yaml:"variables"`
}

// Pair is a key/value entry. Entries are enabled unless stated otherwise.
type Pair struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
}

// TimeoutFile holds per-stage budgets as duration strings.
type TimeoutFile struct {
	Connect string `yaml:"connect"`
	Write   string `yaml:"write"`
	Read    string `yaml:"read"`
}

// Request is a loaded descriptor ready for execution.
type Request struct {
	API        string
	Descriptor http.Descriptor
}

// LoadRequest loads and validates a descriptor file. vars override the file's
// own variables; {{name}} placeholders are substituted in the URI, content
// type, body, query and headers.
func LoadRequest(path string, vars map[string]string) (*Request, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("request file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading request file: %w", err)
	}

	return ParseRequest(data, vars)
}

// ParseRequest decodes and validates descriptor document data.
func ParseRequest(data []byte, vars map[string]string) (*Request, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing request file: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("request file is empty")
	}

	doc, err := toJSONDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing request file: %w", err)
	}
	if err := ValidateDescriptor(doc); err != nil {
		return nil, fmt.Errorf("invalid request file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing request file: %w", err)
	}

	return f.Request(MergeVariables(f.Variables, vars))
}

// Request converts the file into an executable request.
func (f *File) Request(vars map[string]string) (*Request, error) {
	timeout, err := f.Timeout.parse()
	if err != nil {
		return nil, err
	}

	api := f.API
	if api == "" {
		api = uuid.NewString()
	}

	return &Request{
		API: api,
		Descriptor: http.Descriptor{
			Method:      f.Method,
			URI:         ProcessVariables(f.URI, vars),
			Query:       pairs(f.Query, vars),
			Headers:     pairs(f.Headers, vars),
			ContentType: ProcessVariables(f.ContentType, vars),
			Body:        ProcessVariables(f.Body, vars),
			Timeout:     timeout,
		},
	}, nil
}

func (t TimeoutFile) parse() (http.Timeout, error) {
	var out http.Timeout
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"connect", t.Connect, &out.Connect},
		{"write", t.Write, &out.Write},
		{"read", t.Read, &out.Read},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := ParseDuration(f.value)
		if err != nil {
			return http.Timeout{}, fmt.Errorf("invalid %s timeout '%s': %w", f.name, f.value, err)
		}
		*f.dst = d
	}
	return out, nil
}

func pairs(in []Pair, vars map[string]string) []http.KV {
	if len(in) == 0 {
		return nil
	}
	out := make([]http.KV, len(in))
	for i, p := range in {
		out[i] = http.KV{
			Key:     ProcessVariables(p.Key, vars),
			Value:   ProcessVariables(p.Value, vars),
			Enabled: p.Enabled == nil || *p.Enabled,
		}
	}
	return out
}

// durationWords maps spelled-out units to Go duration suffixes. Longer words
// come first so that "seconds" is not rewritten as "s" + "s".
var durationWords = []struct{ word, abbrev string }{
	{"milliseconds", "ms"},
	{"millisecond", "ms"},
	{"seconds", "s"},
	{"second", "s"},
	{"minutes", "m"},
	{"minute", "m"},
	{"hours", "h"},
	{"hour", "h"},
}

// ParseDuration parses duration strings like "30s", "5m", "1h" or "2 seconds".
func ParseDuration(duration string) (time.Duration, error) {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}

	if d, err := time.ParseDuration(duration); err == nil {
		return d, nil
	}

	duration = strings.ToLower(duration)
	duration = strings.ReplaceAll(duration, " ", "")
	for _, r := range durationWords {
		duration = strings.ReplaceAll(duration, r.word, r.abbrev)
	}

	return time.ParseDuration(duration)
}

// ProcessVariables replaces {{name}} placeholders in input.
func ProcessVariables(input string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(input, "{{") {
		return input
	}

	// Longer names first keeps substitution independent of map order.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	result := input
	for _, name := range names {
		result = strings.ReplaceAll(result, "{{"+name+"}}", vars[name])
	}
	return result
}

// MergeVariables merges two variable sets, with the second taking precedence
func MergeVariables(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range override {
		result[key] = value
	}
	return result
}
