package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/riposte/internal/http"
)

// methodCommands are the HTTP methods exposed as direct subcommands.
var methodCommands = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// hasBody reports whether the method subcommand accepts a request body.
func hasBody(method string) bool {
	switch method {
	case "post", "put", "patch":
		return true
	}
	return false
}

func newMethodCmd(a *app, method string) *cobra.Command {
	var (
		opts        executionOptions
		headers     []string
		query       []string
		data        string
		jsonData    string
		contentType string
	)

	upper := strings.ToUpper(method)
	cmd := &cobra.Command{
		Use:   method + " URL",
		Short: fmt.Sprintf("Make a %s request to the specified URL", upper),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := http.Descriptor{
				Method:      upper,
				URI:         normalizeURL(args[0]),
				ContentType: contentType,
			}

			for _, h := range headers {
				kv, err := parseHeader(h)
				if err != nil {
					return err
				}
				d.Headers = append(d.Headers, kv)
			}
			for _, q := range query {
				kv, err := parseQuery(q)
				if err != nil {
					return err
				}
				d.Query = append(d.Query, kv)
			}

			switch {
			case data != "":
				d.Body = data
			case jsonData != "":
				d.Body = jsonData
				if d.ContentType == "" {
					d.ContentType = "application/json"
				}
			}

			return a.run(cmd, uuid.NewString(), d, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "HTTP headers to include (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter name=value (can be used multiple times)")
	if hasBody(method) {
		cmd.Flags().StringVarP(&data, "data", "d", "", "Data to send in the request body")
		cmd.Flags().StringVarP(&jsonData, "json", "j", "", "JSON data to send in the request body")
		cmd.Flags().StringVar(&contentType, "content-type", "", "Content type of the request body")
	}
	addExecutionFlags(cmd, &opts)
	return cmd
}

// normalizeURL adds http:// to bare host names.
func normalizeURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

func parseHeader(h string) (http.KV, error) {
	parts := strings.SplitN(h, ":", 2)
	if len(parts) != 2 {
		return http.KV{}, fmt.Errorf("invalid header %q (want 'Name: value')", h)
	}
	return http.KV{Key: strings.TrimSpace(parts[0]), Value: strings.TrimSpace(parts[1]), Enabled: true}, nil
}

func parseQuery(q string) (http.KV, error) {
	parts := strings.SplitN(q, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return http.KV{}, fmt.Errorf("invalid query parameter %q (want name=value)", q)
	}
	return http.KV{Key: parts[0], Value: parts[1], Enabled: true}, nil
}
