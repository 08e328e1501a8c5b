package output

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/riposte/internal/http"
)

var bracketIndex = regexp.MustCompile(`\[(\d+|\*)\]`)
var bracketName = regexp.MustCompile(`\[['"]([^'"]+)['"]\]`)

// Extract returns the value at path in the JSON body of r. path may be a
// JSONPath expression ($.users[0].name) or a native gjson path (users.0.name).
func Extract(r *http.Result, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty extraction path")
	}

	body, err := r.BodyBytes()
	if err != nil {
		return "", fmt.Errorf("undecodable body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty response body")
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("response body is not JSON")
	}

	result := gjson.GetBytes(body, gjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// gjsonPath converts the subset of JSONPath riposte accepts into gjson syntax.
func gjsonPath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	path = bracketName.ReplaceAllString(path, ".$1")
	path = bracketIndex.ReplaceAllStringFunc(path, func(m string) string {
		inner := m[1 : len(m)-1]
		if inner == "*" {
			return ".#"
		}
		return "." + inner
	})
	return strings.TrimPrefix(path, ".")
}
