// Package httpproxy is the default Network Proxy implementation, backed by
// elazarl/goproxy. It serves a rule-based HTTP mock: requests whose method
// and URL match a configured rule are answered with a canned response
// instead of being forwarded to the real network.
package httpproxy

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/flow-orchestra/pkg/proxy"
)

// ruleFile is the on-disk YAML shape MockNetwork's rule path is parsed as.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Method     string            `yaml:"method"`
	URL        string            `yaml:"url"`
	StatusCode int               `yaml:"statusCode"`
	Headers    map[string]string `yaml:"headers"`
	Body       string            `yaml:"body"`
}

// LoadRulesFile parses a MockNetwork rule file into proxy.Rule values,
// assigning each a fresh id and defaulting a missing status code to 200.
func LoadRulesFile(path string) ([]proxy.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock rules %s: %w", path, err)
	}

	var parsed ruleFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse mock rules %s: %w", path, err)
	}

	rules := make([]proxy.Rule, 0, len(parsed.Rules))
	for _, e := range parsed.Rules {
		status := e.StatusCode
		if status == 0 {
			status = 200
		}
		rules = append(rules, proxy.Rule{
			ID:         uuid.NewString(),
			Method:     strings.ToUpper(e.Method),
			URLPattern: e.URL,
			Response: proxy.RuleResponse{
				StatusCode: status,
				Headers:    e.Headers,
				Body:       e.Body,
			},
		})
	}
	return rules, nil
}

// matchPattern reports whether url satisfies a wildcard pattern ("*" segments
// match any run of characters), grounded on the reference proxy's
// MatchPattern helper.
func matchPattern(url, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return url == pattern
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(url[pos:], part)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(url, last) {
		return false
	}
	return true
}
