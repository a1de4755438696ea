// Package proxy defines the Network Proxy port the orchestra reconfigures
// from inside a flow via the MockNetwork command. pkg/proxy/httpproxy is the
// default, goproxy-backed implementation.
package proxy

// Rule is one mock-network rule: requests whose method and URL match are
// answered with Response instead of being forwarded.
type Rule struct {
	ID         string
	Method     string
	URLPattern string
	Response   RuleResponse
}

// RuleResponse is the canned response returned for a matching request.
type RuleResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Proxy is the Network Proxy contract: port, started state, and
// the ability to start-with-rules or replace-rules, loaded from a YAML rule
// file path by the caller (pkg/maestro's MockNetwork handler) before being
// handed to Start/ReplaceRules.
type Proxy interface {
	Port() int
	IsStarted() bool
	Start(rules []Rule) error
	ReplaceRules(rules []Rule) error
}
