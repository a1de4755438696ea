package httpproxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/flow-orchestra/pkg/proxy"
)

// Proxy is a rule-based HTTP mock built on goproxy.ProxyHttpServer. Unlike
// the full-featured MITM/breakpoint/rate-limiting proxy it is grounded on,
// this implementation only ever does one thing: match an incoming request
// against the configured rules and, on a hit, short-circuit it with the
// rule's canned response; on a miss, forward it untouched.
type Proxy struct {
	mu      sync.Mutex
	port    int
	rules   []proxy.Rule
	started bool
	server  *goproxy.ProxyHttpServer
	logger  *logrus.Entry
}

// New constructs a Proxy bound to port, logging through logger (nil is
// treated as a no-op logger the way the teacher's constructors tolerate a
// nil *log.Logger).
func New(port int, logger *logrus.Entry) *Proxy {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = logrus.NewEntry(l)
	}
	return &Proxy{port: port, logger: logger}
}

// Port implements proxy.Proxy.
func (p *Proxy) Port() int { return p.port }

// IsStarted implements proxy.Proxy.
func (p *Proxy) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Start implements proxy.Proxy: boots the goproxy HTTP server with rules
// installed, and begins serving on Port in the background.
func (p *Proxy) Start(rules []proxy.Rule) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("httpproxy: already started")
	}
	p.rules = rules
	server := goproxy.NewProxyHttpServer()
	server.Verbose = false
	server.OnRequest().DoFunc(func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		if rule := p.matchRule(r); rule != nil {
			return r, p.mockResponse(r, *rule)
		}
		return r, nil
	})
	p.server = server
	p.started = true
	addr := fmt.Sprintf(":%d", p.port)
	p.mu.Unlock()

	go func() {
		if err := http.ListenAndServe(addr, server); err != nil {
			p.logger.WithError(err).Error("mock network proxy stopped")
		}
	}()
	return nil
}

// ReplaceRules implements proxy.Proxy: swaps the active rule set without
// restarting the listener, matching the orchestra's MockNetwork semantics
// ("idempotently switches between start-with-rules and replace-rules").
func (p *Proxy) ReplaceRules(rules []proxy.Rule) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("httpproxy: not started")
	}
	p.rules = rules
	return nil
}

func (p *Proxy) matchRule(r *http.Request) *proxy.Rule {
	p.mu.Lock()
	defer p.mu.Unlock()

	url := r.URL.String()
	for i := range p.rules {
		rule := p.rules[i]
		if rule.Method != "" && !strings.EqualFold(rule.Method, r.Method) {
			continue
		}
		if !matchPattern(url, rule.URLPattern) {
			continue
		}
		return &rule
	}
	return nil
}

func (p *Proxy) mockResponse(r *http.Request, rule proxy.Rule) *http.Response {
	resp := &http.Response{
		StatusCode: rule.Response.StatusCode,
		Status:     http.StatusText(rule.Response.StatusCode),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(rule.Response.Body)),
		Request:    r,
	}
	for k, v := range rule.Response.Headers {
		resp.Header.Set(k, v)
	}
	return resp
}
