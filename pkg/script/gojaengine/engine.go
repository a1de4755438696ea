// Package gojaengine is the default Script Evaluator Adapter implementation,
// backed by the goja JavaScript runtime. It is the only scripting backend
// the orchestra ships with, but callers only ever see it through the
// script.Engine port.
package gojaengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/flow-orchestra/pkg/script"
)

// scopeFrame records, for every variable first touched while the frame was
// on top of the stack, the value it held beforehand (nil meaning the
// variable was previously unbound). LeaveScope restores each recorded value
// (or unbinds the variable) to bring back exactly the bindings that were
// visible before EnterScope.
type scopeFrame struct {
	saved map[string]*string
}

// Engine wraps a goja.Runtime with the bindings Flow Orchestra scripts
// expect: console, setTimeout/setInterval, json(), http.*, and the maestro
// object exposing copiedText/platform.
type Engine struct {
	mu sync.Mutex

	runtime   *goja.Runtime
	variables map[string]string
	scopes    []scopeFrame

	copiedText string
	platform   string

	logSink script.LogSink
	timers  *timerRegistry
}

// New constructs a ready-to-use Engine.
func New() *Engine {
	e := &Engine{
		variables: make(map[string]string),
	}
	e.Init()
	return e
}

// Init implements script.Engine: it discards all scripting state and
// rebuilds a fresh runtime, the way a flow run starts from a clean slate.
func (e *Engine) Init() {
	e.mu.Lock()
	oldTimers := e.timers
	e.runtime = goja.New()
	e.variables = make(map[string]string)
	e.scopes = nil
	e.copiedText = ""
	e.platform = ""
	e.timers = newTimerRegistry()
	e.mu.Unlock()

	if oldTimers != nil {
		oldTimers.close()
	}

	e.setupBuiltins()
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.setupTimers()
	if err := e.runtime.Set("json", e.jsonFunc()); err != nil {
		panic(err)
	}
	if err := e.runtime.Set("http", e.httpModule()); err != nil {
		panic(err)
	}
	if err := e.runtime.Set("output", map[string]interface{}{}); err != nil {
		panic(err)
	}
	if err := e.runtime.Set("maestro", e.maestroObject()); err != nil {
		panic(err)
	}
}

func (e *Engine) setupConsole() {
	logFunc := func(level script.LogLevel) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			// console.* only runs inside the runtime, where Evaluate or a
			// timer callback already holds e.mu, so the sink is read directly
			if sink := e.logSink; sink != nil {
				sink(script.LogEntry{Level: level, Message: strings.Join(parts, " ")})
			}
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	_ = console.Set("log", logFunc(script.LogInfo))
	_ = console.Set("warn", logFunc(script.LogWarn))
	_ = console.Set("error", logFunc(script.LogError))
	_ = console.Set("debug", logFunc(script.LogDebug))
	if err := e.runtime.Set("console", console); err != nil {
		panic(err)
	}
}

func (e *Engine) emitLog(level script.LogLevel, message string) {
	e.mu.Lock()
	sink := e.logSink
	e.mu.Unlock()
	if sink != nil {
		sink(script.LogEntry{Level: level, Message: message})
	}
}

func (e *Engine) jsonFunc() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		str := call.Arguments[0].String()
		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

func (e *Engine) maestroObject() *goja.Object {
	obj := e.runtime.NewObject()
	// the getters run inside the runtime, where e.mu is already held
	obj.DefineAccessorProperty("copiedText", e.runtime.ToValue(func() string {
		return e.copiedText
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("platform", e.runtime.ToValue(func() string {
		return e.platform
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

// currentVariable reads name's previous bound value, if any.
func (e *Engine) currentVariable(name string) (string, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// rememberForScope records, the first time name is touched under the
// current top frame, what it held before so LeaveScope can restore it.
func (e *Engine) rememberForScope(name string) {
	if len(e.scopes) == 0 {
		return
	}
	top := &e.scopes[len(e.scopes)-1]
	if _, already := top.saved[name]; already {
		return
	}
	if prev, ok := e.currentVariable(name); ok {
		cp := prev
		top.saved[name] = &cp
	} else {
		top.saved[name] = nil
	}
}

// SetVariable implements script.Engine.
func (e *Engine) SetVariable(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rememberForScope(name)
	e.variables[name] = value
	if err := e.runtime.Set(name, value); err != nil {
		panic(err)
	}
}

// SetVariables implements script.Engine.
func (e *Engine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// GetVariable implements script.Engine.
func (e *Engine) GetVariable(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentVariable(name)
}

// EnterScope implements script.Engine.
func (e *Engine) EnterScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scopes = append(e.scopes, scopeFrame{saved: make(map[string]*string)})
}

// LeaveScope implements script.Engine. It panics on an unbalanced call, the
// way an unmatched mutex Unlock would, since it signals a bug in the caller
// rather than a recoverable runtime condition.
func (e *Engine) LeaveScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.scopes) == 0 {
		panic("gojaengine: LeaveScope called with no matching EnterScope")
	}
	top := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]

	for name, prev := range top.saved {
		if prev == nil {
			delete(e.variables, name)
			if err := e.runtime.Set(name, goja.Undefined()); err != nil {
				panic(err)
			}
			continue
		}
		e.variables[name] = *prev
		if err := e.runtime.Set(name, *prev); err != nil {
			panic(err)
		}
	}
}

// ScopeDepth implements script.Engine.
func (e *Engine) ScopeDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scopes)
}

// OnLog implements script.Engine.
func (e *Engine) OnLog(sink script.LogSink) script.LogSink {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.logSink
	e.logSink = sink
	return prev
}

// Sanitize implements script.Engine: escape backslashes and single quotes so
// a value can be embedded inside a `'...'` literal the engine will itself
// evaluate (used by DefineVariables and CopyTextFrom).
func (e *Engine) Sanitize(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// SetCopiedText implements script.Engine.
func (e *Engine) SetCopiedText(text string) {
	e.mu.Lock()
	e.copiedText = text
	e.mu.Unlock()
}

// GetCopiedText implements script.Engine.
func (e *Engine) GetCopiedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copiedText
}

// SetPlatform implements script.Engine.
func (e *Engine) SetPlatform(platform string) {
	e.mu.Lock()
	e.platform = platform
	e.mu.Unlock()
}

// Evaluate implements script.Engine.
func (e *Engine) Evaluate(src string, env map[string]string, sourceName string, runInSubScope bool) (string, error) {
	if runInSubScope {
		e.EnterScope()
		defer e.LeaveScope()
	}
	for k, v := range env {
		e.SetVariable(k, v)
	}

	e.mu.Lock()
	result, err := e.runtime.RunString(src)
	e.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("script error in %s: %w", sourceName, err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return "", nil
	}
	return fmt.Sprintf("%v", result.Export()), nil
}

// ExpandVariables implements script.Engine: scans for ${...} placeholders
// (brace-depth aware, so nested object literals inside an expression do not
// terminate the scan early) and replaces each with its evaluated string.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]
		value, err := e.Evaluate(expr, nil, "<expand>", false)
		if err != nil {
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// Close implements script.Engine.
func (e *Engine) Close() {
	e.mu.Lock()
	t := e.timers
	e.mu.Unlock()
	if t != nil {
		t.close()
	}
}
