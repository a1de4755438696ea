package gojaengine

import (
	"testing"

	"github.com/devicelab-dev/flow-orchestra/pkg/script"
)

func TestEvaluate_ReturnsLastExpression(t *testing.T) {
	e := New()
	defer e.Close()

	got, err := e.Evaluate("1 + 2", nil, "<inline>", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3" {
		t.Errorf("got %q, want 3", got)
	}
}

func TestEvaluate_SyntaxError(t *testing.T) {
	e := New()
	defer e.Close()

	if _, err := e.Evaluate("var x = ;", nil, "bad.js", false); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestEvaluate_EnvBindings(t *testing.T) {
	e := New()
	defer e.Close()

	got, err := e.Evaluate("name + '!'", map[string]string{"name": "world"}, "<inline>", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "world!" {
		t.Errorf("got %q, want world!", got)
	}
}

func TestScopeDiscipline_RestoresPriorBinding(t *testing.T) {
	e := New()
	defer e.Close()

	e.SetVariable("x", "outer")
	e.EnterScope()
	e.SetVariable("x", "inner")

	v, _ := e.GetVariable("x")
	if v != "inner" {
		t.Fatalf("got %q inside scope, want inner", v)
	}

	e.LeaveScope()
	v, _ = e.GetVariable("x")
	if v != "outer" {
		t.Fatalf("got %q after LeaveScope, want outer", v)
	}
	if e.ScopeDepth() != 0 {
		t.Fatalf("got ScopeDepth=%d, want 0", e.ScopeDepth())
	}
}

func TestScopeDiscipline_UnbindsNewVariable(t *testing.T) {
	e := New()
	defer e.Close()

	e.EnterScope()
	e.SetVariable("onlyInScope", "value")
	e.LeaveScope()

	if _, ok := e.GetVariable("onlyInScope"); ok {
		t.Fatal("expected variable defined only inside the scope to be unbound after LeaveScope")
	}
}

func TestLeaveScope_UnbalancedPanics(t *testing.T) {
	e := New()
	defer e.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unbalanced LeaveScope")
		}
	}()
	e.LeaveScope()
}

func TestExpandVariables(t *testing.T) {
	e := New()
	defer e.Close()
	e.SetVariable("user", "alice")

	got, err := e.ExpandVariables("hello ${user}, total=${1+2}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello alice, total=3" {
		t.Errorf("got %q", got)
	}
}

func TestSanitize(t *testing.T) {
	got := (&Engine{}).Sanitize(`it's a \test`)
	want := `it\'s a \\test`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOnLog_ReceivesConsoleOutput(t *testing.T) {
	e := New()
	defer e.Close()

	var messages []string
	prev := e.OnLog(func(entry script.LogEntry) {
		messages = append(messages, string(entry.Level)+":"+entry.Message)
	})
	if prev != nil {
		t.Fatal("expected no previously registered sink")
	}

	if _, err := e.Evaluate(`console.log("hi", 42)`, nil, "<inline>", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 || messages[0] != "info:hi 42" {
		t.Fatalf("got %#v", messages)
	}

	// restoring the previous sink must return ours
	if got := e.OnLog(nil); got == nil {
		t.Fatal("expected OnLog to return the sink being replaced")
	}
}
