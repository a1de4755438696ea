package maestro

import (
	"context"
	"testing"
)

func TestExtractConfig_None(t *testing.T) {
	cfg, err := extractConfig([]Command{&BackPress{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppID != "" {
		t.Errorf("expected zero-value config, got %+v", cfg)
	}
}

func TestExtractConfig_Single(t *testing.T) {
	commands := []Command{
		&ApplyConfiguration{Config: MaestroConfig{AppID: "com.example.app"}},
		&BackPress{},
	}
	cfg, err := extractConfig(commands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppID != "com.example.app" {
		t.Errorf("got AppID=%q, want com.example.app", cfg.AppID)
	}
}

func TestExtractConfig_Duplicate(t *testing.T) {
	commands := []Command{
		&ApplyConfiguration{Config: MaestroConfig{AppID: "a"}},
		&ApplyConfiguration{Config: MaestroConfig{AppID: "b"}},
	}
	if _, err := extractConfig(commands); err == nil {
		t.Fatal("expected error for duplicate ApplyConfiguration")
	}
}

func TestRepeatLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1<<31 - 1},
		{"3", 3},
		{"0", 0},
		{"not-a-number", 1<<31 - 1},
	}
	for _, tt := range tests {
		if got := repeatLimit(tt.in); got != tt.want {
			t.Errorf("repeatLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRunSubFlow_ScopeBalancedOnSuccess(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestra(&fakeDriver{}, nil)
	o.engine = engine

	_, err := o.runSubFlow(context.Background(), []Command{&BackPress{}}, MaestroConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.ScopeDepth() != 0 {
		t.Errorf("expected scope depth 0 after success, got %d", engine.ScopeDepth())
	}
}

func TestRunSubFlow_ScopeBalancedOnFailure(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestra(&fakeDriver{}, nil)
	o.engine = engine

	failing := &AssertCondition{Condition: Condition{ScriptCondition: "false"}}
	_, err := o.runSubFlow(context.Background(), []Command{failing}, MaestroConfig{})
	if err == nil {
		t.Fatal("expected assertion failure error")
	}
	if engine.ScopeDepth() != 0 {
		t.Errorf("expected scope depth 0 after failure, got %d", engine.ScopeDepth())
	}
}

func TestCallbacks_ResetSubCommandsRecurses(t *testing.T) {
	var reset []Command
	callbacks := Callbacks{
		OnCommandReset: func(cmd Command) { reset = append(reset, cmd) },
	}

	inner := &BackPress{}
	nested := &Repeat{Commands: []Command{inner}}
	outer := &RunFlow{Commands: []Command{nested}}

	callbacks.resetSubCommands(outer)

	if len(reset) != 2 {
		t.Fatalf("expected 2 reset callbacks (nested repeat + its sub-command), got %d", len(reset))
	}
	if reset[0] != Command(nested) || reset[1] != Command(inner) {
		t.Fatalf("expected reset order [nested, inner], got %#v", reset)
	}
}
