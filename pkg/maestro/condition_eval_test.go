package maestro

import (
	"context"
	"testing"
	"time"
)

func newTestOrchestra(driver Driver, hierarchy *Hierarchy) *Orchestra {
	return &Orchestra{
		driver:          driver,
		engine:          &fakeEngine{},
		config:          OrchestraConfig{}.WithDefaults(),
		lastInteraction: time.Now(),
		metadata:        make(map[Command]*CommandMetadata),
	}
}

func TestEvaluateCondition_EmptyIsTrue(t *testing.T) {
	o := newTestOrchestra(&fakeDriver{}, nil)
	ok, err := o.evaluateCondition(context.Background(), &Condition{}, 0)
	if err != nil || !ok {
		t.Fatalf("expected vacuous true, got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateCondition_Platform(t *testing.T) {
	o := newTestOrchestra(&fakeDriver{platform: "ANDROID"}, nil)

	ok, err := o.evaluateCondition(context.Background(), &Condition{Platform: PlatformAndroid}, 0)
	if err != nil || !ok {
		t.Fatalf("expected platform match true, got ok=%v err=%v", ok, err)
	}

	ok, err = o.evaluateCondition(context.Background(), &Condition{Platform: PlatformIOS}, 0)
	if err != nil || ok {
		t.Fatalf("expected platform mismatch false, got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateCondition_ScriptCondition(t *testing.T) {
	o := newTestOrchestra(&fakeDriver{}, nil)

	ok, err := o.evaluateCondition(context.Background(), &Condition{ScriptCondition: "true"}, 0)
	if err != nil || !ok {
		t.Fatalf("expected truthy script condition, got ok=%v err=%v", ok, err)
	}

	ok, err = o.evaluateCondition(context.Background(), &Condition{ScriptCondition: "false"}, 0)
	if err != nil || ok {
		t.Fatalf("expected falsey script condition, got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateCondition_Visible(t *testing.T) {
	hierarchy := &Hierarchy{Root: &Node{
		Bounds:   Bounds{Width: 1080, Height: 2400},
		Children: []*Node{leafNode("Login", "login-btn", Bounds{X: 0, Y: 0, Width: 100, Height: 50})},
	}}
	o := newTestOrchestra(&fakeDriver{hierarchy: hierarchy}, hierarchy)

	ok, err := o.evaluateCondition(context.Background(), &Condition{Visible: &ElementSelector{TextRegex: "Login"}}, 50)
	if err != nil || !ok {
		t.Fatalf("expected visible element condition true, got ok=%v err=%v", ok, err)
	}

	ok, err = o.evaluateCondition(context.Background(), &Condition{Visible: &ElementSelector{TextRegex: "Nope"}}, 50)
	if err != nil || ok {
		t.Fatalf("expected missing element condition false, got ok=%v err=%v", ok, err)
	}
}
