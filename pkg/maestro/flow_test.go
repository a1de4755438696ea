package maestro

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// callbackRecorder captures the lifecycle event stream so tests can assert
// ordering and terminal-callback uniqueness per command.
type callbackRecorder struct {
	events     []string
	resolution ErrorResolution
}

func (r *callbackRecorder) callbacks() Callbacks {
	return Callbacks{
		OnCommandStart: func(index int, cmd Command) {
			r.events = append(r.events, fmt.Sprintf("start:%d", index))
		},
		OnCommandComplete: func(index int, cmd Command) {
			r.events = append(r.events, fmt.Sprintf("complete:%d", index))
		},
		OnCommandSkipped: func(index int, cmd Command) {
			r.events = append(r.events, fmt.Sprintf("skipped:%d", index))
		},
		OnCommandFailed: func(index int, cmd Command, err error) ErrorResolution {
			r.events = append(r.events, fmt.Sprintf("failed:%d", index))
			return r.resolution
		},
	}
}

func loginHierarchy() *Hierarchy {
	return &Hierarchy{
		Root: &Node{
			Bounds: Bounds{Width: 1080, Height: 2400},
			Children: []*Node{
				leafNode("Login", "login-btn", Bounds{X: 0, Y: 0, Width: 200, Height: 50}, "clickable"),
				leafNode("Welcome", "welcome", Bounds{X: 0, Y: 100, Width: 200, Height: 50}),
			},
		},
		Raw: []byte("<hierarchy/>"),
	}
}

func newFlowOrchestra(driver Driver, rec *callbackRecorder, cfg OrchestraConfig) *Orchestra {
	var callbacks Callbacks
	if rec != nil {
		callbacks = rec.callbacks()
	}
	return NewOrchestra(driver, &fakeEngine{}, nil, callbacks, cfg, nil)
}

func TestRunFlow_SimpleTapFlow(t *testing.T) {
	driver := &fakeDriver{hierarchy: loginHierarchy()}
	rec := &callbackRecorder{}
	o := newFlowOrchestra(driver, rec, OrchestraConfig{})

	commands := []Command{
		&LaunchApp{AppID: "com.app"},
		&TapOnElement{Selector: ElementSelector{TextRegex: "Login"}},
		&InputText{Text: "alice"},
		&AssertCondition{Condition: Condition{Visible: &ElementSelector{TextRegex: "Welcome"}}},
	}

	ok, err := o.RunFlow(context.Background(), commands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to pass")
	}

	want := []string{
		"start:0", "complete:0",
		"start:1", "complete:1",
		"start:2", "complete:2",
		"start:3", "complete:3",
	}
	if got := strings.Join(rec.events, " "); got != strings.Join(want, " ") {
		t.Fatalf("callback stream mismatch:\n got  %s\n want %s", got, strings.Join(want, " "))
	}
	if driver.lastInput != "alice" {
		t.Errorf("got input %q, want alice", driver.lastInput)
	}
}

func TestRunFlow_OptionalAssertSkips(t *testing.T) {
	driver := &fakeDriver{hierarchy: &Hierarchy{Root: &Node{Bounds: Bounds{Width: 1080, Height: 2400}}}}
	rec := &callbackRecorder{}
	o := newFlowOrchestra(driver, rec, OrchestraConfig{OptionalLookupTimeoutMs: 100})

	commands := []Command{
		&AssertCondition{Condition: Condition{
			Visible: &ElementSelector{TextRegex: "Banner", Optional: true},
		}},
	}

	ok, err := o.RunFlow(context.Background(), commands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to pass when optional assert skips")
	}
	if got := strings.Join(rec.events, " "); got != "start:0 skipped:0" {
		t.Fatalf("expected start then skipped, got %s", got)
	}
}

func TestRunFlow_FailedTapContinues(t *testing.T) {
	driver := &fakeDriver{hierarchy: &Hierarchy{Root: &Node{Bounds: Bounds{Width: 1080, Height: 2400}}}}
	rec := &callbackRecorder{resolution: ResolutionContinue}
	o := newFlowOrchestra(driver, rec, OrchestraConfig{LookupTimeoutMs: 100})

	commands := []Command{
		&TapOnElement{Selector: ElementSelector{TextRegex: "Nope"}},
		&InputText{Text: "x"},
	}

	ok, err := o.RunFlow(context.Background(), commands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to pass under CONTINUE resolution")
	}
	if got := strings.Join(rec.events, " "); got != "start:0 failed:0 start:1 complete:1" {
		t.Fatalf("callback stream mismatch: %s", got)
	}
}

func TestRunFlow_FailedTapAborts(t *testing.T) {
	driver := &fakeDriver{hierarchy: &Hierarchy{Root: &Node{Bounds: Bounds{Width: 1080, Height: 2400}}}}
	rec := &callbackRecorder{resolution: ResolutionFail}
	o := newFlowOrchestra(driver, rec, OrchestraConfig{LookupTimeoutMs: 100})

	commands := []Command{
		&TapOnElement{Selector: ElementSelector{TextRegex: "Nope"}},
		&InputText{Text: "x"},
	}

	ok, err := o.RunFlow(context.Background(), commands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected flow to fail under FAIL resolution")
	}
	if got := strings.Join(rec.events, " "); got != "start:0 failed:0" {
		t.Fatalf("expected the flow to stop after the failed command, got %s", got)
	}
}

func TestRunFlow_OptionalSelectorAbsorbsTap(t *testing.T) {
	driver := &fakeDriver{hierarchy: &Hierarchy{Root: &Node{Bounds: Bounds{Width: 1080, Height: 2400}}}}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{OptionalLookupTimeoutMs: 100})
	o.lastInteraction = time.Now()

	before := o.lastInteraction
	err := o.executeCommand(context.Background(), &TapOnElement{
		Selector: ElementSelector{TextRegex: "Nope", Optional: true},
	}, MaestroConfig{})
	if err != nil {
		t.Fatalf("expected optional selector to absorb ElementNotFound, got %v", err)
	}
	if o.lastInteraction != before {
		t.Error("absorbed tap must not refresh the interaction clock")
	}
	if driver.callCount("TapOnElement") != 0 {
		t.Error("driver must not receive a tap for a missing optional element")
	}
}

func TestRunFlow_InitFlowProducesState(t *testing.T) {
	driver := &fakeDriver{hierarchy: loginHierarchy()}
	stateDir := t.TempDir()
	o := newFlowOrchestra(driver, nil, OrchestraConfig{StateDir: stateDir})

	commands := []Command{
		&ApplyConfiguration{Config: MaestroConfig{
			AppID: "a",
			InitFlow: &InitFlow{Commands: []Command{
				&LaunchApp{AppID: "a"},
				&TapOnElement{Selector: ElementSelector{TextRegex: "Login"}},
			}},
		}},
		&BackPress{},
	}

	ok, err := o.RunFlow(context.Background(), commands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected flow to pass")
	}

	if driver.callCount("StopApp") != 1 {
		t.Errorf("expected one StopApp after the init flow, got %d", driver.callCount("StopApp"))
	}
	if driver.callCount("PullAppState") != 1 {
		t.Errorf("expected one PullAppState, got %d", driver.callCount("PullAppState"))
	}
	if !strings.HasPrefix(driver.pulledFile, stateDir) {
		t.Errorf("state file %q not under stateDir %q", driver.pulledFile, stateDir)
	}
	if driver.callCount("ClearAppState") != 1 || driver.callCount("PushAppState") != 1 {
		t.Errorf("expected clear+push of the produced state, got calls %v", driver.calls)
	}

	// pull (init side) must come before clear+push (main-flow side).
	order := strings.Join(driver.calls, " ")
	if strings.Index(order, "PullAppState") > strings.Index(order, "PushAppState") {
		t.Errorf("expected PullAppState before PushAppState, got %s", order)
	}
}

func TestCopyPasteRoundTrip(t *testing.T) {
	hierarchy := &Hierarchy{Root: &Node{
		Bounds: Bounds{Width: 1080, Height: 2400},
		Children: []*Node{
			leafNode("hello", "greeting", Bounds{X: 0, Y: 0, Width: 200, Height: 50}),
		},
	}}
	driver := &fakeDriver{hierarchy: hierarchy}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{})
	o.lastInteraction = time.Now()

	copyCmd := &CopyTextFrom{Selector: ElementSelector{IDRegex: "greeting"}}
	if err := o.executeCommand(context.Background(), copyCmd, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected copy error: %v", err)
	}
	if err := o.executeCommand(context.Background(), &Paste{}, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected paste error: %v", err)
	}

	if driver.lastInput != "hello" {
		t.Errorf("got pasted text %q, want hello", driver.lastInput)
	}
	if got := o.engine.GetCopiedText(); got != "hello" {
		t.Errorf("got engine copiedText %q, want hello", got)
	}
}

func TestLaunchAppPermissionDefaults(t *testing.T) {
	driver := &fakeDriver{}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{})

	if err := o.executeCommand(context.Background(), &LaunchApp{AppID: "com.app"}, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := driver.lastPermissions["all"]; got != "allow" {
		t.Errorf("got default permission %q, want allow", got)
	}

	if err := o.executeCommand(context.Background(), &ClearState{AppID: "com.app"}, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := driver.lastPermissions["all"]; got != "unset" {
		t.Errorf("got post-clear permission %q, want unset", got)
	}
}

func TestMutatingFlagRefreshesInteractionClock(t *testing.T) {
	driver := &fakeDriver{}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{})
	stale := time.Now().Add(-time.Minute)

	o.lastInteraction = stale
	if err := o.executeCommand(context.Background(), &BackPress{}, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.lastInteraction.After(stale) {
		t.Error("mutating command must refresh the interaction clock")
	}

	o.lastInteraction = stale
	if err := o.executeCommand(context.Background(), &TakeScreenshot{Path: "shot"}, MaestroConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.lastInteraction != stale {
		t.Error("non-mutating command must leave the interaction clock untouched")
	}
}

func TestScrollUntilVisible_AlreadyVisible(t *testing.T) {
	driver := &fakeDriver{hierarchy: loginHierarchy()}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{})
	o.lastInteraction = time.Now()

	err := o.executeCommand(context.Background(), &ScrollUntilVisible{
		Selector:                       ElementSelector{TextRegex: "Login"},
		Direction:                      DirectionDown,
		TimeoutMs:                      1000,
		VisibilityPercentageNormalized: 50,
	}, MaestroConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver.callCount("SwipeFromCenter") != 0 {
		t.Errorf("expected no swipes for an already-visible element, got %d", driver.callCount("SwipeFromCenter"))
	}
}

func TestScrollUntilVisible_TimesOutAfterSwiping(t *testing.T) {
	driver := &fakeDriver{hierarchy: &Hierarchy{Root: &Node{Bounds: Bounds{Width: 1080, Height: 2400}}}}
	o := newFlowOrchestra(driver, nil, OrchestraConfig{})
	o.lastInteraction = time.Now()

	err := o.executeCommand(context.Background(), &ScrollUntilVisible{
		Selector:                       ElementSelector{TextRegex: "Ghost"},
		Direction:                      DirectionDown,
		TimeoutMs:                      700,
		VisibilityPercentageNormalized: 50,
	}, MaestroConfig{})
	if !isElementNotFound(err) {
		t.Fatalf("expected ElementNotFound, got %v", err)
	}
	if driver.callCount("SwipeFromCenter") == 0 {
		t.Error("expected at least one swipe before timing out")
	}
}
