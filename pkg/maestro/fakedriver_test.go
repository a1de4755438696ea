package maestro

import (
	"context"
	"strings"

	"github.com/devicelab-dev/flow-orchestra/pkg/script"
)

// fakeDriver is a minimal in-package Driver stub for unit tests that only
// exercise a handful of capabilities (view hierarchy lookups, mostly).
// Every unused method is a no-op so test files stay focused on the behavior
// under test rather than re-deriving a full mock driver.
type fakeDriver struct {
	hierarchy  *Hierarchy
	platform   string
	unicodeOK  bool
	deviceInfo DeviceInfo

	calls           []string
	lastInput       string
	lastPermissions map[string]string
	pulledFile      string
	tapErr          error
}

func (f *fakeDriver) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeDriver) callCount(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeDriver) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	if f.deviceInfo != (DeviceInfo{}) {
		return f.deviceInfo, nil
	}
	return DeviceInfo{Platform: f.platform, WidthGrid: 1080, HeightGrid: 2400}, nil
}

func (f *fakeDriver) ViewHierarchy(ctx context.Context) (*Hierarchy, error) {
	return f.hierarchy, nil
}

func (f *fakeDriver) TapOnElement(ctx context.Context, el *Node, h *Hierarchy, retryIfNoChange, waitUntilVisible, longPress bool, appID string) error {
	f.record("TapOnElement")
	return f.tapErr
}
func (f *fakeDriver) TapOnPoint(ctx context.Context, x, y int, retryIfNoChange, longPress bool) error {
	f.record("TapOnPoint")
	return nil
}
func (f *fakeDriver) TapOnRelative(ctx context.Context, percentX, percentY int, retryIfNoChange, longPress bool) error {
	return nil
}
func (f *fakeDriver) SwipeDirection(ctx context.Context, direction Direction, durationMs int) error {
	f.record("SwipeDirection")
	return nil
}
func (f *fakeDriver) SwipeFromElement(ctx context.Context, el *Node, direction Direction, durationMs int) error {
	return nil
}
func (f *fakeDriver) SwipeRelative(ctx context.Context, start, end RelativePoint, durationMs int) error {
	return nil
}
func (f *fakeDriver) SwipePoint(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	f.record("SwipePoint")
	return nil
}
func (f *fakeDriver) SwipeFromCenter(ctx context.Context, direction Direction, durationMs int) error {
	f.record("SwipeFromCenter")
	return nil
}
func (f *fakeDriver) BackPress(ctx context.Context) error             { f.record("BackPress"); return nil }
func (f *fakeDriver) HideKeyboard(ctx context.Context) error          { return nil }
func (f *fakeDriver) ScrollVertical(ctx context.Context) error        { return nil }
func (f *fakeDriver) PressKey(ctx context.Context, code string) error { return nil }
func (f *fakeDriver) WaitForAnimationToEnd(ctx context.Context, timeoutMs int) error {
	return nil
}
func (f *fakeDriver) WaitForAppToSettle(ctx context.Context) error { return nil }
func (f *fakeDriver) InputText(ctx context.Context, text string) error {
	f.record("InputText")
	f.lastInput = text
	return nil
}
func (f *fakeDriver) IsUnicodeInputSupported(ctx context.Context) bool { return f.unicodeOK }
func (f *fakeDriver) EraseText(ctx context.Context, n int) error       { return nil }
func (f *fakeDriver) LaunchApp(ctx context.Context, appID string, launchArguments map[string]string, stopIfRunning bool) error {
	f.record("LaunchApp")
	return nil
}
func (f *fakeDriver) StopApp(ctx context.Context, appID string) error {
	f.record("StopApp")
	return nil
}
func (f *fakeDriver) OpenLink(ctx context.Context, link, appID string, autoVerify, browser bool) error {
	return nil
}
func (f *fakeDriver) ClearAppState(ctx context.Context, appID string) error {
	f.record("ClearAppState")
	return nil
}
func (f *fakeDriver) PushAppState(ctx context.Context, appID, file string) error {
	f.record("PushAppState")
	return nil
}
func (f *fakeDriver) PullAppState(ctx context.Context, appID, file string) error {
	f.record("PullAppState")
	f.pulledFile = file
	return nil
}
func (f *fakeDriver) SetPermissions(ctx context.Context, appID string, permissions map[string]string) error {
	f.record("SetPermissions")
	f.lastPermissions = permissions
	return nil
}
func (f *fakeDriver) ClearKeychain(ctx context.Context) error                 { return nil }
func (f *fakeDriver) TakeScreenshot(ctx context.Context, file string) error   { return nil }
func (f *fakeDriver) SetLocation(ctx context.Context, lat, lng float64) error { return nil }
func (f *fakeDriver) SetProxy(ctx context.Context, port int) error            { return nil }
func (f *fakeDriver) AssertOutgoingRequest(ctx context.Context, path string, headersPresent []string, methodIs, bodyContains string, headersAndValues map[string]string) error {
	return nil
}

// fakeEngine is a minimal script.Engine stub: ExpandVariables is the
// identity function and everything else is inert, enough for tests that
// don't exercise JS evaluation.
type fakeEngine struct {
	copiedText string
	platform   string
	scopeDepth int
	vars       map[string]string
	sink       script.LogSink
}

func (f *fakeEngine) Init() {
	f.vars = make(map[string]string)
	f.copiedText = ""
}

func (f *fakeEngine) Evaluate(src string, env map[string]string, sourceName string, runInSubScope bool) (string, error) {
	return "", nil
}

func (f *fakeEngine) EnterScope()     { f.scopeDepth++ }
func (f *fakeEngine) LeaveScope()     { f.scopeDepth-- }
func (f *fakeEngine) ScopeDepth() int { return f.scopeDepth }

func (f *fakeEngine) OnLog(sink script.LogSink) script.LogSink {
	prev := f.sink
	f.sink = sink
	return prev
}

func (f *fakeEngine) Sanitize(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func (f *fakeEngine) SetVariable(name, value string) {
	if f.vars == nil {
		f.vars = make(map[string]string)
	}
	f.vars[name] = value
}

func (f *fakeEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		f.SetVariable(k, v)
	}
}

func (f *fakeEngine) GetVariable(name string) (string, bool) {
	v, ok := f.vars[name]
	return v, ok
}

func (f *fakeEngine) ExpandVariables(s string) (string, error) { return s, nil }

func (f *fakeEngine) SetCopiedText(text string)   { f.copiedText = text }
func (f *fakeEngine) GetCopiedText() string       { return f.copiedText }
func (f *fakeEngine) SetPlatform(platform string) { f.platform = platform }
func (f *fakeEngine) Close()                      {}
