// Package mock provides a maestro.Driver implementation for testing flows
// without a real device, grounded on the teacher's step-routing mock driver
// but rebuilt around view-hierarchy queries and per-capability methods.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/flow-orchestra/pkg/maestro"
)

// Config configures mock driver behavior.
type Config struct {
	// FailOnCall makes the Nth driver call fail (1-indexed). 0 = never fail.
	FailOnCall int
	// CallDelay adds artificial latency to every call, simulating a slow
	// device link.
	CallDelay time.Duration
	// Platform and the screen size are reported through DeviceInfo.
	Platform     string
	ScreenWidth  int
	ScreenHeight int
	// UnicodeInput controls IsUnicodeInputSupported's answer.
	UnicodeInput bool
}

// Driver is an in-memory maestro.Driver: it keeps a single synthesized
// element in its hierarchy and records the name of every driver call (except
// IsUnicodeInputSupported) in Calls for assertions in tests.
type Driver struct {
	cfg Config

	mu          sync.Mutex
	callCount   int
	hierarchy   *maestro.Hierarchy
	runningApps map[string]bool
	appState    map[string]string
	permissions map[string]map[string]string
	copiedText  string
	proxyPort   int
	Calls       []string
}

// New constructs a Driver, applying defaults the way the teacher's mock
// constructor fills in Platform/DeviceID when unset.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = "ANDROID"
	}
	if cfg.ScreenWidth == 0 {
		cfg.ScreenWidth = 1080
	}
	if cfg.ScreenHeight == 0 {
		cfg.ScreenHeight = 2400
	}
	return &Driver{
		cfg:         cfg,
		runningApps: make(map[string]bool),
		appState:    make(map[string]string),
		permissions: make(map[string]map[string]string),
		hierarchy:   defaultHierarchy(),
	}
}

func defaultHierarchy() *maestro.Hierarchy {
	return &maestro.Hierarchy{
		Root: &maestro.Node{
			Bounds:  maestro.Bounds{X: 0, Y: 0, Width: 1080, Height: 2400},
			Visible: true,
			Children: []*maestro.Node{
				{
					Attrs:   map[string]string{"text": "Mock Element", "id": "mock-element"},
					Traits:  []string{"button"},
					Bounds:  maestro.Bounds{X: 100, Y: 200, Width: 200, Height: 50},
					Visible: true,
				},
			},
		},
		Raw: []byte(`{"mock":"hierarchy"}`),
	}
}

func (d *Driver) record(name string) error {
	d.mu.Lock()
	d.callCount++
	n := d.callCount
	d.Calls = append(d.Calls, name)
	d.mu.Unlock()

	if d.cfg.CallDelay > 0 {
		time.Sleep(d.cfg.CallDelay)
	}
	if d.cfg.FailOnCall > 0 && n == d.cfg.FailOnCall {
		return fmt.Errorf("mock driver: simulated failure on call %d (%s)", n, name)
	}
	return nil
}

// DeviceInfo implements maestro.Driver.
func (d *Driver) DeviceInfo(ctx context.Context) (maestro.DeviceInfo, error) {
	if err := d.record("DeviceInfo"); err != nil {
		return maestro.DeviceInfo{}, err
	}
	return maestro.DeviceInfo{
		Platform:     d.cfg.Platform,
		WidthGrid:    d.cfg.ScreenWidth,
		HeightGrid:   d.cfg.ScreenHeight,
		WidthPoints:  d.cfg.ScreenWidth,
		HeightPoints: d.cfg.ScreenHeight,
	}, nil
}

// ViewHierarchy implements maestro.Driver.
func (d *Driver) ViewHierarchy(ctx context.Context) (*maestro.Hierarchy, error) {
	if err := d.record("ViewHierarchy"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hierarchy, nil
}

// SetHierarchy lets a test install a custom view hierarchy.
func (d *Driver) SetHierarchy(h *maestro.Hierarchy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hierarchy = h
}

func (d *Driver) TapOnElement(ctx context.Context, el *maestro.Node, h *maestro.Hierarchy, retryIfNoChange, waitUntilVisible, longPress bool, appID string) error {
	return d.record("TapOnElement")
}

func (d *Driver) TapOnPoint(ctx context.Context, x, y int, retryIfNoChange, longPress bool) error {
	return d.record("TapOnPoint")
}

func (d *Driver) TapOnRelative(ctx context.Context, percentX, percentY int, retryIfNoChange, longPress bool) error {
	return d.record("TapOnRelative")
}

func (d *Driver) SwipeDirection(ctx context.Context, direction maestro.Direction, durationMs int) error {
	return d.record("SwipeDirection")
}

func (d *Driver) SwipeFromElement(ctx context.Context, el *maestro.Node, direction maestro.Direction, durationMs int) error {
	return d.record("SwipeFromElement")
}

func (d *Driver) SwipeRelative(ctx context.Context, start, end maestro.RelativePoint, durationMs int) error {
	return d.record("SwipeRelative")
}

func (d *Driver) SwipePoint(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	return d.record("SwipePoint")
}

func (d *Driver) SwipeFromCenter(ctx context.Context, direction maestro.Direction, durationMs int) error {
	return d.record("SwipeFromCenter")
}

func (d *Driver) BackPress(ctx context.Context) error             { return d.record("BackPress") }
func (d *Driver) HideKeyboard(ctx context.Context) error          { return d.record("HideKeyboard") }
func (d *Driver) ScrollVertical(ctx context.Context) error        { return d.record("ScrollVertical") }
func (d *Driver) PressKey(ctx context.Context, code string) error { return d.record("PressKey") }

func (d *Driver) WaitForAnimationToEnd(ctx context.Context, timeoutMs int) error {
	return d.record("WaitForAnimationToEnd")
}

func (d *Driver) WaitForAppToSettle(ctx context.Context) error {
	return d.record("WaitForAppToSettle")
}

func (d *Driver) InputText(ctx context.Context, text string) error {
	return d.record("InputText")
}

func (d *Driver) IsUnicodeInputSupported(ctx context.Context) bool {
	return d.cfg.UnicodeInput
}

func (d *Driver) EraseText(ctx context.Context, n int) error {
	return d.record("EraseText")
}

func (d *Driver) LaunchApp(ctx context.Context, appID string, launchArguments map[string]string, stopIfRunning bool) error {
	if err := d.record("LaunchApp"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runningApps[appID] = true
	return nil
}

func (d *Driver) StopApp(ctx context.Context, appID string) error {
	if err := d.record("StopApp"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runningApps[appID] = false
	return nil
}

func (d *Driver) OpenLink(ctx context.Context, link, appID string, autoVerify, browser bool) error {
	return d.record("OpenLink")
}

func (d *Driver) ClearAppState(ctx context.Context, appID string) error {
	if err := d.record("ClearAppState"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.appState, appID)
	return nil
}

func (d *Driver) PushAppState(ctx context.Context, appID, file string) error {
	if err := d.record("PushAppState"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appState[appID] = file
	return nil
}

func (d *Driver) PullAppState(ctx context.Context, appID, file string) error {
	return d.record("PullAppState")
}

func (d *Driver) SetPermissions(ctx context.Context, appID string, permissions map[string]string) error {
	if err := d.record("SetPermissions"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permissions[appID] = permissions
	return nil
}

func (d *Driver) ClearKeychain(ctx context.Context) error {
	return d.record("ClearKeychain")
}

func (d *Driver) TakeScreenshot(ctx context.Context, file string) error {
	return d.record("TakeScreenshot")
}

func (d *Driver) SetLocation(ctx context.Context, lat, lng float64) error {
	return d.record("SetLocation")
}

func (d *Driver) SetProxy(ctx context.Context, port int) error {
	if err := d.record("SetProxy"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.proxyPort = port
	return nil
}

func (d *Driver) AssertOutgoingRequest(ctx context.Context, path string, headersPresent []string, methodIs, bodyContains string, headersAndValues map[string]string) error {
	return d.record("AssertOutgoingRequest")
}

// Permissions returns the last permission set applied to appID, for test
// assertions.
func (d *Driver) Permissions(appID string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permissions[appID]
}

// IsRunning reports whether appID was launched and not since stopped.
func (d *Driver) IsRunning(appID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runningApps[appID]
}
