package maestro

import "context"

// Driver is the opaque capability bundle the orchestra depends on for every
// device-touching operation. It is supplied by the host; the orchestra never
// owns a device connection directly. Every method may return a driver error;
// the Command Executor wraps some of them into an ExecutionError (clearing
// state, launching an app, outgoing-request assertions) and returns the rest
// unchanged.
type Driver interface {
	DeviceInfo(ctx context.Context) (DeviceInfo, error)
	ViewHierarchy(ctx context.Context) (*Hierarchy, error)

	TapOnElement(ctx context.Context, el *Node, h *Hierarchy, retryIfNoChange, waitUntilVisible, longPress bool, appID string) error
	TapOnPoint(ctx context.Context, x, y int, retryIfNoChange, longPress bool) error
	TapOnRelative(ctx context.Context, percentX, percentY int, retryIfNoChange, longPress bool) error

	SwipeDirection(ctx context.Context, direction Direction, durationMs int) error
	SwipeFromElement(ctx context.Context, el *Node, direction Direction, durationMs int) error
	SwipeRelative(ctx context.Context, start, end RelativePoint, durationMs int) error
	SwipePoint(ctx context.Context, startX, startY, endX, endY, durationMs int) error
	SwipeFromCenter(ctx context.Context, direction Direction, durationMs int) error

	BackPress(ctx context.Context) error
	HideKeyboard(ctx context.Context) error
	ScrollVertical(ctx context.Context) error
	PressKey(ctx context.Context, code string) error
	WaitForAnimationToEnd(ctx context.Context, timeoutMs int) error
	WaitForAppToSettle(ctx context.Context) error

	InputText(ctx context.Context, text string) error
	IsUnicodeInputSupported(ctx context.Context) bool
	EraseText(ctx context.Context, n int) error

	LaunchApp(ctx context.Context, appID string, launchArguments map[string]string, stopIfRunning bool) error
	StopApp(ctx context.Context, appID string) error
	OpenLink(ctx context.Context, link, appID string, autoVerify, browser bool) error

	ClearAppState(ctx context.Context, appID string) error
	PushAppState(ctx context.Context, appID, file string) error
	PullAppState(ctx context.Context, appID, file string) error
	SetPermissions(ctx context.Context, appID string, permissions map[string]string) error

	ClearKeychain(ctx context.Context) error
	TakeScreenshot(ctx context.Context, file string) error
	SetLocation(ctx context.Context, lat, lng float64) error
	SetProxy(ctx context.Context, port int) error

	AssertOutgoingRequest(ctx context.Context, path string, headersPresent []string, methodIs, bodyContains string, headersAndValues map[string]string) error
}
