package maestro

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/flow-orchestra/pkg/proxy"
)

// executeCommand implements the command executor: dispatch over the
// command union, running each variant's semantics against the driver. Every
// branch that may have changed device state calls o.markMutating() itself;
// ErrCommandSkipped is the internal skip signal, never a user failure.
func (o *Orchestra) executeCommand(ctx context.Context, cmd Command, cfg MaestroConfig) error {
	switch c := cmd.(type) {

	case *TapOnElement:
		return o.execTapOnElement(ctx, c, cfg)

	case *TapOnPoint:
		retry := optBool(c.RetryIfNoChange, true)
		if err := o.driver.TapOnPoint(ctx, c.X, c.Y, retry, c.LongPress); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *TapOnPointV2:
		return o.execTapOnPointV2(ctx, c)

	case *BackPress:
		if err := o.driver.BackPress(ctx); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *HideKeyboard:
		if err := o.driver.HideKeyboard(ctx); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *Scroll:
		if err := o.driver.ScrollVertical(ctx); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *ClearKeychain:
		if err := o.driver.ClearKeychain(ctx); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *Paste:
		if o.copiedText == "" {
			return nil
		}
		if err := o.driver.InputText(ctx, o.copiedText); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *ApplyConfiguration:
		return nil

	case *Swipe:
		return o.execSwipe(ctx, c)

	case *ScrollUntilVisible:
		return o.execScrollUntilVisible(ctx, c)

	case *CopyTextFrom:
		return o.execCopyTextFrom(ctx, c)

	case *AssertCondition:
		return o.execAssertCondition(ctx, c)

	case *InputText:
		return o.execInputText(ctx, c.Text)

	case *InputRandom:
		text, err := randomString(c.Kind, c.Length)
		if err != nil {
			return err
		}
		return o.execInputText(ctx, text)

	case *LaunchApp:
		return o.execLaunchApp(ctx, c)

	case *OpenLink:
		if err := o.driver.OpenLink(ctx, c.Link, cfg.AppID, c.AutoVerify, c.Browser); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *PressKey:
		if err := o.driver.PressKey(ctx, c.Code); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *EraseText:
		n := c.CharactersToErase
		if n == 0 {
			n = o.config.MaxEraseCharacters
		}
		if err := o.driver.EraseText(ctx, n); err != nil {
			return err
		}
		o.markMutating()
		return o.driver.WaitForAppToSettle(ctx)

	case *TakeScreenshot:
		file := c.Path
		if o.config.ScreenshotsDir != "" {
			file = o.config.ScreenshotsDir + "/" + c.Path + ".png"
		} else {
			file = c.Path + ".png"
		}
		return o.driver.TakeScreenshot(ctx, file)

	case *StopApp:
		if err := o.driver.StopApp(ctx, c.AppID); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *ClearState:
		if err := o.driver.ClearAppState(ctx, c.AppID); err != nil {
			return UnableToClearStateError(c.AppID, err)
		}
		if err := o.driver.SetPermissions(ctx, c.AppID, map[string]string{"all": "unset"}); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *RunFlow:
		ok, err := o.evaluateCondition(ctx, c.Condition, 0)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCommandSkipped("runFlow condition false")
		}
		_, err = o.runSubFlow(ctx, c.Commands, cfg)
		return err

	case *SetLocation:
		if err := o.driver.SetLocation(ctx, c.Latitude, c.Longitude); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *Repeat:
		return o.execRepeat(ctx, c, cfg)

	case *DefineVariables:
		for name, value := range c.Variables {
			script := fmt.Sprintf("var %s = '%s'", name, o.engine.Sanitize(value))
			if _, err := o.engine.Evaluate(script, nil, "defineVariables", false); err != nil {
				return err
			}
		}
		return nil

	case *RunScript:
		if _, err := o.engine.Evaluate(c.Script, c.Env, c.SourceDescription, false); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *EvalScript:
		if _, err := o.engine.Evaluate(c.ScriptString, nil, "<inline>", false); err != nil {
			return err
		}
		o.markMutating()
		return nil

	case *WaitForAnimationToEnd:
		timeout := c.TimeoutMs
		if timeout == 0 {
			timeout = 5000
		}
		return o.driver.WaitForAnimationToEnd(ctx, timeout)

	case *MockNetwork:
		return o.execMockNetwork(ctx, c)

	case *Travel:
		speed := c.SpeedMPS
		if speed == 0 {
			speed = 4.0
		}
		for _, pt := range c.Points {
			if err := o.driver.SetLocation(ctx, pt.Latitude, pt.Longitude); err != nil {
				return err
			}
		}
		o.markMutating()
		return nil

	case *AssertOutgoingRequests:
		if err := o.driver.AssertOutgoingRequest(ctx, c.Path, c.HeadersPresent, c.HTTPMethodIs, c.RequestBodyContains, c.HeadersAndValues); err != nil {
			return OutgoingRequestAssertionFailureError(c.Path)
		}
		return nil

	default:
		return InvalidCommandError(fmt.Sprintf("unsupported command type %T", cmd))
	}
}

func optBool(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (o *Orchestra) execTapOnElement(ctx context.Context, c *TapOnElement, cfg MaestroConfig) error {
	node, hierarchy, err := o.findElement(ctx, c.Selector, 0)
	if err != nil {
		if c.Selector.Optional && isElementNotFound(err) {
			return nil
		}
		return err
	}
	retry := optBool(c.RetryIfNoChange, true)
	waitUntilVisible := optBool(c.WaitUntilVisible, false)
	if err := o.driver.TapOnElement(ctx, node, hierarchy, retry, waitUntilVisible, c.LongPress, cfg.AppID); err != nil {
		return err
	}
	o.markMutating()
	return nil
}

// execTapOnPointV2 implements Testable Property 8: "x,y" absolute,
// "p%,p%" relative with both components in [0,100], anything else
// InvalidCommand.
func (o *Orchestra) execTapOnPointV2(ctx context.Context, c *TapOnPointV2) error {
	retry := optBool(c.RetryIfNoChange, true)

	parts := strings.SplitN(c.Point, ",", 2)
	if len(parts) != 2 {
		return InvalidCommandError(fmt.Sprintf("invalid tap point %q", c.Point))
	}
	xStr, yStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	if strings.HasSuffix(xStr, "%") && strings.HasSuffix(yStr, "%") {
		x, err1 := strconv.Atoi(strings.TrimSuffix(xStr, "%"))
		y, err2 := strconv.Atoi(strings.TrimSuffix(yStr, "%"))
		if err1 != nil || err2 != nil || x < 0 || x > 100 || y < 0 || y > 100 {
			return InvalidCommandError(fmt.Sprintf("invalid relative tap point %q", c.Point))
		}
		if err := o.driver.TapOnRelative(ctx, x, y, retry, c.LongPress); err != nil {
			return err
		}
		o.markMutating()
		return nil
	}

	if strings.Contains(xStr, "%") || strings.Contains(yStr, "%") {
		return InvalidCommandError(fmt.Sprintf("invalid tap point %q", c.Point))
	}

	x, err1 := strconv.Atoi(xStr)
	y, err2 := strconv.Atoi(yStr)
	if err1 != nil || err2 != nil {
		return InvalidCommandError(fmt.Sprintf("invalid tap point %q", c.Point))
	}
	if err := o.driver.TapOnPoint(ctx, x, y, retry, c.LongPress); err != nil {
		return err
	}
	o.markMutating()
	return nil
}

// execSwipe tries each of the four argument shapes in priority order
// (selector+direction, startRel+endRel, direction, startPoint+endPoint).
func (o *Orchestra) execSwipe(ctx context.Context, c *Swipe) error {
	switch {
	case c.Selector != nil && c.Direction != "":
		node, _, err := o.findElement(ctx, *c.Selector, 0)
		if err != nil {
			return err
		}
		if err := o.driver.SwipeFromElement(ctx, node, c.Direction, c.Duration); err != nil {
			return err
		}
	case c.StartRel != nil && c.EndRel != nil:
		if err := o.driver.SwipeRelative(ctx, *c.StartRel, *c.EndRel, c.Duration); err != nil {
			return err
		}
	case c.Direction != "":
		if err := o.driver.SwipeDirection(ctx, c.Direction, c.Duration); err != nil {
			return err
		}
	case c.StartPoint != nil && c.EndPoint != nil:
		if err := o.driver.SwipePoint(ctx, c.StartPoint.X, c.StartPoint.Y, c.EndPoint.X, c.EndPoint.Y, c.Duration); err != nil {
			return err
		}
	default:
		return InvalidCommandError("Illegal arguments for swiping")
	}
	o.markMutating()
	return nil
}

// execScrollUntilVisible polls for the
// element, and if its visible fraction clears the threshold, stop; else
// swipe from center and retry, until timeout.
func (o *Orchestra) execScrollUntilVisible(ctx context.Context, c *ScrollUntilVisible) error {
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	deadline := time.Now().Add(timeout)
	info, err := o.deviceInfo(ctx)
	if err != nil {
		return err
	}
	screen := Bounds{Width: info.WidthGrid, Height: info.HeightGrid}

	swiped := false
	for {
		node, hierarchy, err := o.findElement(ctx, c.Selector, 500)
		if err == nil {
			pct := visibilityPercentage(node.Bounds, screen)
			if pct >= c.VisibilityPercentageNormalized {
				if swiped {
					o.markMutating()
				}
				return nil
			}
		} else if !isElementNotFound(err) {
			return err
		} else if time.Now().After(deadline) {
			return ElementNotFoundError(c.Selector.Describe(), hierarchyRaw(hierarchy))
		}

		if time.Now().After(deadline) {
			return ElementNotFoundError(c.Selector.Describe(), nil)
		}

		if err := o.driver.SwipeFromCenter(ctx, c.Direction, c.ScrollDurationMs); err != nil {
			return err
		}
		swiped = true

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func hierarchyRaw(h *Hierarchy) []byte {
	if h == nil {
		return nil
	}
	return h.Raw
}

// visibilityPercentage returns how much of bounds falls within the screen's
// grid area, normalized 0-100.
func visibilityPercentage(bounds, screen Bounds) int {
	total := bounds.Area()
	if total == 0 {
		return 0
	}
	visible := bounds.Intersect(screen).Area()
	return (visible * 100) / total
}

func (o *Orchestra) execCopyTextFrom(ctx context.Context, c *CopyTextFrom) error {
	node, _, err := o.findElement(ctx, c.Selector, 0)
	if err != nil {
		return err
	}
	text := firstNonEmpty(node.Attrs["text"], node.Attrs["hintText"], node.Attrs["accessibilityText"])
	if text == "" {
		return UnableToCopyTextError(c.Selector.Describe())
	}
	o.copiedText = text
	o.engine.SetCopiedText(o.engine.Sanitize(text))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// execAssertCondition implements AssertCondition: optional
// visible/notVisible conditions convert a false result into a skip;
// anything else that evaluates false is an assertion failure.
func (o *Orchestra) execAssertCondition(ctx context.Context, c *AssertCondition) error {
	ok, err := o.evaluateCondition(ctx, &c.Condition, c.TimeoutMs)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if conditionIsOptional(c.Condition) {
		return ErrCommandSkipped("optional condition not met")
	}
	return AssertionFailureError(describeCondition(c.Condition), nil)
}

func conditionIsOptional(cond Condition) bool {
	if cond.Visible != nil && cond.Visible.Optional {
		return true
	}
	if cond.NotVisible != nil && cond.NotVisible.Optional {
		return true
	}
	return false
}

func describeCondition(cond Condition) string {
	switch {
	case cond.Visible != nil:
		return "visible " + cond.Visible.Describe()
	case cond.NotVisible != nil:
		return "not visible " + cond.NotVisible.Describe()
	case cond.ScriptCondition != "":
		return cond.ScriptCondition
	default:
		return "condition"
	}
}

func (o *Orchestra) execInputText(ctx context.Context, text string) error {
	if !o.driver.IsUnicodeInputSupported(ctx) && !isASCII(text) {
		return UnicodeNotSupportedError(text)
	}
	if err := o.driver.InputText(ctx, text); err != nil {
		return err
	}
	o.markMutating()
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

const randomCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const randomDigits = "0123456789"

func randomString(kind InputRandomKind, length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	switch kind {
	case RandomNumber:
		return randomFromCharset(randomDigits, length)
	case RandomEmail:
		local, err := randomFromCharset(randomCharset, length)
		if err != nil {
			return "", err
		}
		return local + "@example.com", nil
	default:
		return randomFromCharset(randomCharset, length)
	}
}

func randomFromCharset(charset string, length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		buf[i] = charset[n.Int64()]
	}
	return string(buf), nil
}

// execLaunchApp implements LaunchApp: optional clearKeychain/clearState
// (both mapped to UnableToClearState on driver error), always-set
// permissions (default {"all":"allow"}), then launch with
// launchArguments/stopIfRunning defaults.
func (o *Orchestra) execLaunchApp(ctx context.Context, c *LaunchApp) error {
	if c.ClearKeychain {
		if err := o.driver.ClearKeychain(ctx); err != nil {
			return UnableToClearStateError(c.AppID, err)
		}
	}
	if c.ClearState {
		if err := o.driver.ClearAppState(ctx, c.AppID); err != nil {
			return UnableToClearStateError(c.AppID, err)
		}
	}

	permissions := c.Permissions
	if permissions == nil {
		permissions = map[string]string{"all": "allow"}
	}
	if err := o.driver.SetPermissions(ctx, c.AppID, permissions); err != nil {
		return UnableToClearStateError(c.AppID, err)
	}

	args := c.LaunchArguments
	if args == nil {
		args = map[string]string{}
	}
	stopIfRunning := optBool(c.StopApp, true)

	if err := o.driver.LaunchApp(ctx, c.AppID, args, stopIfRunning); err != nil {
		return UnableToLaunchAppError(c.AppID, err)
	}
	o.markMutating()
	return nil
}

// execRepeat implements Repeat: iterate while
// the condition holds and the counter is below the parsed (or unbounded)
// limit, firing on_command_reset for sub-commands on every iteration after
// the first, and raising CommandSkipped if no iteration ran at all.
func (o *Orchestra) execRepeat(ctx context.Context, c *Repeat, cfg MaestroConfig) error {
	limit := repeatLimit(c.Times)
	meta := o.metadataFor(c)
	meta.NumberOfRuns = 0

	anyMutated := false
	counter := 0
	for counter < limit {
		ok, err := o.evaluateCondition(ctx, c.Condition, 0)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if counter > 0 {
			o.callbacks.resetSubCommands(c)
		}

		mutated, err := o.runSubFlow(ctx, c.Commands, cfg)
		if err != nil {
			return err
		}
		anyMutated = anyMutated || mutated
		counter++
		meta.NumberOfRuns = counter
	}

	if counter == 0 {
		return ErrCommandSkipped("repeat condition false at entry")
	}
	if anyMutated {
		o.markMutating()
	}
	return nil
}

// execMockNetwork implements MockNetwork: configure the driver to
// route through the proxy port, parse the rule file, and idempotently
// start-with-rules or replace-rules.
func (o *Orchestra) execMockNetwork(ctx context.Context, c *MockNetwork) error {
	if o.proxy == nil {
		return InvalidCommandError("no network proxy configured")
	}
	if err := o.driver.SetProxy(ctx, o.proxy.Port()); err != nil {
		return err
	}

	rules, err := loadMockRules(c.Path)
	if err != nil {
		return err
	}

	if o.proxy.IsStarted() {
		return o.proxy.ReplaceRules(rules)
	}
	return o.proxy.Start(rules)
}

// loadMockRules is overridden in tests; production wiring points it at
// httpproxy.LoadRulesFile without pkg/maestro importing pkg/proxy/httpproxy
// directly (that would invert the port/adapter dependency direction).
var loadMockRules = func(path string) ([]proxy.Rule, error) {
	return nil, fmt.Errorf("mock network rule loader not configured")
}

// SetMockRuleLoader installs the function MockNetwork uses to turn a rule
// file path into proxy rules. Callers wire this to their chosen Proxy
// adapter's rule loader (e.g. httpproxy.LoadRulesFile) at startup.
func SetMockRuleLoader(loader func(path string) ([]proxy.Rule, error)) {
	loadMockRules = loader
}
