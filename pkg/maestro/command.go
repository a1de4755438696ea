package maestro

// CommandType tags the Command union, mirroring the teacher's StepType
// constant set but trimmed and renamed to the names this orchestra's
// spec uses.
type CommandType string

const (
	CmdTapOnElement           CommandType = "tapOnElement"
	CmdTapOnPoint             CommandType = "tapOnPoint"
	CmdTapOnPointV2           CommandType = "tapOnPointV2"
	CmdBackPress              CommandType = "backPress"
	CmdHideKeyboard           CommandType = "hideKeyboard"
	CmdScroll                 CommandType = "scroll"
	CmdClearKeychain          CommandType = "clearKeychain"
	CmdPaste                  CommandType = "paste"
	CmdApplyConfiguration     CommandType = "applyConfiguration"
	CmdSwipe                  CommandType = "swipe"
	CmdScrollUntilVisible     CommandType = "scrollUntilVisible"
	CmdCopyTextFrom           CommandType = "copyTextFrom"
	CmdAssertCondition        CommandType = "assertCondition"
	CmdInputText              CommandType = "inputText"
	CmdInputRandom            CommandType = "inputRandom"
	CmdLaunchApp              CommandType = "launchApp"
	CmdOpenLink               CommandType = "openLink"
	CmdPressKey               CommandType = "pressKey"
	CmdEraseText              CommandType = "eraseText"
	CmdTakeScreenshot         CommandType = "takeScreenshot"
	CmdStopApp                CommandType = "stopApp"
	CmdClearState             CommandType = "clearState"
	CmdRunFlow                CommandType = "runFlow"
	CmdSetLocation            CommandType = "setLocation"
	CmdRepeat                 CommandType = "repeat"
	CmdDefineVariables        CommandType = "defineVariables"
	CmdRunScript              CommandType = "runScript"
	CmdEvalScript             CommandType = "evalScript"
	CmdWaitForAnimationToEnd  CommandType = "waitForAnimationToEnd"
	CmdMockNetwork            CommandType = "mockNetwork"
	CmdTravel                 CommandType = "travel"
	CmdAssertOutgoingRequests CommandType = "assertOutgoingRequests"
)

// Command is the tagged union every flow command implements. Composite
// commands (Repeat, RunFlow) additionally implement CompositeCommand so the
// Flow Driver can walk into their sub-commands for the reset callback.
type Command interface {
	Type() CommandType
	Label() string
	Describe() string
}

// CompositeCommand is implemented by commands that recurse through the Flow
// Driver via run_sub_flow: their sub-commands must receive on_command_reset
// when a containing Repeat loops back to iteration 0.
type CompositeCommand interface {
	Command
	SubCommands() []Command
}

// BaseCommand is embedded by every concrete command; it carries the optional
// label surfaced in UI reporting.
type BaseCommand struct {
	CommandLabel string `yaml:"label"`
}

func (b BaseCommand) Label() string { return b.CommandLabel }

// GeoPoint is a latitude/longitude pair, used by SetLocation and Travel.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// TapOnElement taps the first element matching Selector.
type TapOnElement struct {
	BaseCommand      `yaml:",inline"`
	Selector         ElementSelector `yaml:"-"`
	RetryIfNoChange  *bool           `yaml:"retryTapIfNoChange"`
	WaitUntilVisible *bool           `yaml:"waitUntilVisible"`
	LongPress        bool            `yaml:"longPress"`
}

func (c *TapOnElement) Type() CommandType { return CmdTapOnElement }
func (c *TapOnElement) Describe() string  { return "Tap on " + c.Selector.Describe() }

// TapOnPoint taps an absolute device-pixel coordinate.
type TapOnPoint struct {
	BaseCommand     `yaml:",inline"`
	X               int   `yaml:"x"`
	Y               int   `yaml:"y"`
	RetryIfNoChange *bool `yaml:"retryTapIfNoChange"`
	LongPress       bool  `yaml:"longPress"`
}

func (c *TapOnPoint) Type() CommandType { return CmdTapOnPoint }
func (c *TapOnPoint) Describe() string  { return "Tap on point" }

// TapOnPointV2 taps a point given as "x,y" (absolute) or "p%,p%" (relative).
type TapOnPointV2 struct {
	BaseCommand     `yaml:",inline"`
	Point           string `yaml:"point"`
	RetryIfNoChange *bool  `yaml:"retryTapIfNoChange"`
	LongPress       bool   `yaml:"longPress"`
}

func (c *TapOnPointV2) Type() CommandType { return CmdTapOnPointV2 }
func (c *TapOnPointV2) Describe() string  { return "Tap on point " + c.Point }

// BackPress presses the device back button (Android) or equivalent gesture.
type BackPress struct{ BaseCommand }

func (c *BackPress) Type() CommandType { return CmdBackPress }
func (c *BackPress) Describe() string  { return "Press back" }

// HideKeyboard dismisses the on-screen keyboard.
type HideKeyboard struct{ BaseCommand }

func (c *HideKeyboard) Type() CommandType { return CmdHideKeyboard }
func (c *HideKeyboard) Describe() string  { return "Hide keyboard" }

// Scroll performs a default vertical scroll.
type Scroll struct{ BaseCommand }

func (c *Scroll) Type() CommandType { return CmdScroll }
func (c *Scroll) Describe() string  { return "Scroll" }

// ClearKeychain clears the device's secure credential store.
type ClearKeychain struct{ BaseCommand }

func (c *ClearKeychain) Type() CommandType { return CmdClearKeychain }
func (c *ClearKeychain) Describe() string  { return "Clear keychain" }

// Paste inputs the orchestra's copiedText buffer, or no-ops if it is empty.
type Paste struct{ BaseCommand }

func (c *Paste) Type() CommandType { return CmdPaste }
func (c *Paste) Describe() string  { return "Paste text" }

// ApplyConfiguration carries MaestroConfig; it is consumed by the Flow
// Driver before dispatch and no-ops at execution time.
type ApplyConfiguration struct {
	BaseCommand `yaml:",inline"`
	Config      MaestroConfig
}

func (c *ApplyConfiguration) Type() CommandType { return CmdApplyConfiguration }
func (c *ApplyConfiguration) Describe() string  { return "Apply configuration" }

// Direction is a swipe/scroll direction.
type Direction string

const (
	DirectionUp    Direction = "UP"
	DirectionDown  Direction = "DOWN"
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
)

// RelativePoint is a percentage-of-screen coordinate pair, each in [0, 100].
type RelativePoint struct {
	X, Y int
}

// Swipe supports four mutually exclusive argument shapes, tried in this
// priority order: selector+direction, startRel+endRel, direction alone,
// startPoint+endPoint.
type Swipe struct {
	BaseCommand `yaml:",inline"`
	Selector    *ElementSelector    `yaml:"-"`
	Direction   Direction           `yaml:"direction"`
	Duration    int                 `yaml:"duration"`
	StartRel    *RelativePoint      `yaml:"-"`
	EndRel      *RelativePoint      `yaml:"-"`
	StartPoint  *struct{ X, Y int } `yaml:"-"`
	EndPoint    *struct{ X, Y int } `yaml:"-"`
}

func (c *Swipe) Type() CommandType { return CmdSwipe }
func (c *Swipe) Describe() string  { return "Swipe" }

// ScrollUntilVisible repeatedly swipes from screen center until Selector
// becomes visible above VisibilityPercentageNormalized or Timeout elapses.
type ScrollUntilVisible struct {
	BaseCommand                    `yaml:",inline"`
	Selector                       ElementSelector `yaml:"element"`
	Direction                      Direction       `yaml:"direction"`
	TimeoutMs                      int             `yaml:"timeout"`
	ScrollDurationMs               int             `yaml:"scrollDuration"`
	VisibilityPercentageNormalized int             `yaml:"visibilityPercentage"`
}

func (c *ScrollUntilVisible) Type() CommandType { return CmdScrollUntilVisible }
func (c *ScrollUntilVisible) Describe() string {
	return "Scroll until visible: " + c.Selector.Describe()
}

// CopyTextFrom reads the first non-empty of text/hintText/accessibilityText
// off the matched element and stores it in the orchestra's copiedText.
type CopyTextFrom struct {
	BaseCommand `yaml:",inline"`
	Selector    ElementSelector `yaml:"-"`
}

func (c *CopyTextFrom) Type() CommandType { return CmdCopyTextFrom }
func (c *CopyTextFrom) Describe() string  { return "Copy text from " + c.Selector.Describe() }

// AssertCondition evaluates Condition and fails (or skips, if optional) when
// false.
type AssertCondition struct {
	BaseCommand `yaml:",inline"`
	Condition   Condition `yaml:",inline"`
	TimeoutMs   int       `yaml:"timeout"`
}

func (c *AssertCondition) Type() CommandType { return CmdAssertCondition }
func (c *AssertCondition) Describe() string  { return "Assert condition" }

// InputText types Text into the focused field.
type InputText struct {
	BaseCommand `yaml:",inline"`
	Text        string `yaml:"text"`
}

func (c *InputText) Type() CommandType { return CmdInputText }
func (c *InputText) Describe() string  { return "Input text " + c.Text }

// InputRandomKind selects the flavor of synthesized text for InputRandom.
type InputRandomKind string

const (
	RandomText   InputRandomKind = "TEXT"
	RandomNumber InputRandomKind = "NUMBER"
	RandomEmail  InputRandomKind = "EMAIL"
)

// InputRandom synthesizes a random string of Kind/Length and behaves as
// InputText with that string.
type InputRandom struct {
	BaseCommand `yaml:",inline"`
	Kind        InputRandomKind `yaml:"kind"`
	Length      int             `yaml:"length"`
}

func (c *InputRandom) Type() CommandType { return CmdInputRandom }
func (c *InputRandom) Describe() string  { return "Input random " + string(c.Kind) }

// LaunchApp starts AppID, optionally clearing state/keychain first and
// always setting Permissions (default {"all":"allow"}).
type LaunchApp struct {
	BaseCommand     `yaml:",inline"`
	AppID           string            `yaml:"appId"`
	ClearState      bool              `yaml:"clearState"`
	ClearKeychain   bool              `yaml:"clearKeychain"`
	Permissions     map[string]string `yaml:"permissions"`
	LaunchArguments map[string]string `yaml:"arguments"`
	StopApp         *bool             `yaml:"stopApp"`
}

func (c *LaunchApp) Type() CommandType { return CmdLaunchApp }
func (c *LaunchApp) Describe() string  { return "Launch app " + c.AppID }

// OpenLink opens Link, optionally auto-verifying and/or forcing an external
// browser.
type OpenLink struct {
	BaseCommand `yaml:",inline"`
	Link        string `yaml:"link"`
	AutoVerify  bool   `yaml:"autoVerify"`
	Browser     bool   `yaml:"browser"`
}

func (c *OpenLink) Type() CommandType { return CmdOpenLink }
func (c *OpenLink) Describe() string  { return "Open link " + c.Link }

// PressKey sends a single key Code (e.g. "Enter", "Back", "Home").
type PressKey struct {
	BaseCommand `yaml:",inline"`
	Code        string `yaml:"key"`
}

func (c *PressKey) Type() CommandType { return CmdPressKey }
func (c *PressKey) Describe() string  { return "Press key " + c.Code }

// EraseText removes CharactersToErase characters from the focused field
// (default 50).
type EraseText struct {
	BaseCommand       `yaml:",inline"`
	CharactersToErase int `yaml:"charactersToErase"`
}

func (c *EraseText) Type() CommandType { return CmdEraseText }
func (c *EraseText) Describe() string  { return "Erase text" }

// TakeScreenshot writes a PNG to Path (joined against ScreenshotsDir if
// configured). Non-mutating, per the reference orchestra's quirk.
type TakeScreenshot struct {
	BaseCommand `yaml:",inline"`
	Path        string `yaml:"path"`
}

func (c *TakeScreenshot) Type() CommandType { return CmdTakeScreenshot }
func (c *TakeScreenshot) Describe() string  { return "Take screenshot " + c.Path }

// StopApp terminates AppID.
type StopApp struct {
	BaseCommand `yaml:",inline"`
	AppID       string `yaml:"appId"`
}

func (c *StopApp) Type() CommandType { return CmdStopApp }
func (c *StopApp) Describe() string  { return "Stop app " + c.AppID }

// ClearState wipes AppID's on-device state and resets permissions to
// {"all":"unset"}.
type ClearState struct {
	BaseCommand `yaml:",inline"`
	AppID       string `yaml:"appId"`
}

func (c *ClearState) Type() CommandType { return CmdClearState }
func (c *ClearState) Describe() string  { return "Clear state " + c.AppID }

// RunFlow runs Commands as a sub-flow, gated by Condition.
type RunFlow struct {
	BaseCommand `yaml:",inline"`
	Commands    []Command
	Condition   *Condition
}

func (c *RunFlow) Type() CommandType      { return CmdRunFlow }
func (c *RunFlow) Describe() string       { return "Run flow" }
func (c *RunFlow) SubCommands() []Command { return c.Commands }

// SetLocation mocks the device's GPS coordinates.
type SetLocation struct {
	BaseCommand `yaml:",inline"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
}

func (c *SetLocation) Type() CommandType { return CmdSetLocation }
func (c *SetLocation) Describe() string  { return "Set location" }

// Repeat runs Commands while Condition holds (or unconditionally) up to
// Times iterations (MaxInt32 if Times is unset/unparseable).
type Repeat struct {
	BaseCommand `yaml:",inline"`
	Commands    []Command
	Times       string
	Condition   *Condition
}

func (c *Repeat) Type() CommandType      { return CmdRepeat }
func (c *Repeat) Describe() string       { return "Repeat" }
func (c *Repeat) SubCommands() []Command { return c.Commands }

// DefineVariables binds each (name, value) pair into the script engine as a
// string variable.
type DefineVariables struct {
	BaseCommand `yaml:",inline"`
	Variables   map[string]string
}

func (c *DefineVariables) Type() CommandType { return CmdDefineVariables }
func (c *DefineVariables) Describe() string  { return "Define variables" }

// RunScript evaluates Script (loaded from SourceDescription, typically a
// file path) with Env bindings injected first.
type RunScript struct {
	BaseCommand       `yaml:",inline"`
	Script            string            `yaml:"-"`
	Env               map[string]string `yaml:"env"`
	SourceDescription string            `yaml:"-"`
}

func (c *RunScript) Type() CommandType { return CmdRunScript }
func (c *RunScript) Describe() string  { return "Run script " + c.SourceDescription }

// EvalScript evaluates ScriptString inline.
type EvalScript struct {
	BaseCommand  `yaml:",inline"`
	ScriptString string `yaml:"script"`
}

func (c *EvalScript) Type() CommandType { return CmdEvalScript }
func (c *EvalScript) Describe() string  { return "Eval script" }

// WaitForAnimationToEnd blocks until the UI settles or TimeoutMs elapses.
type WaitForAnimationToEnd struct {
	BaseCommand `yaml:",inline"`
	TimeoutMs   int `yaml:"timeout"`
}

func (c *WaitForAnimationToEnd) Type() CommandType { return CmdWaitForAnimationToEnd }
func (c *WaitForAnimationToEnd) Describe() string  { return "Wait for animation to end" }

// MockNetwork (re)configures the network proxy from the rule file at Path.
type MockNetwork struct {
	BaseCommand `yaml:",inline"`
	Path        string `yaml:"path"`
}

func (c *MockNetwork) Type() CommandType { return CmdMockNetwork }
func (c *MockNetwork) Describe() string  { return "Mock network " + c.Path }

// Travel mock-relocates the device through Points in order, one SetLocation
// per point. SpeedMPS defaults to 4.0 but does not pace the moves: the
// points are set back to back with no delay between them.
type Travel struct {
	BaseCommand `yaml:",inline"`
	Points      []GeoPoint
	SpeedMPS    float64
}

func (c *Travel) Type() CommandType { return CmdTravel }
func (c *Travel) Describe() string  { return "Travel" }

// AssertOutgoingRequests verifies a captured outgoing request against the
// listed matchers.
type AssertOutgoingRequests struct {
	BaseCommand         `yaml:",inline"`
	Path                string            `yaml:"path"`
	HeadersPresent      []string          `yaml:"headersPresent"`
	HTTPMethodIs        string            `yaml:"httpMethodIs"`
	RequestBodyContains string            `yaml:"requestBodyContains"`
	HeadersAndValues    map[string]string `yaml:"headersAndValues"`
}

func (c *AssertOutgoingRequests) Type() CommandType { return CmdAssertOutgoingRequests }
func (c *AssertOutgoingRequests) Describe() string  { return "Assert outgoing requests" }
