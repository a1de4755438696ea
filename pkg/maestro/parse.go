package maestro

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError carries the source file and line a YAML parse failure
// occurred at, the way the teacher's flow.ParseError does.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFlow parses a Maestro-style flow file: an optional leading
// "---"-delimited config document (appId, initFlow) followed by the command
// list. When a config document is present, its payload is synthesized into
// a leading ApplyConfiguration command, matching the in-memory semantics
// described in the design notes (the first ApplyConfiguration command
// carries the flow's config).
func ParseFlow(data []byte, sourcePath string) ([]Command, error) {
	parts := splitYAMLDocuments(string(data))
	if len(parts) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty flow file"}
	}

	var configDoc, stepsDoc string
	if len(parts) == 1 {
		stepsDoc = parts[0]
	} else {
		configDoc, stepsDoc = parts[0], parts[1]
	}

	var commands []Command
	if strings.TrimSpace(configDoc) != "" {
		cfg, err := parseConfigDoc(configDoc, sourcePath)
		if err != nil {
			return nil, err
		}
		commands = append(commands, &ApplyConfiguration{Config: cfg})
	}

	steps, err := parseCommandList(stepsDoc, sourcePath)
	if err != nil {
		return nil, err
	}
	return append(commands, steps...), nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inMultiline := false
	multilineIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inMultiline {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inMultiline = true
				if i+1 < len(lines) {
					next := lines[i+1]
					multilineIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < multilineIndent {
				inMultiline = false
			}
		}

		if !inMultiline && trimmed == "---" {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		parts = append(parts, current.String())
	}
	return parts
}

type configRaw struct {
	AppID    string     `yaml:"appId"`
	InitFlow *yaml.Node `yaml:"initFlow"`
}

func parseConfigDoc(content, sourcePath string) (MaestroConfig, error) {
	var raw configRaw
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return MaestroConfig{}, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid config: %v", err)}
	}

	cfg := MaestroConfig{AppID: raw.AppID}
	if raw.InitFlow != nil {
		commands, err := decodeCommandListNode(raw.InitFlow, sourcePath)
		if err != nil {
			return MaestroConfig{}, err
		}
		cfg.InitFlow = &InitFlow{Commands: commands}
	}
	return cfg, nil
}

func parseCommandList(content, sourcePath string) ([]Command, error) {
	var rawCommands []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawCommands); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid commands: %v", err)}
	}

	commands := make([]Command, 0, len(rawCommands))
	for i := range rawCommands {
		cmd, err := parseCommandNode(&rawCommands[i], sourcePath)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func decodeCommandListNode(node *yaml.Node, sourcePath string) ([]Command, error) {
	var raw []yaml.Node
	if err := node.Decode(&raw); err != nil {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: err.Error()}
	}
	commands := make([]Command, 0, len(raw))
	for i := range raw {
		cmd, err := parseCommandNode(&raw[i], sourcePath)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// commandTypeKeys maps a flow's YAML key to the CommandType it selects.
var commandTypeKeys = map[string]CommandType{
	"tapOn":                  CmdTapOnElement,
	"tapOnPoint":             CmdTapOnPoint,
	"tapOnPointV2":           CmdTapOnPointV2,
	"back":                   CmdBackPress,
	"hideKeyboard":           CmdHideKeyboard,
	"scroll":                 CmdScroll,
	"clearKeychain":          CmdClearKeychain,
	"pasteText":              CmdPaste,
	"applyConfiguration":     CmdApplyConfiguration,
	"swipe":                  CmdSwipe,
	"scrollUntilVisible":     CmdScrollUntilVisible,
	"copyTextFrom":           CmdCopyTextFrom,
	"assertCondition":        CmdAssertCondition,
	"assertTrue":             CmdAssertCondition,
	"assertVisible":          CmdAssertCondition,
	"assertNotVisible":       CmdAssertCondition,
	"inputText":              CmdInputText,
	"inputRandomText":        CmdInputRandom,
	"launchApp":              CmdLaunchApp,
	"openLink":               CmdOpenLink,
	"pressKey":               CmdPressKey,
	"eraseText":              CmdEraseText,
	"takeScreenshot":         CmdTakeScreenshot,
	"stopApp":                CmdStopApp,
	"clearState":             CmdClearState,
	"runFlow":                CmdRunFlow,
	"setLocation":            CmdSetLocation,
	"repeat":                 CmdRepeat,
	"defineVariables":        CmdDefineVariables,
	"runScript":              CmdRunScript,
	"evalScript":             CmdEvalScript,
	"waitForAnimationToEnd":  CmdWaitForAnimationToEnd,
	"mockNetwork":            CmdMockNetwork,
	"travel":                 CmdTravel,
	"assertOutgoingRequests": CmdAssertOutgoingRequests,
}

func extractCommandType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if _, ok := commandTypeKeys[key]; ok {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func parseCommandNode(node *yaml.Node, sourcePath string) (Command, error) {
	if node.Kind == yaml.ScalarNode {
		key := node.Value
		if _, ok := commandTypeKeys[key]; !ok {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown command: %s", key)}
		}
		empty := &yaml.Node{Kind: yaml.MappingNode}
		return decodeCommand(key, empty, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "command must be a mapping or command name"}
	}

	key, valueNode := extractCommandType(node)
	if key == "" {
		return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: "unknown command"}
	}
	return decodeCommand(key, valueNode, sourcePath)
}

func wrapParseErr(sourcePath string, line int, err error) error {
	return &ParseError{Path: sourcePath, Line: line, Message: err.Error()}
}

// applySwipePoints decodes a swipe's start/end point strings: "x%,y%" pairs
// become relative points, "x,y" pairs absolute ones. Both must be the same
// kind.
func applySwipePoints(s *Swipe, start, end string) error {
	startRel, startAbs, err := parseSwipePoint(start)
	if err != nil {
		return err
	}
	endRel, endAbs, err := parseSwipePoint(end)
	if err != nil {
		return err
	}
	switch {
	case startRel != nil && endRel != nil:
		s.StartRel, s.EndRel = startRel, endRel
	case startAbs != nil && endAbs != nil:
		s.StartPoint, s.EndPoint = startAbs, endAbs
	default:
		return fmt.Errorf("swipe start/end must both be absolute or both relative: %q, %q", start, end)
	}
	return nil
}

func parseSwipePoint(value string) (*RelativePoint, *struct{ X, Y int }, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid swipe point %q", value)
	}
	xStr, yStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	if strings.HasSuffix(xStr, "%") && strings.HasSuffix(yStr, "%") {
		x, err1 := strconv.Atoi(strings.TrimSuffix(xStr, "%"))
		y, err2 := strconv.Atoi(strings.TrimSuffix(yStr, "%"))
		if err1 != nil || err2 != nil || x < 0 || x > 100 || y < 0 || y > 100 {
			return nil, nil, fmt.Errorf("invalid relative swipe point %q", value)
		}
		return &RelativePoint{X: x, Y: y}, nil, nil
	}

	x, err1 := strconv.Atoi(xStr)
	y, err2 := strconv.Atoi(yStr)
	if err1 != nil || err2 != nil {
		return nil, nil, fmt.Errorf("invalid swipe point %q", value)
	}
	return nil, &struct{ X, Y int }{X: x, Y: y}, nil
}

// parseGeoPoint decodes a "lat,lng" travel waypoint.
func parseGeoPoint(value string) (GeoPoint, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return GeoPoint{}, fmt.Errorf("invalid travel point %q", value)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return GeoPoint{}, fmt.Errorf("invalid travel point %q", value)
	}
	return GeoPoint{Latitude: lat, Longitude: lng}, nil
}

// parseFlowFile loads a runFlow file reference, resolved relative to the
// referencing flow, dropping any leading config document: a sub-flow borrows
// the parent's configuration.
func parseFlowFile(sourcePath, file string, line int) ([]Command, error) {
	path := filepath.Join(filepath.Dir(sourcePath), file)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Line: line, Message: fmt.Sprintf("runFlow: %v", err)}
	}
	commands, err := ParseFlow(data, path)
	if err != nil {
		return nil, err
	}
	out := commands[:0]
	for _, c := range commands {
		if _, ok := c.(*ApplyConfiguration); ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

//nolint:gocyclo
func decodeCommand(key string, v *yaml.Node, sourcePath string) (Command, error) {
	switch key {
	case "tapOn":
		var s TapOnElement
		if v.Kind == yaml.ScalarNode {
			s.Selector.TextRegex = v.Value
			return &s, nil
		}
		// the selector keys live inline next to the tap options, so the
		// same mapping decodes twice: once for options, once as a selector
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		if err := v.Decode(&s.Selector); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "tapOnPoint":
		var s TapOnPoint
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "tapOnPointV2":
		var s TapOnPointV2
		if v.Kind == yaml.ScalarNode {
			s.Point = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "back":
		return &BackPress{}, nil
	case "hideKeyboard":
		return &HideKeyboard{}, nil
	case "scroll":
		return &Scroll{}, nil
	case "clearKeychain":
		return &ClearKeychain{}, nil
	case "pasteText":
		return &Paste{}, nil

	case "applyConfiguration":
		var cfgRaw configRaw
		if err := v.Decode(&cfgRaw); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		cfg := MaestroConfig{AppID: cfgRaw.AppID}
		if cfgRaw.InitFlow != nil {
			commands, err := decodeCommandListNode(cfgRaw.InitFlow, sourcePath)
			if err != nil {
				return nil, err
			}
			cfg.InitFlow = &InitFlow{Commands: commands}
		}
		return &ApplyConfiguration{Config: cfg}, nil

	case "swipe":
		var s Swipe
		if v.Kind == yaml.ScalarNode {
			s.Direction = Direction(strings.ToUpper(v.Value))
			return &s, nil
		}
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		var raw struct {
			From  *ElementSelector `yaml:"from"`
			Start string           `yaml:"start"`
			End   string           `yaml:"end"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		s.Selector = raw.From
		if raw.Start != "" && raw.End != "" {
			if err := applySwipePoints(&s, raw.Start, raw.End); err != nil {
				return nil, &ParseError{Path: sourcePath, Line: v.Line, Message: err.Error()}
			}
		}
		return &s, nil

	case "scrollUntilVisible":
		var s ScrollUntilVisible
		if v.Kind == yaml.ScalarNode {
			s.Selector.TextRegex = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "copyTextFrom":
		var s CopyTextFrom
		if v.Kind == yaml.ScalarNode {
			s.Selector.TextRegex = v.Value
			return &s, nil
		}
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		if err := v.Decode(&s.Selector); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "assertCondition", "assertTrue":
		var s AssertCondition
		if v.Kind == yaml.ScalarNode {
			s.Condition.ScriptCondition = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	// legacy assert forms, folded into AssertCondition
	case "assertVisible", "assertNotVisible":
		var sel ElementSelector
		if err := v.Decode(&sel); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		s := &AssertCondition{}
		if key == "assertVisible" {
			s.Condition.Visible = &sel
		} else {
			s.Condition.NotVisible = &sel
		}
		return s, nil

	case "inputText":
		var s InputText
		if v.Kind == yaml.ScalarNode {
			s.Text = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "inputRandomText":
		var s InputRandom
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "launchApp":
		var s LaunchApp
		if v.Kind == yaml.ScalarNode {
			s.AppID = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "openLink":
		var s OpenLink
		if v.Kind == yaml.ScalarNode {
			s.Link = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "pressKey":
		var s PressKey
		if v.Kind == yaml.ScalarNode {
			s.Code = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "eraseText":
		var s EraseText
		if v.Kind == yaml.ScalarNode {
			fmt.Sscanf(v.Value, "%d", &s.CharactersToErase)
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "takeScreenshot":
		var s TakeScreenshot
		if v.Kind == yaml.ScalarNode {
			s.Path = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "stopApp":
		var s StopApp
		if v.Kind == yaml.ScalarNode {
			s.AppID = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "clearState":
		var s ClearState
		if v.Kind == yaml.ScalarNode {
			s.AppID = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "runFlow":
		var raw struct {
			Commands  []yaml.Node `yaml:"commands"`
			File      string      `yaml:"file"`
			Condition *Condition  `yaml:"when"`
		}
		if v.Kind == yaml.ScalarNode {
			raw.File = v.Value
		} else if err := v.Decode(&raw); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		s := &RunFlow{Condition: raw.Condition}
		for i := range raw.Commands {
			cmd, err := parseCommandNode(&raw.Commands[i], sourcePath)
			if err != nil {
				return nil, err
			}
			s.Commands = append(s.Commands, cmd)
		}
		if raw.File != "" {
			sub, err := parseFlowFile(sourcePath, raw.File, v.Line)
			if err != nil {
				return nil, err
			}
			s.Commands = append(s.Commands, sub...)
		}
		return s, nil

	case "setLocation":
		var s SetLocation
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "repeat":
		var raw struct {
			Commands  []yaml.Node `yaml:"commands"`
			Times     string      `yaml:"times"`
			Condition *Condition  `yaml:"while"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		s := &Repeat{Times: raw.Times, Condition: raw.Condition}
		for i := range raw.Commands {
			cmd, err := parseCommandNode(&raw.Commands[i], sourcePath)
			if err != nil {
				return nil, err
			}
			s.Commands = append(s.Commands, cmd)
		}
		return s, nil

	case "defineVariables":
		var s DefineVariables
		if err := v.Decode(&s.Variables); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "runScript":
		var s RunScript
		var file string
		if v.Kind == yaml.ScalarNode {
			file = v.Value
		} else {
			if err := v.Decode(&s); err != nil {
				return nil, wrapParseErr(sourcePath, v.Line, err)
			}
			var raw struct {
				File string `yaml:"file"`
			}
			if err := v.Decode(&raw); err != nil {
				return nil, wrapParseErr(sourcePath, v.Line, err)
			}
			file = raw.File
		}
		if file != "" {
			data, err := os.ReadFile(filepath.Join(filepath.Dir(sourcePath), file))
			if err != nil {
				return nil, &ParseError{Path: sourcePath, Line: v.Line, Message: fmt.Sprintf("runScript: %v", err)}
			}
			s.Script = string(data)
			s.SourceDescription = file
		}
		return &s, nil

	case "evalScript":
		var s EvalScript
		if v.Kind == yaml.ScalarNode {
			s.ScriptString = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "waitForAnimationToEnd":
		var s WaitForAnimationToEnd
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "mockNetwork":
		var s MockNetwork
		if v.Kind == yaml.ScalarNode {
			s.Path = v.Value
		} else if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	case "travel":
		var raw struct {
			Points []string `yaml:"points"`
			Speed  float64  `yaml:"speedMPS"`
			Label  string   `yaml:"label"`
		}
		if err := v.Decode(&raw); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		s := &Travel{SpeedMPS: raw.Speed}
		s.CommandLabel = raw.Label
		for _, p := range raw.Points {
			pt, err := parseGeoPoint(p)
			if err != nil {
				return nil, &ParseError{Path: sourcePath, Line: v.Line, Message: err.Error()}
			}
			s.Points = append(s.Points, pt)
		}
		return s, nil

	case "assertOutgoingRequests":
		var s AssertOutgoingRequests
		if err := v.Decode(&s); err != nil {
			return nil, wrapParseErr(sourcePath, v.Line, err)
		}
		return &s, nil

	default:
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("unknown command: %s", key)}
	}
}
