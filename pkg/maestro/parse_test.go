package maestro

import "testing"

func TestParseFlow_StepsOnly(t *testing.T) {
	data := []byte(`
- tapOn: "Login"
- inputText: "hello"
- back
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commands) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(commands))
	}

	tap, ok := commands[0].(*TapOnElement)
	if !ok {
		t.Fatalf("expected *TapOnElement, got %T", commands[0])
	}
	if tap.Selector.TextRegex != "Login" {
		t.Errorf("got TextRegex=%q, want Login", tap.Selector.TextRegex)
	}

	input, ok := commands[1].(*InputText)
	if !ok {
		t.Fatalf("expected *InputText, got %T", commands[1])
	}
	if input.Text != "hello" {
		t.Errorf("got Text=%q, want hello", input.Text)
	}

	if _, ok := commands[2].(*BackPress); !ok {
		t.Fatalf("expected *BackPress, got %T", commands[2])
	}
}

func TestParseFlow_WithConfig(t *testing.T) {
	data := []byte(`
appId: com.example.app
---
- tapOn: "Login"
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("expected config + 1 step, got %d commands", len(commands))
	}

	cfg, ok := commands[0].(*ApplyConfiguration)
	if !ok {
		t.Fatalf("expected *ApplyConfiguration first, got %T", commands[0])
	}
	if cfg.Config.AppID != "com.example.app" {
		t.Errorf("got AppID=%q, want com.example.app", cfg.Config.AppID)
	}

	if _, ok := commands[1].(*TapOnElement); !ok {
		t.Fatalf("expected *TapOnElement second, got %T", commands[1])
	}
}

func TestParseFlow_RepeatWithSubCommands(t *testing.T) {
	data := []byte(`
- repeat:
    times: "3"
    commands:
      - tapOn: "Retry"
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repeat, ok := commands[0].(*Repeat)
	if !ok {
		t.Fatalf("expected *Repeat, got %T", commands[0])
	}
	if repeat.Times != "3" {
		t.Errorf("got Times=%q, want 3", repeat.Times)
	}
	if len(repeat.Commands) != 1 {
		t.Fatalf("expected 1 sub-command, got %d", len(repeat.Commands))
	}
	if _, ok := repeat.Commands[0].(*TapOnElement); !ok {
		t.Fatalf("expected sub-command *TapOnElement, got %T", repeat.Commands[0])
	}
}

func TestParseFlow_TapOnMapping(t *testing.T) {
	data := []byte(`
- tapOn:
    id: login-btn
    optional: true
    longPress: true
    retryTapIfNoChange: false
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tap, ok := commands[0].(*TapOnElement)
	if !ok {
		t.Fatalf("expected *TapOnElement, got %T", commands[0])
	}
	if tap.Selector.IDRegex != "login-btn" {
		t.Errorf("got IDRegex=%q, want login-btn", tap.Selector.IDRegex)
	}
	if !tap.Selector.Optional {
		t.Error("expected Optional selector")
	}
	if !tap.LongPress {
		t.Error("expected LongPress")
	}
	if tap.RetryIfNoChange == nil || *tap.RetryIfNoChange {
		t.Error("expected RetryIfNoChange=false")
	}
}

func TestParseFlow_SwipePoints(t *testing.T) {
	data := []byte(`
- swipe:
    start: "90%,50%"
    end: "10%,50%"
    duration: 400
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sw, ok := commands[0].(*Swipe)
	if !ok {
		t.Fatalf("expected *Swipe, got %T", commands[0])
	}
	if sw.StartRel == nil || sw.StartRel.X != 90 || sw.EndRel == nil || sw.EndRel.X != 10 {
		t.Fatalf("got StartRel=%+v EndRel=%+v", sw.StartRel, sw.EndRel)
	}
	if sw.Duration != 400 {
		t.Errorf("got Duration=%d, want 400", sw.Duration)
	}
}

func TestParseFlow_AssertVisibleLegacy(t *testing.T) {
	data := []byte(`
- assertVisible: "Welcome"
- assertNotVisible:
    id: spinner
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1, ok := commands[0].(*AssertCondition)
	if !ok {
		t.Fatalf("expected *AssertCondition, got %T", commands[0])
	}
	if a1.Condition.Visible == nil || a1.Condition.Visible.TextRegex != "Welcome" {
		t.Errorf("got Visible=%+v", a1.Condition.Visible)
	}

	a2, ok := commands[1].(*AssertCondition)
	if !ok {
		t.Fatalf("expected *AssertCondition, got %T", commands[1])
	}
	if a2.Condition.NotVisible == nil || a2.Condition.NotVisible.IDRegex != "spinner" {
		t.Errorf("got NotVisible=%+v", a2.Condition.NotVisible)
	}
}

func TestParseFlow_Travel(t *testing.T) {
	data := []byte(`
- travel:
    points:
      - "52.3599976,4.8830301"
      - "52.3674204,4.8900126"
    speedMPS: 8.5
`)
	commands, err := ParseFlow(data, "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, ok := commands[0].(*Travel)
	if !ok {
		t.Fatalf("expected *Travel, got %T", commands[0])
	}
	if len(tr.Points) != 2 || tr.Points[0].Latitude != 52.3599976 {
		t.Fatalf("got Points=%+v", tr.Points)
	}
	if tr.SpeedMPS != 8.5 {
		t.Errorf("got SpeedMPS=%v, want 8.5", tr.SpeedMPS)
	}
}

func TestParseGeoPoint_Invalid(t *testing.T) {
	if _, err := parseGeoPoint("not-a-point"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := parseGeoPoint("52.1,abc"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFlow_UnknownCommand(t *testing.T) {
	data := []byte(`
- notACommand: "x"
`)
	if _, err := ParseFlow(data, "test.yaml"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
