package maestro

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestElementSelector_UnmarshalYAML_Scalar(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"simple text", `"Login"`, "Login"},
		{"unquoted text", "Submit", "Submit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s ElementSelector
			if err := yaml.Unmarshal([]byte(tt.yaml), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.TextRegex != tt.want {
				t.Errorf("got TextRegex=%q, want %q", s.TextRegex, tt.want)
			}
		})
	}
}

func TestElementSelector_UnmarshalYAML_Struct(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		validate func(t *testing.T, s *ElementSelector)
	}{
		{
			name: "id selector",
			yaml: `id: login-btn`,
			validate: func(t *testing.T, s *ElementSelector) {
				if s.IDRegex != "login-btn" {
					t.Errorf("got IDRegex=%q, want login-btn", s.IDRegex)
				}
			},
		},
		{
			name: "size selector",
			yaml: "width: 100\nheight: 50\ntolerance: 5\n",
			validate: func(t *testing.T, s *ElementSelector) {
				if s.Width != 100 || s.Height != 50 || s.Tolerance != 5 {
					t.Errorf("got %+v", s)
				}
			},
		},
		{
			name: "below relation",
			yaml: "below:\n  text: Title\n",
			validate: func(t *testing.T, s *ElementSelector) {
				if s.Below == nil || s.Below.TextRegex != "Title" {
					t.Errorf("got Below=%+v", s.Below)
				}
			},
		},
		{
			name: "traits list",
			yaml: `traits: "clickable, text_field"`,
			validate: func(t *testing.T, s *ElementSelector) {
				if len(s.Traits) != 2 || s.Traits[0] != "clickable" || s.Traits[1] != "text_field" {
					t.Errorf("got Traits=%#v", s.Traits)
				}
			},
		},
		{
			name: "optional flag",
			yaml: "text: Login\noptional: true\n",
			validate: func(t *testing.T, s *ElementSelector) {
				if !s.Optional {
					t.Errorf("expected Optional=true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s ElementSelector
			if err := yaml.Unmarshal([]byte(tt.yaml), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, &s)
		})
	}
}

func TestElementSelector_IsEmpty(t *testing.T) {
	var s ElementSelector
	if !s.IsEmpty() {
		t.Error("expected zero-value selector to be empty")
	}
	s.TextRegex = "x"
	if s.IsEmpty() {
		t.Error("expected selector with TextRegex to be non-empty")
	}
}
