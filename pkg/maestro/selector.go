package maestro

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ElementSelector is a declarative, independently-composable query over the
// view hierarchy. Every non-zero field narrows the match; all present
// constraints are AND-combined by the Selector Filter Builder (filter.go).
type ElementSelector struct {
	TextRegex string
	IDRegex   string

	Width     int
	Height    int
	Tolerance int

	Below               *ElementSelector
	Above               *ElementSelector
	LeftOf              *ElementSelector
	RightOf             *ElementSelector
	ContainsChild       *ElementSelector
	ContainsDescendants []*ElementSelector

	Traits []string

	Enabled  *bool
	Selected *bool
	Checked  *bool
	Focused  *bool

	Index string

	Optional bool
}

// selectorRaw mirrors ElementSelector's YAML shape so UnmarshalYAML can
// decode a full mapping node without recursing into itself.
type selectorRaw struct {
	Text                string             `yaml:"text"`
	Element             string             `yaml:"element"`
	ID                  string             `yaml:"id"`
	Width               int                `yaml:"width"`
	Height              int                `yaml:"height"`
	Tolerance           int                `yaml:"tolerance"`
	Below               *ElementSelector   `yaml:"below"`
	Above               *ElementSelector   `yaml:"above"`
	LeftOf              *ElementSelector   `yaml:"leftOf"`
	RightOf             *ElementSelector   `yaml:"rightOf"`
	ContainsChild       *ElementSelector   `yaml:"containsChild"`
	ContainsDescendants []*ElementSelector `yaml:"containsDescendants"`
	Traits              string             `yaml:"traits"`
	Enabled             *bool              `yaml:"enabled"`
	Selected            *bool              `yaml:"selected"`
	Checked             *bool              `yaml:"checked"`
	Focused             *bool              `yaml:"focused"`
	Index               string             `yaml:"index"`
	Optional            *bool              `yaml:"optional"`
}

// UnmarshalYAML allows a selector to be written as a bare scalar string
// (shorthand for textRegex) or as a full mapping.
func (s *ElementSelector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.TextRegex = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.TextRegex = raw.Text
	if raw.Element != "" && s.TextRegex == "" {
		s.TextRegex = raw.Element
	}
	s.IDRegex = raw.ID
	s.Width = raw.Width
	s.Height = raw.Height
	s.Tolerance = raw.Tolerance
	s.Below = raw.Below
	s.Above = raw.Above
	s.LeftOf = raw.LeftOf
	s.RightOf = raw.RightOf
	s.ContainsChild = raw.ContainsChild
	s.ContainsDescendants = raw.ContainsDescendants
	s.Traits = splitCommaList(raw.Traits)
	s.Enabled = raw.Enabled
	s.Selected = raw.Selected
	s.Checked = raw.Checked
	s.Focused = raw.Focused
	s.Index = raw.Index
	if raw.Optional != nil {
		s.Optional = *raw.Optional
	}
	return nil
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsEmpty reports whether no selector constraint is set.
func (s *ElementSelector) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.TextRegex == "" &&
		s.IDRegex == "" &&
		s.Width == 0 && s.Height == 0 &&
		s.Below == nil && s.Above == nil &&
		s.LeftOf == nil && s.RightOf == nil &&
		s.ContainsChild == nil && len(s.ContainsDescendants) == 0 &&
		len(s.Traits) == 0 &&
		s.Enabled == nil && s.Selected == nil && s.Checked == nil && s.Focused == nil
}

// Describe returns a short human-readable token for error messages; full
// descriptions are assembled by the filter builder from each constraint.
func (s *ElementSelector) Describe() string {
	switch {
	case s == nil:
		return ""
	case s.TextRegex != "":
		return s.TextRegex
	case s.IDRegex != "":
		return "id:" + s.IDRegex
	default:
		return ""
	}
}
