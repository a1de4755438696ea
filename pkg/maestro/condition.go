package maestro

import (
	"strconv"
	"strings"
)

// Platform identifies the target OS a Condition may be scoped to.
type Platform string

const (
	PlatformIOS     Platform = "IOS"
	PlatformAndroid Platform = "ANDROID"
	PlatformWeb     Platform = "WEB"
)

// Condition is interpreted by the Condition Evaluator (condition_eval.go)
// against driver state. All set sub-conditions are AND-combined; a nil
// Condition is vacuously true.
type Condition struct {
	Platform        Platform         `yaml:"platform"`
	Visible         *ElementSelector `yaml:"visible"`
	NotVisible      *ElementSelector `yaml:"notVisible"`
	ScriptCondition string           `yaml:"scriptCondition"`
}

// IsEmpty reports whether the condition carries no constraint at all.
func (c *Condition) IsEmpty() bool {
	return c == nil || (c.Platform == "" && c.Visible == nil && c.NotVisible == nil && c.ScriptCondition == "")
}

// scriptConditionTruthy applies the falsey rule from the reference
// orchestra to an already-evaluated script condition string: blank,
// "false" (any case), "undefined", "null", or numerically 0.0 are false.
func scriptConditionTruthy(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	switch strings.ToLower(trimmed) {
	case "false", "undefined", "null":
		return false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == 0.0 {
		return false
	}
	return true
}
