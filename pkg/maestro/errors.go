package maestro

import "fmt"

// ErrorCategory classifies a failure for callback-side resolution and logging.
type ErrorCategory string

const (
	CategoryAssertion ErrorCategory = "assertion"
	CategoryLookup    ErrorCategory = "lookup"
	CategoryApp       ErrorCategory = "app"
	CategoryInput     ErrorCategory = "input"
	CategoryConfig    ErrorCategory = "config"
	CategoryNetwork   ErrorCategory = "network"
)

// ExecutionError is the structured error for the failure kinds the
// orchestra classifies itself (lookup, assertion, app launch/clear, input,
// invalid command); other driver and script errors reach
// on_command_failed unchanged. It carries enough context
// (category, code, details, an optional hierarchy snapshot) for a host UI to
// render a useful diagnostic without re-deriving it from the raw error text.
type ExecutionError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Hierarchy []byte
	Cause     error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *ExecutionError) WithHierarchy(h []byte) *ExecutionError {
	cp := *e
	cp.Hierarchy = h
	return &cp
}

// ElementNotFoundError is raised by the element lookup on timeout.
func ElementNotFoundError(description string, hierarchy []byte) *ExecutionError {
	return &ExecutionError{
		Category:  CategoryLookup,
		Code:      "element_not_found",
		Message:   fmt.Sprintf("element not found: %s", description),
		Details:   map[string]interface{}{"selector": description},
		Hierarchy: hierarchy,
	}
}

// AssertionFailureError is raised when a non-optional condition evaluates false.
func AssertionFailureError(description string, hierarchy []byte) *ExecutionError {
	return &ExecutionError{
		Category:  CategoryAssertion,
		Code:      "assertion_failure",
		Message:   fmt.Sprintf("assertion failed: %s", description),
		Details:   map[string]interface{}{"condition": description},
		Hierarchy: hierarchy,
	}
}

// OutgoingRequestAssertionFailureError is raised by AssertOutgoingRequests.
func OutgoingRequestAssertionFailureError(description string) *ExecutionError {
	return &ExecutionError{
		Category: CategoryNetwork,
		Code:     "outgoing_request_assertion_failure",
		Message:  fmt.Sprintf("outgoing request assertion failed: %s", description),
		Details:  map[string]interface{}{"matcher": description},
	}
}

// UnableToClearStateError wraps a driver failure while clearing app state.
func UnableToClearStateError(appID string, cause error) *ExecutionError {
	return &ExecutionError{
		Category: CategoryApp,
		Code:     "unable_to_clear_state",
		Message:  fmt.Sprintf("unable to clear state for %s", appID),
		Details:  map[string]interface{}{"appId": appID},
		Cause:    cause,
	}
}

// UnableToLaunchAppError wraps a driver failure while launching an app.
func UnableToLaunchAppError(appID string, cause error) *ExecutionError {
	return &ExecutionError{
		Category: CategoryApp,
		Code:     "unable_to_launch_app",
		Message:  fmt.Sprintf("unable to launch app %s", appID),
		Details:  map[string]interface{}{"appId": appID},
		Cause:    cause,
	}
}

// UnableToCopyTextError is raised when the selected element has no text
// attribute to copy.
func UnableToCopyTextError(description string) *ExecutionError {
	return &ExecutionError{
		Category: CategoryInput,
		Code:     "unable_to_copy_text",
		Message:  fmt.Sprintf("unable to copy text from element: %s", description),
		Details:  map[string]interface{}{"selector": description},
	}
}

// UnicodeNotSupportedError is raised when input text is non-ASCII and the
// driver cannot type unicode.
func UnicodeNotSupportedError(text string) *ExecutionError {
	return &ExecutionError{
		Category: CategoryInput,
		Code:     "unicode_not_supported",
		Message:  "driver does not support unicode input",
		Details:  map[string]interface{}{"text": text},
	}
}

// InvalidCommandError signals a malformed command payload (bad tap-point
// string, illegal swipe argument shape, duplicate ApplyConfiguration, ...).
func InvalidCommandError(reason string) *ExecutionError {
	return &ExecutionError{
		Category: CategoryConfig,
		Code:     "invalid_command",
		Message:  reason,
	}
}

// errCommandSkipped is the internal sentinel signaling that a command was
// intentionally skipped rather than failed: an optional condition came back
// false, or a Repeat never ran an iteration. It is consulted by
// execute_commands and never surfaced through on_command_failed.
type errCommandSkipped struct {
	reason string
}

func (e *errCommandSkipped) Error() string {
	if e.reason == "" {
		return "command skipped"
	}
	return "command skipped: " + e.reason
}

// ErrCommandSkipped constructs the internal skip signal.
func ErrCommandSkipped(reason string) error {
	return &errCommandSkipped{reason: reason}
}

// IsCommandSkipped reports whether err is the internal skip signal.
func IsCommandSkipped(err error) bool {
	_, ok := err.(*errCommandSkipped)
	return ok
}
