package rcve

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine-level failures (spec §7).
var (
	// ErrPlannerOutputInvalid indicates the Planner's structured output could
	// not be parsed or failed schema validation. Treated as an empty plan.
	ErrPlannerOutputInvalid = errors.New("planner output invalid")

	// ErrValidatorOutputInvalid indicates the Validator's structured output
	// could not be parsed. Retried once with identical input; if the retry
	// also fails the run escalates with StopValidatorParseError.
	ErrValidatorOutputInvalid = errors.New("validator output invalid")

	// ErrGlobalTokenLimit indicates tokens_used has reached or exceeded
	// token_budget. Terminal; routes to escalation.
	ErrGlobalTokenLimit = errors.New("global token limit reached")

	// ErrDeadlineExceeded indicates the host cancelled the run. Terminal;
	// in-flight work is discarded and no tokens are charged for it.
	ErrDeadlineExceeded = errors.New("run deadline exceeded")

	// ErrToolNotRegistered indicates a Planner-named tool does not exist in
	// the registry. This is a dispatch-layer defect (not wired), distinct
	// from a tool legitimately returning no observations, and is always
	// logged at error level rather than silently dropped.
	ErrToolNotRegistered = errors.New("tool not registered")
)

// BudgetExhaustedError is raised by the Registry's pre-check when a tool's
// call budget is already spent. The action is dropped and the iteration
// continues; it is never fatal.
type BudgetExhaustedError struct {
	Tool string
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("tool %q budget exhausted", e.Tool)
}

// ToolTimeoutError is raised by the Registry wrapper when a tool invocation
// exceeds its deadline. The call's budget slot is restored.
type ToolTimeoutError struct {
	Tool    string
	Timeout string
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out after %s", e.Tool, e.Timeout)
}

// ToolExecutionError wraps a tool body's own reported failure (spec's
// ToolResult.error). Unlike BudgetExhaustedError and ToolTimeoutError, the
// call still counts against budget: a failed attempt is an attempt.
type ToolExecutionError struct {
	Tool    string
	Kind    ToolErrorKind
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed [%s]: %s", e.Tool, e.Kind, e.Message)
}

// IsBudgetExhausted reports whether err is (or wraps) a BudgetExhaustedError.
func IsBudgetExhausted(err error) bool {
	var e *BudgetExhaustedError
	return errors.As(err, &e)
}

// IsToolTimeout reports whether err is (or wraps) a ToolTimeoutError.
func IsToolTimeout(err error) bool {
	var e *ToolTimeoutError
	return errors.As(err, &e)
}

// IsToolExecutionError reports whether err is (or wraps) a ToolExecutionError.
func IsToolExecutionError(err error) bool {
	var e *ToolExecutionError
	return errors.As(err, &e)
}
