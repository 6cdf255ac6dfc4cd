package segment

import "fmt"

// Violation classifies a rule or rule-set validation failure.
type Violation string

const (
	MissingField         Violation = "MissingField"
	InvalidValue         Violation = "InvalidValue"
	IncompatibleOperator Violation = "IncompatibleOperator"
	CannotRemoveLastRule Violation = "CannotRemoveLastRule"
	InvalidRuleSet       Violation = "InvalidRuleSet"
)

// Error is a recoverable validation failure, surfaced to the operator as a
// single message identifying the offending rule by 1-indexed position.
type Error struct {
	Violation Violation
	RuleIndex int // 1-based; 0 when not attributable to a single rule
	Detail    string
}

func (e *Error) Error() string {
	if e.RuleIndex > 0 {
		return fmt.Sprintf("Rule #%d: %s", e.RuleIndex, e.Detail)
	}
	return e.Detail
}

func newError(v Violation, detail string) *Error {
	return &Error{Violation: v, Detail: detail}
}

// at returns a copy of the error attributed to the given 1-based rule index.
func (e *Error) at(index int) *Error {
	return &Error{Violation: e.Violation, RuleIndex: index, Detail: e.Detail}
}

// ViolationOf extracts the violation kind from an error, or "" if err is not a
// segment validation error.
func ViolationOf(err error) Violation {
	if se, ok := err.(*Error); ok {
		return se.Violation
	}
	return ""
}
