package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is a customer attribute a rule can predicate on.
type Field string

const (
	FieldTotalSpent Field = "totalSpent"
	FieldStatus     Field = "status"
)

func (f Field) Known() bool {
	switch f {
	case FieldTotalSpent, FieldStatus:
		return true
	}
	return false
}

// Operator is a comparison between a customer attribute and a rule value.
type Operator string

const (
	OpGreater   Operator = ">"
	OpLess      Operator = "<"
	OpGreaterEq Operator = ">="
	OpLessEq    Operator = "<="
	OpEqual     Operator = "=="
	OpNotEqual  Operator = "!="
)

func (o Operator) Known() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEq, OpLessEq, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// Ordering reports whether the operator requires an ordered value type.
func (o Operator) Ordering() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return true
	}
	return false
}

// LogicalOperator combines the results of a rule set's rules.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// CustomerStatus is the closed set of values the status field can hold.
type CustomerStatus string

const (
	StatusActive   CustomerStatus = "active"
	StatusInactive CustomerStatus = "inactive"
)

func (s CustomerStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Rule is a single predicate over one customer attribute. Value carries a raw
// string while the rule is being edited in a form and its declared type (number
// for totalSpent, enum string for status) once serialized.
type Rule struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// RuleSet is an ordered, non-empty collection of rules combined by one logical
// operator. It is the wire shape for segment create/update requests.
type RuleSet struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Rules           []Rule          `json:"rules"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
}

// numberValue converts a rule value to a float64. Form inputs arrive as
// strings, JSON decoding yields float64 or json.Number, and already-serialized
// rule sets carry float64; all are accepted.
func numberValue(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return checkNumber(n)
	case float32:
		return checkNumber(float64(n))
	case int:
		return checkNumber(float64(n))
	case int64:
		return checkNumber(float64(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		return checkNumber(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("empty value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return checkNumber(f)
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}

func checkNumber(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	if f < 0 {
		return 0, fmt.Errorf("negative amount")
	}
	return f, nil
}

// statusValue converts a rule value to a CustomerStatus.
func statusValue(v any) (CustomerStatus, error) {
	s, ok := v.(string)
	if !ok {
		if cs, ok := v.(CustomerStatus); ok {
			s = string(cs)
		} else {
			return "", fmt.Errorf("unsupported value type %T", v)
		}
	}
	st := CustomerStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}
