package segment

import (
	"fmt"
	"strings"
)

// ValidateRule checks a single rule against its field's declared value type.
// Pure; the rule is not modified.
func ValidateRule(r Rule) error {
	if r.Field == "" || r.Operator == "" {
		return newError(MissingField, "rule is incomplete")
	}
	if !r.Field.Known() {
		return newError(MissingField, fmt.Sprintf("unknown field %q", r.Field))
	}
	if !r.Operator.Known() {
		return newError(IncompatibleOperator, fmt.Sprintf("unknown operator %q", r.Operator))
	}
	switch r.Field {
	case FieldTotalSpent:
		if _, err := numberValue(r.Value); err != nil {
			return newError(InvalidValue, "total spent must be a valid non-negative number")
		}
	case FieldStatus:
		if r.Operator.Ordering() {
			return newError(IncompatibleOperator,
				fmt.Sprintf("operator %q is not defined for the status field", r.Operator))
		}
		if _, err := statusValue(r.Value); err != nil {
			return newError(InvalidValue, `status must be "active" or "inactive"`)
		}
	}
	return nil
}

// Validate checks a whole rule set: non-empty name, at least one rule, and
// every rule valid. Rules are scanned in order and the first violation is
// reported with its 1-indexed position.
func Validate(rs RuleSet) error {
	if strings.TrimSpace(rs.Name) == "" {
		return newError(MissingField, "segment name is required")
	}
	if len(rs.Rules) == 0 {
		return newError(InvalidRuleSet, "a segment needs at least one rule")
	}
	for i, r := range rs.Rules {
		if err := ValidateRule(r); err != nil {
			return err.(*Error).at(i + 1)
		}
	}
	return nil
}

// Serialize coerces every rule value to its field's declared type and returns
// the wire-ready rule set: numeric values for totalSpent, enum strings for
// status. Form inputs yield strings regardless of semantic type, so this
// conversion is mandatory before submission. Coercion is idempotent. A missing
// logical operator defaults to AND.
func Serialize(rs RuleSet) (RuleSet, error) {
	if err := Validate(rs); err != nil {
		return RuleSet{}, err
	}
	out := RuleSet{
		Name:            strings.TrimSpace(rs.Name),
		Description:     rs.Description,
		Rules:           make([]Rule, len(rs.Rules)),
		LogicalOperator: rs.LogicalOperator,
	}
	if out.LogicalOperator != LogicalOr {
		out.LogicalOperator = LogicalAnd
	}
	for i, r := range rs.Rules {
		coerced := Rule{Field: r.Field, Operator: r.Operator}
		switch r.Field {
		case FieldTotalSpent:
			n, err := numberValue(r.Value)
			if err != nil {
				return RuleSet{}, newError(InvalidValue, err.Error()).at(i + 1)
			}
			coerced.Value = n
		case FieldStatus:
			st, err := statusValue(r.Value)
			if err != nil {
				return RuleSet{}, newError(InvalidValue, err.Error()).at(i + 1)
			}
			coerced.Value = string(st)
		}
		out.Rules[i] = coerced
	}
	return out, nil
}
