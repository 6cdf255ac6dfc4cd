package segment

// Subject is the minimal customer view membership evaluation needs. Display
// fields (name, email, ...) are opaque to the evaluator.
type Subject struct {
	TotalSpent float64
	Status     CustomerStatus
}

func (s Subject) fieldValue(f Field) (any, bool) {
	switch f {
	case FieldTotalSpent:
		return s.TotalSpent, true
	case FieldStatus:
		return s.Status, true
	}
	return nil, false
}

// Evaluate computes segment membership for one customer. Rules are pure
// predicates combined by the rule set's logical operator; evaluation
// short-circuits but order never affects the result. A rule over a field the
// subject does not carry evaluates to false rather than raising, so aggregate
// counting stays total for partially populated records. An empty rule list is
// an InvalidRuleSet error.
func Evaluate(rs RuleSet, sub Subject) (bool, error) {
	if len(rs.Rules) == 0 {
		return false, newError(InvalidRuleSet, "rule set has no rules")
	}
	or := rs.LogicalOperator == LogicalOr
	for _, r := range rs.Rules {
		res := evalRule(r, sub)
		if or && res {
			return true, nil
		}
		if !or && !res {
			return false, nil
		}
	}
	return !or, nil
}

func evalRule(r Rule, sub Subject) bool {
	v, ok := sub.fieldValue(r.Field)
	if !ok {
		return false
	}
	switch r.Field {
	case FieldTotalSpent:
		want, err := numberValue(r.Value)
		if err != nil {
			return false
		}
		return compareNumber(v.(float64), r.Operator, want)
	case FieldStatus:
		want, err := statusValue(r.Value)
		if err != nil {
			return false
		}
		have := v.(CustomerStatus)
		switch r.Operator {
		case OpEqual:
			return have == want
		case OpNotEqual:
			return have != want
		}
		// Ordering on an enum is undefined; degrade to non-membership.
		return false
	}
	return false
}

func compareNumber(have float64, op Operator, want float64) bool {
	switch op {
	case OpGreater:
		return have > want
	case OpLess:
		return have < want
	case OpGreaterEq:
		return have >= want
	case OpLessEq:
		return have <= want
	case OpEqual:
		return have == want
	case OpNotEqual:
		return have != want
	}
	return false
}
