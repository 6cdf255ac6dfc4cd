package segment

// Draft is an in-memory rule set under construction. Each builder owns its
// draft exclusively; there is no persisted intermediate state.
type Draft struct {
	Name            string
	Description     string
	Rules           []Rule
	LogicalOperator LogicalOperator
}

// DefaultRule is the rule appended by AddRule, matching a fresh form row.
func DefaultRule() Rule {
	return Rule{Field: FieldTotalSpent, Operator: OpGreater, Value: ""}
}

// NewDraft returns a draft with one default rule and AND combining.
func NewDraft() *Draft {
	return &Draft{
		Rules:           []Rule{DefaultRule()},
		LogicalOperator: LogicalAnd,
	}
}

// AddRule appends a default rule to the draft.
func (d *Draft) AddRule() {
	d.Rules = append(d.Rules, DefaultRule())
}

// RemoveRule deletes the rule at the given 0-based index. Removing the last
// remaining rule is rejected and the draft is left unchanged.
func (d *Draft) RemoveRule(index int) error {
	if index < 0 || index >= len(d.Rules) {
		return newError(InvalidRuleSet, "rule index out of range")
	}
	if len(d.Rules) == 1 {
		return newError(CannotRemoveLastRule, "a segment needs at least one rule")
	}
	d.Rules = append(d.Rules[:index], d.Rules[index+1:]...)
	return nil
}

// RulePatch is a partial update to one rule. Nil fields are left unchanged.
type RulePatch struct {
	Field    *Field
	Operator *Operator
	Value    any // nil means unchanged
}

// UpdateRule applies a patch to the rule at the given 0-based index. Changing
// a rule's field resets its value to a type-appropriate default (status ->
// "active", totalSpent -> "") so a now-numeric rule never holds a stale enum
// string or vice versa. An explicit Value in the same patch wins over the
// reset.
func (d *Draft) UpdateRule(index int, patch RulePatch) error {
	if index < 0 || index >= len(d.Rules) {
		return newError(InvalidRuleSet, "rule index out of range")
	}
	r := &d.Rules[index]
	if patch.Field != nil && *patch.Field != r.Field {
		r.Field = *patch.Field
		switch r.Field {
		case FieldStatus:
			r.Value = string(StatusActive)
		default:
			r.Value = ""
		}
	}
	if patch.Operator != nil {
		r.Operator = *patch.Operator
	}
	if patch.Value != nil {
		r.Value = patch.Value
	}
	return nil
}

// RuleSet returns the draft's current rule set without coercion.
func (d *Draft) RuleSet() RuleSet {
	rules := make([]Rule, len(d.Rules))
	copy(rules, d.Rules)
	return RuleSet{
		Name:            d.Name,
		Description:     d.Description,
		Rules:           rules,
		LogicalOperator: d.LogicalOperator,
	}
}

// Validate checks the draft as a whole, reporting the first violation found.
func (d *Draft) Validate() error {
	return Validate(d.RuleSet())
}

// Serialize validates and coerces the draft into its wire representation.
func (d *Draft) Serialize() (RuleSet, error) {
	return Serialize(d.RuleSet())
}
