package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want Violation // "" means valid
	}{
		{"valid numeric", Rule{FieldTotalSpent, OpGreater, "42"}, ""},
		{"valid numeric float", Rule{FieldTotalSpent, OpLessEq, 19.99}, ""},
		{"valid status eq", Rule{FieldStatus, OpEqual, "active"}, ""},
		{"valid status ne", Rule{FieldStatus, OpNotEqual, "inactive"}, ""},
		{"empty field", Rule{"", OpGreater, "1"}, MissingField},
		{"empty operator", Rule{FieldTotalSpent, "", "1"}, MissingField},
		{"unknown field", Rule{"email", OpEqual, "x"}, MissingField},
		{"unknown operator", Rule{FieldTotalSpent, "~", "1"}, IncompatibleOperator},
		{"not a number", Rule{FieldTotalSpent, OpGreater, "abc"}, InvalidValue},
		{"empty amount", Rule{FieldTotalSpent, OpGreater, ""}, InvalidValue},
		{"negative amount", Rule{FieldTotalSpent, OpGreater, "-5"}, InvalidValue},
		{"bad status", Rule{FieldStatus, OpEqual, "archived"}, InvalidValue},
		{"ordering on status", Rule{FieldStatus, OpGreater, "active"}, IncompatibleOperator},
		{"ordering on status le", Rule{FieldStatus, OpLessEq, "inactive"}, IncompatibleOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, ViolationOf(err))
		})
	}
}

func TestValidate_ReportsFirstViolationInOrder(t *testing.T) {
	rs := RuleSet{
		Name: "s",
		Rules: []Rule{
			{FieldTotalSpent, OpGreater, "10"},
			{FieldTotalSpent, OpGreater, "abc"},
			{FieldStatus, OpEqual, "archived"},
		},
	}
	err := Validate(rs)
	require.Error(t, err)
	assert.Equal(t, InvalidValue, ViolationOf(err))
	assert.Equal(t, 2, err.(*Error).RuleIndex)
	assert.Contains(t, err.Error(), "Rule #2:")
}

func TestValidate_EmptyRules(t *testing.T) {
	err := Validate(RuleSet{Name: "s"})
	assert.Equal(t, InvalidRuleSet, ViolationOf(err))
}

func TestSerialize_InvalidDraftRejected(t *testing.T) {
	_, err := Serialize(RuleSet{
		Name:  "s",
		Rules: []Rule{{FieldTotalSpent, OpGreater, "abc"}},
	})
	assert.Equal(t, InvalidValue, ViolationOf(err))
}

func TestSerialize_DefaultsLogicalOperator(t *testing.T) {
	rs, err := Serialize(RuleSet{
		Name:  "s",
		Rules: []Rule{{FieldTotalSpent, OpGreater, "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, LogicalAnd, rs.LogicalOperator)
}
