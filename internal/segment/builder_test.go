package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft_RemoveLastRuleRejected(t *testing.T) {
	d := NewDraft()
	require.Len(t, d.Rules, 1)

	err := d.RemoveRule(0)
	assert.Equal(t, CannotRemoveLastRule, ViolationOf(err))
	assert.Len(t, d.Rules, 1, "draft must be left unchanged")

	d.AddRule()
	require.Len(t, d.Rules, 2)
	assert.NoError(t, d.RemoveRule(1))
	assert.Len(t, d.Rules, 1)
}

func TestDraft_RemoveRuleOutOfRange(t *testing.T) {
	d := NewDraft()
	d.AddRule()
	assert.Equal(t, InvalidRuleSet, ViolationOf(d.RemoveRule(5)))
	assert.Equal(t, InvalidRuleSet, ViolationOf(d.RemoveRule(-1)))
	assert.Len(t, d.Rules, 2)
}

func TestDraft_FieldChangeResetsValue(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.UpdateRule(0, RulePatch{Value: "2500"}))
	assert.Equal(t, "2500", d.Rules[0].Value)

	f := FieldStatus
	require.NoError(t, d.UpdateRule(0, RulePatch{Field: &f}))
	assert.Equal(t, string(StatusActive), d.Rules[0].Value,
		"switching to status defaults the value to active")

	f = FieldTotalSpent
	require.NoError(t, d.UpdateRule(0, RulePatch{Field: &f}))
	assert.Equal(t, "", d.Rules[0].Value,
		"switching to totalSpent clears the value")
}

func TestDraft_SameFieldDoesNotReset(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.UpdateRule(0, RulePatch{Value: "99"}))

	f := FieldTotalSpent
	op := OpLessEq
	require.NoError(t, d.UpdateRule(0, RulePatch{Field: &f, Operator: &op}))
	assert.Equal(t, "99", d.Rules[0].Value)
	assert.Equal(t, OpLessEq, d.Rules[0].Operator)
}

func TestDraft_Validate(t *testing.T) {
	d := NewDraft()
	d.Rules[0].Value = "100"

	err := d.Validate()
	require.Error(t, err, "name is required")
	assert.Equal(t, MissingField, ViolationOf(err))

	d.Name = "High Value Customers"
	assert.NoError(t, d.Validate())

	d.AddRule() // default rule has an empty value
	err = d.Validate()
	require.Error(t, err)
	assert.Equal(t, "Rule #2: total spent must be a valid non-negative number", err.Error())
}

func TestDraft_Serialize(t *testing.T) {
	d := NewDraft()
	d.Name = "spenders"
	d.Rules[0].Value = "42"

	rs, err := d.Serialize()
	require.NoError(t, err)
	assert.Equal(t, 42.0, rs.Rules[0].Value, "string input coerced to number")
	assert.Equal(t, LogicalAnd, rs.LogicalOperator)

	// Serialization is idempotent on an already-coerced rule set.
	again, err := Serialize(rs)
	require.NoError(t, err)
	assert.Equal(t, rs, again)
}

func TestDraft_SerializeStatusRule(t *testing.T) {
	d := NewDraft()
	d.Name = "lapsed"
	f := FieldStatus
	op := OpNotEqual
	require.NoError(t, d.UpdateRule(0, RulePatch{Field: &f, Operator: &op}))
	require.NoError(t, d.UpdateRule(0, RulePatch{Value: "inactive"}))

	rs, err := d.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "inactive", rs.Rules[0].Value)
}
