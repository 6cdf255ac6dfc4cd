package audience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
	"crm-messaging-api/internal/storage"
)

func TestEngine_EstimateAndMembers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	for _, c := range []model.Customer{
		{Name: "Ada", TotalSpent: 2000, Status: segment.StatusActive},
		{Name: "Bob", TotalSpent: 100, Status: segment.StatusActive},
		{Name: "Cam", TotalSpent: 5000, Status: segment.StatusInactive},
	} {
		_, err := store.CreateCustomer(ctx, c)
		require.NoError(t, err)
	}

	eng := NewEngine()
	require.NoError(t, eng.Refresh(ctx, store))

	rs := segment.RuleSet{
		Name: "active spenders",
		Rules: []segment.Rule{
			{Field: segment.FieldTotalSpent, Operator: segment.OpGreater, Value: 1000.0},
			{Field: segment.FieldStatus, Operator: segment.OpEqual, Value: "active"},
		},
		LogicalOperator: segment.LogicalAnd,
	}

	size, err := eng.EstimateSize(rs)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	members, err := eng.Members(rs)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ada", members[0].Name)

	rs.LogicalOperator = segment.LogicalOr
	size, err = eng.EstimateSize(rs)
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestEngine_EmptySnapshot(t *testing.T) {
	eng := NewEngine()
	size, err := eng.EstimateSize(segment.RuleSet{
		Name:  "s",
		Rules: []segment.Rule{{Field: segment.FieldTotalSpent, Operator: segment.OpGreater, Value: 0.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	assert.Empty(t, eng.Customers())
}

func TestEngine_RefreshReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	eng := NewEngine()
	require.NoError(t, eng.Refresh(ctx, store))
	assert.Empty(t, eng.Customers())

	_, err := store.CreateCustomer(ctx, model.Customer{Name: "Ada", Status: segment.StatusActive})
	require.NoError(t, err)
	require.NoError(t, eng.Refresh(ctx, store))
	assert.Len(t, eng.Customers(), 1)
}

func TestEngine_InvalidRuleSet(t *testing.T) {
	eng := NewEngine()
	eng.snap.Store([]model.Customer{{Name: "Ada"}})
	_, err := eng.Members(segment.RuleSet{Name: "s"})
	assert.Equal(t, segment.InvalidRuleSet, segment.ViolationOf(err))
}
