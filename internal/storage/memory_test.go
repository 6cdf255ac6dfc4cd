package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

func TestMemory_CustomerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	c, err := m.CreateCustomer(ctx, model.Customer{Name: "Ada", Status: segment.StatusActive})
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.False(t, c.CreatedAt.IsZero())

	got, err := m.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	c.TotalSpent = 99
	updated, err := m.UpdateCustomer(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 99.0, updated.TotalSpent)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt, "create time is preserved")

	require.NoError(t, m.DeleteCustomer(ctx, c.ID))
	_, err = m.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteCustomer(ctx, c.ID), ErrNotFound)
}

func TestMemory_UpdateMissingRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.UpdateCustomer(ctx, model.Customer{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateSegment(ctx, model.Segment{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateCampaign(ctx, model.Campaign{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateMessageLog(ctx, model.MessageLog{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListDueCampaigns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	mk := func(status model.CampaignStatus, at *time.Time) model.Campaign {
		c, err := m.CreateCampaign(ctx, model.Campaign{Name: "c", Status: status, ScheduledFor: at})
		require.NoError(t, err)
		return c
	}
	due := mk(model.CampaignScheduled, &past)
	mk(model.CampaignScheduled, &future)
	mk(model.CampaignDraft, &past)
	mk(model.CampaignScheduled, nil)

	got, err := m.ListDueCampaigns(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestMemory_ClaimCampaign(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	c, err := m.CreateCampaign(ctx, model.Campaign{Name: "c", Status: model.CampaignDraft})
	require.NoError(t, err)

	claimed, ok, err := m.ClaimCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.CampaignSending, claimed.Status)

	// the second claimer loses and sees the current state
	lost, ok, err := m.ClaimCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.CampaignSending, lost.Status)

	_, _, err = m.ClaimCampaign(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_MessageLogFilterAndCounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateMessageLogs(ctx, []model.MessageLog{
		{CampaignID: "c1", CustomerID: "u1"}, // defaults to pending
		{CampaignID: "c1", CustomerID: "u2", Status: model.MessageSent},
		{CampaignID: "c1", CustomerID: "u3", Status: model.MessageDelivered},
		{CampaignID: "c2", CustomerID: "u4", Status: model.MessageFailed},
	}))

	logs, err := m.ListMessageLogs(ctx, LogFilter{CampaignID: "c1"})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = m.ListMessageLogs(ctx, LogFilter{CampaignID: "c1", Status: model.MessagePending})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u1", logs[0].CustomerID)

	counts, err := m.CountMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.MessageCounts{Total: 3, Pending: 1, Sent: 1, Delivered: 1}, counts)

	require.NoError(t, m.DeleteCampaignLogs(ctx, "c1"))
	counts, err = m.CountMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)

	// the other campaign's logs are untouched
	counts, err = m.CountMessages(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failed)
}

func TestMemory_DashboardStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.CreateCustomer(ctx, model.Customer{Name: "Ada", TotalSpent: 100, Status: segment.StatusActive})
	require.NoError(t, err)
	_, err = m.CreateCustomer(ctx, model.Customer{Name: "Bob", TotalSpent: 25, Status: segment.StatusInactive})
	require.NoError(t, err)
	_, err = m.CreateSegment(ctx, model.Segment{Name: "s"})
	require.NoError(t, err)
	_, err = m.CreateCampaign(ctx, model.Campaign{Name: "c", Status: model.CampaignDraft})
	require.NoError(t, err)
	_, err = m.CreateCampaign(ctx, model.Campaign{Name: "c2", Status: model.CampaignSent})
	require.NoError(t, err)

	stats, err := m.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 1, stats.ActiveCustomers)
	assert.Equal(t, 125.0, stats.TotalRevenue)
	assert.Equal(t, 1, stats.TotalSegments)
	assert.Equal(t, 2, stats.TotalCampaigns)
	assert.Equal(t, 1, stats.CampaignsByStatus[model.CampaignDraft])
	assert.Equal(t, 1, stats.CampaignsByStatus[model.CampaignSent])
}

func TestMemory_SegmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	s, err := m.CreateSegment(ctx, model.Segment{
		Name:            "spenders",
		Rules:           []segment.Rule{{Field: segment.FieldTotalSpent, Operator: segment.OpGreater, Value: 50.0}},
		LogicalOperator: segment.LogicalAnd,
		EstimatedSize:   3,
	})
	require.NoError(t, err)

	got, err := m.GetSegment(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	list, err := m.ListSegments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, m.DeleteSegment(ctx, s.ID))
	_, err = m.GetSegment(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
