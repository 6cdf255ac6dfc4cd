package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
	"crm-messaging-api/internal/storage"
)

// recordingSender counts sends and fails customers on a deny list.
type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	deny  map[string]bool
	sleep time.Duration
}

func (s *recordingSender) Send(_ context.Context, _ model.MessageLog, to model.Customer) error {
	if s.sleep > 0 {
		time.Sleep(s.sleep)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deny[to.ID] {
		return errors.New("vendor rejected")
	}
	s.sent = append(s.sent, to.ID)
	return nil
}

func seed(t *testing.T, store *storage.Memory) (model.Segment, model.Campaign, []model.Customer) {
	t.Helper()
	ctx := context.Background()

	var customers []model.Customer
	for _, c := range []model.Customer{
		{Name: "Ada", Phone: "+1", TotalSpent: 2000, Status: segment.StatusActive},
		{Name: "Bob", Phone: "+2", TotalSpent: 1500, Status: segment.StatusActive},
		{Name: "Cam", Phone: "+3", TotalSpent: 10, Status: segment.StatusActive},
	} {
		created, err := store.CreateCustomer(ctx, c)
		require.NoError(t, err)
		customers = append(customers, created)
	}

	seg, err := store.CreateSegment(ctx, model.Segment{
		Name:            "spenders",
		Rules:           []segment.Rule{{Field: segment.FieldTotalSpent, Operator: segment.OpGreater, Value: 1000.0}},
		LogicalOperator: segment.LogicalAnd,
	})
	require.NoError(t, err)

	c, err := store.CreateCampaign(ctx, model.Campaign{
		Name:      "sale",
		SegmentID: seg.ID,
		Message:   "hello",
		Status:    model.CampaignDraft,
	})
	require.NoError(t, err)
	return seg, c, customers
}

func TestRunner_Start(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, customers := seed(t, store)

	sender := &recordingSender{}
	r := NewRunner(store, sender, 2)

	started, err := r.Start(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignSending, started.Status)
	assert.Equal(t, 2, started.TotalRecipients)
	r.Drain()

	c, err := store.GetCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignSent, c.Status)

	counts, err := store.CountMessages(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total, "only members above the spend threshold")
	assert.Equal(t, 2, counts.Sent)
	assert.Equal(t, 0, counts.Pending)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.ElementsMatch(t, []string{customers[0].ID, customers[1].ID}, sender.sent)
}

func TestRunner_StartTwiceConflicts(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, _ := seed(t, store)

	r := NewRunner(store, &recordingSender{}, 2)
	_, err := r.Start(context.Background(), campaign.ID)
	require.NoError(t, err)
	r.Drain()

	_, err = r.Start(context.Background(), campaign.ID)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRunner_ConcurrentStartsSendOnce(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, _ := seed(t, store)

	// a scheduler tick racing an operator start: the claim lets one through
	r := NewRunner(store, &recordingSender{}, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := r.Start(context.Background(), campaign.ID)
			errs <- err
		}()
	}
	var conflicts int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			require.ErrorIs(t, err, ErrAlreadyStarted)
			conflicts++
		}
	}
	r.Drain()

	assert.Equal(t, 1, conflicts, "exactly one start wins")
	counts, err := store.CountMessages(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total, "membership materialized once")
}

func TestRunner_FailedSendsRecorded(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, customers := seed(t, store)

	sender := &recordingSender{deny: map[string]bool{customers[0].ID: true}}
	r := NewRunner(store, sender, 2)
	_, err := r.Start(context.Background(), campaign.ID)
	require.NoError(t, err)
	r.Drain()

	counts, err := store.CountMessages(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Sent)
	assert.Equal(t, 1, counts.Failed)

	logs, err := store.ListMessageLogs(context.Background(), storage.LogFilter{
		CampaignID: campaign.ID,
		Status:     model.MessageFailed,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, customers[0].ID, logs[0].CustomerID)
	assert.Equal(t, "vendor rejected", logs[0].FailureReason)
}

func TestRunner_StartWithMissingSegmentFails(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	campaign, err := store.CreateCampaign(ctx, model.Campaign{
		Name:      "orphan",
		SegmentID: "gone",
		Message:   "hi",
		Status:    model.CampaignDraft,
	})
	require.NoError(t, err)

	r := NewRunner(store, &recordingSender{}, 1)
	_, err = r.Start(ctx, campaign.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// the claim is not left dangling in sending
	c, err := store.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignFailed, c.Status)
}

func TestRunner_Reset(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, _ := seed(t, store)

	r := NewRunner(store, &recordingSender{}, 2)
	_, err := r.Start(context.Background(), campaign.ID)
	require.NoError(t, err)
	r.Drain()

	c, err := r.Reset(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, 0, c.TotalRecipients)

	counts, err := store.CountMessages(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)

	// a reset campaign can be started again
	_, err = r.Start(context.Background(), campaign.ID)
	assert.NoError(t, err)
	r.Drain()
}

func TestRunner_Progress(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.CreateMessageLogs(ctx, []model.MessageLog{
		{CampaignID: "c1", CustomerID: "u1", Status: model.MessageSent},
		{CampaignID: "c1", CustomerID: "u2", Status: model.MessageDelivered},
		{CampaignID: "c1", CustomerID: "u3", Status: model.MessageFailed},
		{CampaignID: "c1", CustomerID: "u4", Status: model.MessagePending},
	}))

	r := NewRunner(store, &recordingSender{}, 1)
	p, err := r.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stats.Total)
	assert.Equal(t, 75, p.Percentage)

	p, err = r.Progress(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Percentage)
}

func TestRunner_Scheduler(t *testing.T) {
	store := storage.NewMemory()
	_, campaign, _ := seed(t, store)

	past := time.Now().Add(-time.Minute)
	campaign.ScheduledFor = &past
	campaign.Status = model.CampaignScheduled
	_, err := store.UpdateCampaign(context.Background(), campaign)
	require.NoError(t, err)

	r := NewRunner(store, &recordingSender{}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunScheduler(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		c, err := store.GetCampaign(context.Background(), campaign.ID)
		return err == nil && c.Status == model.CampaignSent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	r.Drain()
}
