package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

// Memory is an in-process Store used by tests and dev mode. All state lives
// behind one RWMutex; records are copied in and out.
type Memory struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
	segments  map[string]model.Segment
	campaigns map[string]model.Campaign
	logs      map[string]model.MessageLog

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		customers: map[string]model.Customer{},
		segments:  map[string]model.Segment{},
		campaigns: map[string]model.Campaign{},
		logs:      map[string]model.MessageLog{},
		now:       time.Now,
	}
}

func (m *Memory) ListCustomers(_ context.Context) ([]model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateCustomer(_ context.Context, c model.Customer) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.customers[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c model.Customer) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.customers[c.ID]
	if !ok {
		return model.Customer{}, ErrNotFound
	}
	c.CreatedAt = prev.CreatedAt
	c.UpdatedAt = m.now()
	m.customers[c.ID] = c
	return c, nil
}

func (m *Memory) DeleteCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

func (m *Memory) ListSegments(_ context.Context) ([]model.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Segment, 0, len(m.segments))
	for _, s := range m.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *Memory) GetSegment(_ context.Context, id string) (model.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.segments[id]
	if !ok {
		return model.Segment{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) CreateSegment(_ context.Context, s model.Segment) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.segments[s.ID] = s
	return s, nil
}

func (m *Memory) UpdateSegment(_ context.Context, s model.Segment) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.segments[s.ID]
	if !ok {
		return model.Segment{}, ErrNotFound
	}
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = m.now()
	m.segments[s.ID] = s
	return s, nil
}

func (m *Memory) DeleteSegment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segments[id]; !ok {
		return ErrNotFound
	}
	delete(m.segments, id)
	return nil
}

func (m *Memory) ListCampaigns(_ context.Context) ([]model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *Memory) GetCampaign(_ context.Context, id string) (model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return model.Campaign{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateCampaign(_ context.Context, c model.Campaign) (model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.campaigns[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateCampaign(_ context.Context, c model.Campaign) (model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.campaigns[c.ID]
	if !ok {
		return model.Campaign{}, ErrNotFound
	}
	c.CreatedAt = prev.CreatedAt
	c.UpdatedAt = m.now()
	m.campaigns[c.ID] = c
	return c, nil
}

func (m *Memory) DeleteCampaign(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *Memory) ClaimCampaign(_ context.Context, id string) (model.Campaign, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return model.Campaign{}, false, ErrNotFound
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignScheduled {
		return c, false, nil
	}
	c.Status = model.CampaignSending
	c.UpdatedAt = m.now()
	m.campaigns[id] = c
	return c, true, nil
}

func (m *Memory) ListDueCampaigns(_ context.Context, now time.Time) ([]model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Campaign
	for _, c := range m.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledFor != nil && !c.ScheduledFor.After(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateMessageLogs(_ context.Context, logs []model.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, l := range logs {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Status == "" {
			l.Status = model.MessagePending
		}
		l.CreatedAt = now
		l.UpdatedAt = now
		m.logs[l.ID] = l
	}
	return nil
}

func (m *Memory) ListMessageLogs(_ context.Context, f LogFilter) ([]model.MessageLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MessageLog
	for _, l := range m.logs {
		if f.CampaignID != "" && l.CampaignID != f.CampaignID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	// newest first, matching the console's default log view
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetMessageLog(_ context.Context, id string) (model.MessageLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.logs[id]
	if !ok {
		return model.MessageLog{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) UpdateMessageLog(_ context.Context, l model.MessageLog) (model.MessageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.logs[l.ID]
	if !ok {
		return model.MessageLog{}, ErrNotFound
	}
	l.CreatedAt = prev.CreatedAt
	l.UpdatedAt = m.now()
	m.logs[l.ID] = l
	return l, nil
}

func (m *Memory) DeleteCampaignLogs(_ context.Context, campaignID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.logs {
		if l.CampaignID == campaignID {
			delete(m.logs, id)
		}
	}
	return nil
}

func (m *Memory) CountMessages(_ context.Context, campaignID string) (model.MessageCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var counts model.MessageCounts
	for _, l := range m.logs {
		if l.CampaignID != campaignID {
			continue
		}
		counts.Total++
		switch l.Status {
		case model.MessagePending:
			counts.Pending++
		case model.MessageSent:
			counts.Sent++
		case model.MessageDelivered:
			counts.Delivered++
		case model.MessageFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (m *Memory) DashboardStats(_ context.Context) (model.DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := model.DashboardStats{
		TotalCustomers:    len(m.customers),
		TotalSegments:     len(m.segments),
		TotalCampaigns:    len(m.campaigns),
		CampaignsByStatus: map[model.CampaignStatus]int{},
		MessagesByStatus:  map[model.MessageStatus]int{},
	}
	for _, c := range m.customers {
		if c.Status == segment.StatusActive {
			stats.ActiveCustomers++
		}
		stats.TotalRevenue += c.TotalSpent
	}
	for _, c := range m.campaigns {
		stats.CampaignsByStatus[c.Status]++
	}
	for _, l := range m.logs {
		stats.MessagesByStatus[l.Status]++
	}
	return stats, nil
}

func olderFirst(a, b time.Time, aid, bid string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aid < bid
}
