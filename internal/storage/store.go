package storage

import (
	"context"
	"errors"
	"time"

	"crm-messaging-api/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// LogFilter narrows a message log listing.
type LogFilter struct {
	CampaignID string
	Status     model.MessageStatus
}

// Store is the persistence boundary. Postgres backs production; Memory backs
// tests and dev mode.
type Store interface {
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id string) (model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	UpdateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSegments(ctx context.Context) ([]model.Segment, error)
	GetSegment(ctx context.Context, id string) (model.Segment, error)
	CreateSegment(ctx context.Context, s model.Segment) (model.Segment, error)
	UpdateSegment(ctx context.Context, s model.Segment) (model.Segment, error)
	DeleteSegment(ctx context.Context, id string) error

	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
	GetCampaign(ctx context.Context, id string) (model.Campaign, error)
	CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error)
	UpdateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error)
	DeleteCampaign(ctx context.Context, id string) error
	ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error)
	// ClaimCampaign atomically moves a draft or scheduled campaign to
	// sending. claimed is false when another starter got there first.
	ClaimCampaign(ctx context.Context, id string) (c model.Campaign, claimed bool, err error)

	CreateMessageLogs(ctx context.Context, logs []model.MessageLog) error
	ListMessageLogs(ctx context.Context, f LogFilter) ([]model.MessageLog, error)
	GetMessageLog(ctx context.Context, id string) (model.MessageLog, error)
	UpdateMessageLog(ctx context.Context, l model.MessageLog) (model.MessageLog, error)
	DeleteCampaignLogs(ctx context.Context, campaignID string) error
	CountMessages(ctx context.Context, campaignID string) (model.MessageCounts, error)

	DashboardStats(ctx context.Context) (model.DashboardStats, error)
}
