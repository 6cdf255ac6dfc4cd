package model

import (
	"time"

	"crm-messaging-api/internal/segment"
)

// Customer is a CRM customer record. Rule evaluation only reads totalSpent and
// status; the remaining fields are display data passed through untouched.
type Customer struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Email      string                 `json:"email"`
	Phone      string                 `json:"phone"`
	TotalSpent float64                `json:"totalSpent"`
	Status     segment.CustomerStatus `json:"status"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Subject projects the customer onto the attributes rules predicate on.
func (c Customer) Subject() segment.Subject {
	return segment.Subject{TotalSpent: c.TotalSpent, Status: c.Status}
}

// Segment is a persisted rule set plus identity and the server-computed
// membership estimate.
type Segment struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	Rules           []segment.Rule          `json:"rules"`
	LogicalOperator segment.LogicalOperator `json:"logicalOperator"`
	EstimatedSize   int                     `json:"estimatedSize"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// RuleSet returns the segment's rule set for evaluation.
func (s Segment) RuleSet() segment.RuleSet {
	return segment.RuleSet{
		Name:            s.Name,
		Description:     s.Description,
		Rules:           s.Rules,
		LogicalOperator: s.LogicalOperator,
	}
}

// CampaignStatus is the campaign lifecycle state. A campaign is claimed into
// sending when its audience is materialized and moves to sent once dispatch
// has drained; failed means materialization broke after the claim.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignSent, CampaignFailed:
		return true
	}
	return false
}

// Campaign is a scheduled message send targeting one segment. SegmentID is a
// snapshot reference: membership is materialized once when the campaign is
// started, not joined live.
type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SegmentID    string         `json:"segmentId"`
	Message      string         `json:"message"`
	ScheduledFor *time.Time     `json:"scheduledFor,omitempty"`
	Status       CampaignStatus `json:"status"`
	// TotalRecipients is fixed when membership is materialized on start and
	// zeroed again on reset.
	TotalRecipients int       `json:"totalRecipients"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// MessageStatus is the per-message delivery state. A message is created
// pending, moves to sent or failed when handed to the vendor, and to delivered
// when the vendor's receipt arrives.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

func (s MessageStatus) Valid() bool {
	switch s {
	case MessagePending, MessageSent, MessageDelivered, MessageFailed:
		return true
	}
	return false
}

// MessageLog is one outbound message to one customer for one campaign.
type MessageLog struct {
	ID            string        `json:"id"`
	CampaignID    string        `json:"campaignId"`
	CustomerID    string        `json:"customerId"`
	Message       string        `json:"message"`
	Status        MessageStatus `json:"status"`
	FailureReason string        `json:"failureReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// CampaignProgress is the delivery report for one campaign.
type CampaignProgress struct {
	Percentage int           `json:"percentage"`
	Stats      MessageCounts `json:"stats"`
}

// MessageCounts is a per-status message tally.
type MessageCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Processed counts messages that are past the pending state.
func (m MessageCounts) Processed() int {
	return m.Sent + m.Delivered + m.Failed
}

// DashboardStats is the aggregate view served to the console dashboard.
type DashboardStats struct {
	TotalCustomers    int                    `json:"totalCustomers"`
	ActiveCustomers   int                    `json:"activeCustomers"`
	TotalRevenue      float64                `json:"totalRevenue"`
	TotalSegments     int                    `json:"totalSegments"`
	TotalCampaigns    int                    `json:"totalCampaigns"`
	CampaignsByStatus map[CampaignStatus]int `json:"campaignsByStatus"`
	MessagesByStatus  map[MessageStatus]int  `json:"messagesByStatus"`
}
