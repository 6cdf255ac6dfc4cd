package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crm-messaging-api/internal/config"
	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

const queryTimeout = 5 * time.Second

// Postgres is the production Store backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg config.Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// PgxPool exposes the pool for the LISTEN/NOTIFY listener.
func (p *Postgres) PgxPool() *pgxpool.Pool {
	if p.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return p.pool
}

func (p *Postgres) ListenChannel() string { return "crm_data_change" }

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

func notFoundErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---- customers ----

const customerCols = `id, name, email, phone, total_spent, status, created_at, updated_at`

func scanCustomer(row pgx.Row) (model.Customer, error) {
	var c model.Customer
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpent, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Customer{}, err
	}
	c.Status = segment.CustomerStatus(status)
	return c, nil
}

func (p *Postgres) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT `+customerCols+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := scanCustomer(p.pool.QueryRow(ctx, `SELECT `+customerCols+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return model.Customer{}, notFoundErr(err)
	}
	return c, nil
}

func (p *Postgres) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, email, phone, total_spent, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+customerCols,
		c.ID, c.Name, c.Email, c.Phone, c.TotalSpent, string(c.Status))
	out, err := scanCustomer(row)
	if err != nil {
		return model.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, total_spent = $5, status = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+customerCols,
		c.ID, c.Name, c.Email, c.Phone, c.TotalSpent, string(c.Status))
	out, err := scanCustomer(row)
	if err != nil {
		return model.Customer{}, notFoundErr(err)
	}
	return out, nil
}

func (p *Postgres) DeleteCustomer(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- segments ----
// Rules are stored as a JSONB column; the wire shape and the column shape are
// the same.

const segmentCols = `id, name, description, rules, logical_operator, estimated_size, created_at, updated_at`

func scanSegment(row pgx.Row) (model.Segment, error) {
	var s model.Segment
	var rules []byte
	var logical string
	err := row.Scan(&s.ID, &s.Name, &s.Description, &rules, &logical, &s.EstimatedSize, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Segment{}, err
	}
	if err := json.Unmarshal(rules, &s.Rules); err != nil {
		return model.Segment{}, fmt.Errorf("decode segment rules: %w", err)
	}
	s.LogicalOperator = segment.LogicalOperator(logical)
	return s, nil
}

func (p *Postgres) ListSegments(ctx context.Context) ([]model.Segment, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT `+segmentCols+` FROM segments ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []model.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSegment(ctx context.Context, id string) (model.Segment, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	s, err := scanSegment(p.pool.QueryRow(ctx, `SELECT `+segmentCols+` FROM segments WHERE id = $1`, id))
	if err != nil {
		return model.Segment{}, notFoundErr(err)
	}
	return s, nil
}

func (p *Postgres) CreateSegment(ctx context.Context, s model.Segment) (model.Segment, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return model.Segment{}, fmt.Errorf("encode segment rules: %w", err)
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO segments (id, name, description, rules, logical_operator, estimated_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+segmentCols,
		s.ID, s.Name, s.Description, rules, string(s.LogicalOperator), s.EstimatedSize)
	out, err := scanSegment(row)
	if err != nil {
		return model.Segment{}, fmt.Errorf("insert segment: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateSegment(ctx context.Context, s model.Segment) (model.Segment, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return model.Segment{}, fmt.Errorf("encode segment rules: %w", err)
	}
	row := p.pool.QueryRow(ctx, `
		UPDATE segments
		SET name = $2, description = $3, rules = $4, logical_operator = $5, estimated_size = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+segmentCols,
		s.ID, s.Name, s.Description, rules, string(s.LogicalOperator), s.EstimatedSize)
	out, err := scanSegment(row)
	if err != nil {
		return model.Segment{}, notFoundErr(err)
	}
	return out, nil
}

func (p *Postgres) DeleteSegment(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- campaigns ----

const campaignCols = `id, name, description, segment_id, message, scheduled_for, status, total_recipients, created_at, updated_at`

func scanCampaign(row pgx.Row) (model.Campaign, error) {
	var c model.Campaign
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.SegmentID, &c.Message, &c.ScheduledFor, &status, &c.TotalRecipients, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Campaign{}, err
	}
	c.Status = model.CampaignStatus(status)
	return c, nil
}

func (p *Postgres) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT `+campaignCols+` FROM campaigns ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetCampaign(ctx context.Context, id string) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := scanCampaign(p.pool.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return model.Campaign{}, notFoundErr(err)
	}
	return c, nil
}

func (p *Postgres) CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO campaigns (id, name, description, segment_id, message, scheduled_for, status, total_recipients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+campaignCols,
		c.ID, c.Name, c.Description, c.SegmentID, c.Message, c.ScheduledFor, string(c.Status), c.TotalRecipients)
	out, err := scanCampaign(row)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET name = $2, description = $3, segment_id = $4, message = $5, scheduled_for = $6, status = $7, total_recipients = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+campaignCols,
		c.ID, c.Name, c.Description, c.SegmentID, c.Message, c.ScheduledFor, string(c.Status), c.TotalRecipients)
	out, err := scanCampaign(row)
	if err != nil {
		return model.Campaign{}, notFoundErr(err)
	}
	return out, nil
}

func (p *Postgres) DeleteCampaign(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimCampaign is the compare-and-set guarding campaign start: the
// conditional UPDATE lets exactly one of any concurrent starters through.
func (p *Postgres) ClaimCampaign(ctx context.Context, id string) (model.Campaign, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET status = 'sending', updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'scheduled')
		RETURNING `+campaignCols, id)
	c, err := scanCampaign(row)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Campaign{}, false, fmt.Errorf("claim campaign: %w", err)
	}
	// No row updated: either the campaign is gone or someone else holds it.
	c, err = p.GetCampaign(ctx, id)
	if err != nil {
		return model.Campaign{}, false, err
	}
	return c, false, nil
}

func (p *Postgres) ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT `+campaignCols+` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_for IS NOT NULL AND scheduled_for <= $1
		ORDER BY scheduled_for, id`, now)
	if err != nil {
		return nil, fmt.Errorf("query due campaigns: %w", err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- message logs ----

const logCols = `id, campaign_id, customer_id, message, status, failure_reason, created_at, updated_at`

func scanLog(row pgx.Row) (model.MessageLog, error) {
	var l model.MessageLog
	var status string
	err := row.Scan(&l.ID, &l.CampaignID, &l.CustomerID, &l.Message, &status, &l.FailureReason, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return model.MessageLog{}, err
	}
	l.Status = model.MessageStatus(status)
	return l, nil
}

func (p *Postgres) CreateMessageLogs(ctx context.Context, logs []model.MessageLog) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, l := range logs {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Status == "" {
			l.Status = model.MessagePending
		}
		batch.Queue(`
			INSERT INTO message_logs (id, campaign_id, customer_id, message, status, failure_reason)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.CampaignID, l.CustomerID, l.Message, string(l.Status), l.FailureReason)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert message log: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ListMessageLogs(ctx context.Context, f LogFilter) ([]model.MessageLog, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + logCols + ` FROM message_logs WHERE 1=1`
	var args []any
	if f.CampaignID != "" {
		args = append(args, f.CampaignID)
		q += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query message logs: %w", err)
	}
	defer rows.Close()

	var out []model.MessageLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMessageLog(ctx context.Context, id string) (model.MessageLog, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	l, err := scanLog(p.pool.QueryRow(ctx, `SELECT `+logCols+` FROM message_logs WHERE id = $1`, id))
	if err != nil {
		return model.MessageLog{}, notFoundErr(err)
	}
	return l, nil
}

func (p *Postgres) UpdateMessageLog(ctx context.Context, l model.MessageLog) (model.MessageLog, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.pool.QueryRow(ctx, `
		UPDATE message_logs
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+logCols,
		l.ID, string(l.Status), l.FailureReason)
	out, err := scanLog(row)
	if err != nil {
		return model.MessageLog{}, notFoundErr(err)
	}
	return out, nil
}

func (p *Postgres) DeleteCampaignLogs(ctx context.Context, campaignID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `DELETE FROM message_logs WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("delete campaign logs: %w", err)
	}
	return nil
}

func (p *Postgres) CountMessages(ctx context.Context, campaignID string) (model.MessageCounts, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT status, count(*) FROM message_logs
		WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return model.MessageCounts{}, fmt.Errorf("count messages: %w", err)
	}
	defer rows.Close()

	var counts model.MessageCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.MessageCounts{}, fmt.Errorf("scan count: %w", err)
		}
		counts.Total += n
		switch model.MessageStatus(status) {
		case model.MessagePending:
			counts.Pending = n
		case model.MessageSent:
			counts.Sent = n
		case model.MessageDelivered:
			counts.Delivered = n
		case model.MessageFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

func (p *Postgres) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	stats := model.DashboardStats{
		CampaignsByStatus: map[model.CampaignStatus]int{},
		MessagesByStatus:  map[model.MessageStatus]int{},
	}

	err := p.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'active'),
		       COALESCE(sum(total_spent), 0)
		FROM customers`).
		Scan(&stats.TotalCustomers, &stats.ActiveCustomers, &stats.TotalRevenue)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("customer stats: %w", err)
	}

	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM segments`).Scan(&stats.TotalSegments); err != nil {
		return model.DashboardStats{}, fmt.Errorf("segment stats: %w", err)
	}

	rows, err := p.pool.Query(ctx, `SELECT status, count(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("campaign stats: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return model.DashboardStats{}, fmt.Errorf("scan campaign stats: %w", err)
		}
		stats.CampaignsByStatus[model.CampaignStatus(status)] = n
		stats.TotalCampaigns += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.DashboardStats{}, err
	}

	rows, err = p.pool.Query(ctx, `SELECT status, count(*) FROM message_logs GROUP BY status`)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("message stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.DashboardStats{}, fmt.Errorf("scan message stats: %w", err)
		}
		stats.MessagesByStatus[model.MessageStatus(status)] = n
	}
	return stats, rows.Err()
}
