package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/observability"
	"crm-messaging-api/internal/segment"
	"crm-messaging-api/internal/storage"
)

// ErrAlreadyStarted is returned when a campaign that has already been
// dispatched is started again without a reset.
var ErrAlreadyStarted = errors.New("campaign already started")

// Runner materializes campaign audiences and drives message dispatch.
type Runner struct {
	store   storage.Store
	sender  Sender
	workers int

	// wait lets tests block until background dispatch settles.
	wait sync.WaitGroup
}

func NewRunner(store storage.Store, sender Sender, workers int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{store: store, sender: sender, workers: workers}
}

// Start materializes the campaign's segment membership once (a snapshot, not
// a live join), writes one pending message log per member and dispatches the
// logs to the vendor in the background. The store's claim is the gate: the
// campaign moves to sending before any log exists, so a scheduler tick racing
// an operator start cannot materialize the audience twice. The campaign is
// marked sent once dispatch drains.
func (r *Runner) Start(ctx context.Context, campaignID string) (model.Campaign, error) {
	c, claimed, err := r.store.ClaimCampaign(ctx, campaignID)
	if err != nil {
		return model.Campaign{}, err
	}
	if !claimed {
		return model.Campaign{}, ErrAlreadyStarted
	}

	members, err := r.materialize(ctx, c)
	if err != nil {
		r.abort(ctx, c)
		return model.Campaign{}, err
	}

	c.TotalRecipients = len(members)
	c, err = r.store.UpdateCampaign(ctx, c)
	if err != nil {
		return model.Campaign{}, err
	}

	log.Info().
		Str("campaign", c.ID).
		Str("segment", c.SegmentID).
		Int("members", len(members)).
		Msg("campaign started")

	r.wait.Add(1)
	go func() {
		defer r.wait.Done()
		bg := context.WithoutCancel(ctx)
		r.dispatch(bg, c.ID, members)
		r.finish(bg, c.ID)
	}()
	return c, nil
}

// materialize evaluates the campaign's segment against all customers and
// writes one pending log per member.
func (r *Runner) materialize(ctx context.Context, c model.Campaign) ([]model.Customer, error) {
	seg, err := r.store.GetSegment(ctx, c.SegmentID)
	if err != nil {
		return nil, err
	}
	customers, err := r.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	rs := seg.RuleSet()
	var members []model.Customer
	for _, cust := range customers {
		ok, err := segment.Evaluate(rs, cust.Subject())
		if err != nil {
			return nil, err
		}
		if ok {
			members = append(members, cust)
		}
	}

	logs := make([]model.MessageLog, len(members))
	for i, m := range members {
		logs[i] = model.MessageLog{
			CampaignID: c.ID,
			CustomerID: m.ID,
			Message:    c.Message,
			Status:     model.MessagePending,
		}
	}
	if err := r.store.CreateMessageLogs(ctx, logs); err != nil {
		return nil, err
	}
	return members, nil
}

// abort marks a claimed campaign failed when materialization broke; the claim
// must not be left holding the campaign in sending forever.
func (r *Runner) abort(ctx context.Context, c model.Campaign) {
	c.Status = model.CampaignFailed
	if _, err := r.store.UpdateCampaign(ctx, c); err != nil {
		log.Error().Err(err).Str("campaign", c.ID).Msg("mark campaign failed")
	}
}

// finish moves the campaign from sending to sent after dispatch drains. A
// reset that raced the tail of dispatch wins: the campaign stays draft.
func (r *Runner) finish(ctx context.Context, campaignID string) {
	c, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		log.Error().Err(err).Str("campaign", campaignID).Msg("load campaign after dispatch")
		return
	}
	if c.Status != model.CampaignSending {
		return
	}
	c.Status = model.CampaignSent
	if _, err := r.store.UpdateCampaign(ctx, c); err != nil {
		log.Error().Err(err).Str("campaign", campaignID).Msg("mark campaign sent")
	}
}

// dispatch fans the campaign's pending logs out to a bounded worker pool.
func (r *Runner) dispatch(ctx context.Context, campaignID string, members []model.Customer) {
	byID := make(map[string]model.Customer, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	logs, err := r.store.ListMessageLogs(ctx, storage.LogFilter{
		CampaignID: campaignID,
		Status:     model.MessagePending,
	})
	if err != nil {
		log.Error().Err(err).Str("campaign", campaignID).Msg("load pending logs")
		return
	}

	jobs := make(chan model.MessageLog)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				r.send(ctx, msg, byID[msg.CustomerID])
			}
		}()
	}
	for _, msg := range logs {
		jobs <- msg
	}
	close(jobs)
	wg.Wait()
}

func (r *Runner) send(ctx context.Context, msg model.MessageLog, to model.Customer) {
	if err := r.sender.Send(ctx, msg, to); err != nil {
		msg.Status = model.MessageFailed
		msg.FailureReason = err.Error()
		observability.MessagesTotal.WithLabelValues(string(model.MessageFailed)).Inc()
	} else {
		msg.Status = model.MessageSent
		msg.FailureReason = ""
		observability.MessagesTotal.WithLabelValues(string(model.MessageSent)).Inc()
	}
	if _, err := r.store.UpdateMessageLog(ctx, msg); err != nil {
		log.Error().Err(err).Str("message", msg.ID).Msg("update message log")
	}
}

// Reset deletes the campaign's message logs and returns it to draft.
func (r *Runner) Reset(ctx context.Context, campaignID string) (model.Campaign, error) {
	c, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return model.Campaign{}, err
	}
	if err := r.store.DeleteCampaignLogs(ctx, c.ID); err != nil {
		return model.Campaign{}, err
	}
	c.Status = model.CampaignDraft
	c.TotalRecipients = 0
	return r.store.UpdateCampaign(ctx, c)
}

// Progress reports the campaign's delivery state. Percentage is the share of
// messages past the pending state.
func (r *Runner) Progress(ctx context.Context, campaignID string) (model.CampaignProgress, error) {
	counts, err := r.store.CountMessages(ctx, campaignID)
	if err != nil {
		return model.CampaignProgress{}, err
	}
	p := model.CampaignProgress{Stats: counts}
	if counts.Total > 0 {
		p.Percentage = counts.Processed() * 100 / counts.Total
	}
	return p, nil
}

// RunScheduler promotes scheduled campaigns whose send time has passed. It
// blocks until ctx is cancelled.
func (r *Runner) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case now := <-ticker.C:
			due, err := r.store.ListDueCampaigns(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("list due campaigns")
				continue
			}
			for _, c := range due {
				if _, err := r.Start(ctx, c.ID); err != nil && !errors.Is(err, ErrAlreadyStarted) {
					log.Error().Err(err).Str("campaign", c.ID).Msg("start scheduled campaign")
				}
			}
		}
	}
}

// Drain blocks until all background dispatches have finished.
func (r *Runner) Drain() { r.wait.Wait() }
