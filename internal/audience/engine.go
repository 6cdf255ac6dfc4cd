package audience

import (
	"context"

	"github.com/rs/zerolog/log"

	"crm-messaging-api/internal/cache"
	"crm-messaging-api/internal/model"
	"crm-messaging-api/internal/segment"
)

// CustomerLister is the slice of the store the engine needs.
type CustomerLister interface {
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

// Engine serves segment membership over a lock-free customer snapshot. The
// snapshot is rebuilt at startup and whenever the listener reports a customer
// change, so estimate and member reads never hit the database.
type Engine struct {
	snap cache.Snapshot[[]model.Customer]
}

func NewEngine() *Engine { return &Engine{} }

// Refresh reloads the customer snapshot.
func (e *Engine) Refresh(ctx context.Context, st CustomerLister) error {
	customers, err := st.ListCustomers(ctx)
	if err != nil {
		return err
	}
	e.snap.Store(customers)
	log.Debug().Int("customers", len(customers)).Msg("audience snapshot rebuilt")
	return nil
}

// Customers returns the current snapshot.
func (e *Engine) Customers() []model.Customer {
	customers, _ := e.snap.Load()
	return customers
}

// Members evaluates the rule set against every customer in the snapshot.
func (e *Engine) Members(rs segment.RuleSet) ([]model.Customer, error) {
	customers, _ := e.snap.Load()
	var out []model.Customer
	for _, c := range customers {
		ok, err := segment.Evaluate(rs, c.Subject())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// EstimateSize counts the snapshot customers the rule set matches.
func (e *Engine) EstimateSize(rs segment.RuleSet) (int, error) {
	members, err := e.Members(rs)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}
