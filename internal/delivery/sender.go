package delivery

import (
	"context"
	"fmt"

	"crm-messaging-api/internal/model"
)

// Sender hands one message to the outbound vendor. A nil error means the
// vendor accepted the message (status sent); delivery confirmation arrives
// later through the receipt endpoint.
type Sender interface {
	Send(ctx context.Context, msg model.MessageLog, to model.Customer) error
}

// SimulatedVendor is the default Sender for dev mode and tests. It accepts
// any customer with a phone number and rejects the rest, which keeps outcomes
// deterministic.
type SimulatedVendor struct{}

func (SimulatedVendor) Send(_ context.Context, _ model.MessageLog, to model.Customer) error {
	if to.Phone == "" {
		return fmt.Errorf("customer %s has no phone number", to.ID)
	}
	return nil
}
