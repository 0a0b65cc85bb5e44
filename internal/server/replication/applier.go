package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/broker"
	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

const applyTimeout = 10 * time.Second

// ReplicaWriter applies identity events to the local replica.
type ReplicaWriter interface {
	Apply(ctx context.Context, ev *models.IdentityEvent) (bool, error)
}

// Applier consumes identity events and writes them to the replica. A
// message is acknowledged only after the replica write succeeded.
type Applier struct {
	replicas ReplicaWriter
	logger   logging.Logger
}

func NewApplier(w ReplicaWriter, l logging.Logger) *Applier {
	return &Applier{replicas: w, logger: l.With("module", "replica_applier")}
}

// Handle decodes and applies one message. Undecodable or invalid events
// are reported as broker.ErrMalformed; store failures are returned as is
// so that the message is redelivered.
func (a *Applier) Handle(ctx context.Context, m broker.Message) error {
	var ev models.IdentityEvent
	if err := json.Unmarshal(m.Body, &ev); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrMalformed, err)
	}
	if ev.EventID == "" {
		ev.EventID = m.ID
	}

	// A delivery that has started is finished even during shutdown.
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), applyTimeout)
	defer cancel()

	if _, err := a.replicas.Apply(applyCtx, &ev); err != nil {
		if errors.Is(err, common.ErrInvalidArgument) {
			return fmt.Errorf("%w: %v", broker.ErrMalformed, err)
		}
		a.logger.Warn(ctx, "identity event not applied", "event_id", ev.EventID, "subject", ev.ID, "error", err)
		return err
	}
	return nil
}

// Run consumes from sub until ctx is done.
func (a *Applier) Run(ctx context.Context, sub broker.Subscriber) error {
	a.logger.Info(ctx, "replica applier started")
	defer a.logger.Info(ctx, "replica applier stopped")
	return sub.Subscribe(ctx, a.Handle)
}
