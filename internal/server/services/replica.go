package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
)

// ReplicaService owns the auth service's read-only copy of identities.
// It only ever changes in response to identity events from the owner.
type ReplicaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     metrics.Recorder
}

func NewReplicaService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, rec metrics.Recorder) *ReplicaService {
	return &ReplicaService{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "replica_service"),
		metrics:     rec,
	}
}

// Apply upserts the identity snapshot carried by ev. Events older than
// or equal to the stored version are skipped, so redelivery and
// reordering leave the replica unchanged. applied reports whether a row
// was written.
func (s *ReplicaService) Apply(ctx context.Context, ev *models.IdentityEvent) (bool, error) {
	if ev == nil || ev.ID == "" || ev.Version <= 0 || !ev.Kind.Valid() {
		return false, fmt.Errorf("%w: malformed identity event", common.ErrInvalidArgument)
	}

	u := ev.User()
	if ev.Kind == models.EventDeleted && u.DeletedAt == nil {
		at := ev.OccurredAt
		u.DeletedAt = &at
	}

	applied, err := s.repomanager.Replicas(s.db).Apply(ctx, u)
	if err != nil {
		s.metrics.RecordReplicaFailure()
		return false, err
	}
	s.metrics.RecordReplicaApplied(applied)

	if applied {
		s.logger.Debug(ctx, "replica updated", "subject", ev.ID, "version", ev.Version, "kind", string(ev.Kind), "event_id", ev.EventID)
	} else {
		s.logger.Debug(ctx, "stale identity event skipped", "subject", ev.ID, "version", ev.Version, "event_id", ev.EventID)
	}
	return applied, nil
}

// ResolveIdentity returns the replicated identity including tombstones.
func (s *ReplicaService) ResolveIdentity(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Replicas(s.db).GetByID(ctx, id)
}
