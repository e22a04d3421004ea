package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

var ErrInvalidEvent = errors.New("invalid identity event")

// Service applies identity events to the user store
type Service struct {
	users   repository.UserRepository
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(users repository.UserRepository, rec metrics.Recorder, logger *zap.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:   users,
		metrics: rec,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Apply loads the record for the event's externalId, reconciles it and
// performs at most one store write. Store errors are returned so the
// delivery can be retried.
func (s *Service) Apply(ctx context.Context, event domain.IdentityEvent) (Action, error) {
	if strings.TrimSpace(event.ExternalID) == "" {
		return ActionNoop, fmt.Errorf("%w: missing external id", ErrInvalidEvent)
	}

	current, err := s.users.FindByExternalID(ctx, event.ExternalID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return ActionNoop, fmt.Errorf("failed to load user: %w", err)
		}
		current = nil
	}

	next, action := Reconcile(current, event, s.now())

	var writeErr error
	switch action {
	case ActionCreate:
		writeErr = s.users.Create(ctx, next)
	case ActionUpdate:
		// role, seller flag and cart may change concurrently through the admin CLI
		writeErr = s.users.UpdateProfile(ctx, next)
	case ActionDelete:
		writeErr = s.users.DeleteByExternalID(ctx, event.ExternalID)
		if errors.Is(writeErr, repository.ErrUserNotFound) {
			// removed concurrently; the outcome is the same
			writeErr = nil
		}
	}
	if err := writeErr; err != nil {
		s.logger.Error("Failed to apply identity event",
			zap.String("external_id", event.ExternalID),
			zap.String("event_type", string(event.Type)),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return action, fmt.Errorf("failed to %s user: %w", action, err)
	}

	s.metrics.RecordIdentityEvent(string(event.Type), string(action))
	s.logger.Info("Identity event applied",
		zap.String("external_id", event.ExternalID),
		zap.String("event_type", string(event.Type)),
		zap.String("action", string(action)),
	)

	return action, nil
}
