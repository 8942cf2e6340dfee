package audit

import (
	"context"
	"fmt"

	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"go.uber.org/zap"
)

// Recorder builds guarded audit entries and appends them through the
// repository of the caller's transaction.
type Recorder struct {
	logger *zap.Logger
}

// NewRecorder creates a new Recorder
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger}
}

// Record appends one entry. A guard violation is returned unchanged so the
// enclosing transaction rolls back.
func (r *Recorder) Record(
	ctx context.Context,
	repo audit.Repository,
	action audit.Action,
	actor identity.Actor,
	refs audit.Refs,
	metadata map[string]string,
	opts ...audit.Option,
) error {
	entry, err := audit.NewEntry(action, actor, refs, metadata, opts...)
	if err != nil {
		r.logger.Error("Audit entry rejected",
			zap.String("action", action.String()),
			zap.String("actor_role", actor.Role.String()),
			zap.Error(err),
		)
		return err
	}
	if err := repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry %s: %w", action, err)
	}
	return nil
}
