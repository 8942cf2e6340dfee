package retention

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"go.uber.org/zap"
)

// RotationResult summarises a key rotation run
type RotationResult struct {
	KeyID     string
	Resealed  int
	Unchanged int
}

// RotateKey re-encrypts every live recipient from one key to another while
// holding the maintenance lock. Profiles already under the new key are
// skipped, so an interrupted run can simply be repeated.
func (s *Service) RotateKey(ctx context.Context, from, to identity.ContactCipher) (*RotationResult, error) {
	if s.lock == nil {
		return nil, fmt.Errorf("rotate key: no maintenance lock configured")
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("rotate key: both keys are required")
	}
	if from.KeyID() == to.KeyID() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "New key must have a different key ID")
	}

	lease, err := s.lock.Acquire(ctx, s.config.lockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, shared.ErrMaintenance
		}
		return nil, fmt.Errorf("acquire maintenance lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release maintenance lock", zap.Error(err))
		}
	}()

	s.logger.Info("Key rotation started",
		zap.String("from_key_id", from.KeyID()),
		zap.String("to_key_id", to.KeyID()),
	)

	result := &RotationResult{KeyID: to.KeyID()}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			s.metrics.Swept(ctx, JobRotateKey, result.Resealed, err)
			return result, err
		}
		var batch []identity.Recipient
		err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			var err error
			batch, err = repos.Recipients().FindLiveAfter(ctx, after, s.config.rotationBatch())
			if err != nil {
				return err
			}
			for i := range batch {
				changed, err := s.reseal(ctx, repos, &batch[i], from, to)
				if err != nil {
					return fmt.Errorf("reseal recipient %s: %w", batch[i].ID, err)
				}
				if changed {
					result.Resealed++
				} else {
					result.Unchanged++
				}
			}
			return nil
		})
		if err != nil {
			s.metrics.Swept(ctx, JobRotateKey, result.Resealed, err)
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		after = batch[len(batch)-1].ID
		if len(batch) < s.config.rotationBatch() {
			break
		}
	}

	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionEncryptionKeyRotated, identity.SystemActor,
			audit.Refs{},
			map[string]string{
				audit.MetaKeyID: to.KeyID(),
				audit.MetaCount: strconv.Itoa(result.Resealed),
			},
		)
	})
	s.metrics.Swept(ctx, JobRotateKey, result.Resealed, err)
	if err != nil {
		return result, err
	}

	s.logger.Info("Key rotation finished",
		zap.String("key_id", to.KeyID()),
		zap.Int("resealed", result.Resealed),
		zap.Int("unchanged", result.Unchanged),
	)
	return result, nil
}

// reseal moves one recipient's ciphertext to the new key. The version
// compare-and-set makes a concurrent profile write abort the batch.
func (s *Service) reseal(
	ctx context.Context,
	repos transaction.Repositories,
	recipient *identity.Recipient,
	from, to identity.ContactCipher,
) (bool, error) {
	if !needsRotation(recipient.Sealed, to.KeyID()) {
		return false, nil
	}
	contact, err := identity.OpenContact(from, recipient.Sealed)
	if err != nil {
		return false, err
	}
	sealed, err := identity.SealContact(to, contact)
	if err != nil {
		return false, err
	}
	if err := recipient.Reseal(sealed, s.now()); err != nil {
		return false, err
	}
	return true, repos.Recipients().SaveWithLock(ctx, recipient)
}

// needsRotation reports whether any stored field is sealed under a key
// other than keyID
func needsRotation(sealed identity.SealedContact, keyID string) bool {
	fields := []*string{&sealed.Address, sealed.Phone, sealed.Notes}
	for _, f := range fields {
		if f == nil || *f == "" || *f == identity.PurgeMarker {
			continue
		}
		if id, err := crypto.KeyIDOf(*f); err != nil || id != keyID {
			return true
		}
	}
	return false
}
