package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// refreshVolunteerStats recomputes the volunteer's counters from completed
// requests and ratings. Stats are always derived, never incremented.
func refreshVolunteerStats(ctx context.Context, repos transaction.Repositories, volunteerID uuid.UUID) error {
	volunteer, err := repos.Volunteers().FindByIDForUpdate(ctx, volunteerID)
	if err != nil {
		return err
	}
	completed, err := repos.Deliveries().CountCompletedByVolunteer(ctx, volunteerID)
	if err != nil {
		return err
	}
	scores, err := repos.Ratings().ScoresForVolunteer(ctx, volunteerID)
	if err != nil {
		return err
	}
	volunteer.ApplyStats(identity.ComputeStats(int(completed), scores))
	return repos.Volunteers().SaveWithLock(ctx, volunteer)
}
