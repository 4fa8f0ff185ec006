package ledger

import (
	"context"

	"github.com/rpattn/travelcms/internal/domain"

	"github.com/google/uuid"
)

// GetProgress is a read projection of the job. It keeps no state of its own;
// the processing loop updates the job after every row.
func (l *Ledger) GetProgress(ctx context.Context, jobID uuid.UUID) (domain.JobProgress, error) {
	job, err := l.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobProgress{}, err
	}
	return job.Progress(), nil
}
