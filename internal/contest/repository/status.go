package repository

import (
	"context"
	"encoding/json"
	"time"

	"eclipser/internal/common/cache"
	"eclipser/internal/contest/model"
	"eclipser/pkg/errors"
)

const (
	statusKeyPrefix = "submission:status:"
	statusTTL       = 24 * time.Hour
)

// StatusRepository mirrors live submission status into Redis so status
// polls never hit MySQL. Best-effort: the database row stays the source
// of truth.
type StatusRepository struct {
	cache cache.Cache
}

func NewStatusRepository(c cache.Cache) *StatusRepository {
	return &StatusRepository{cache: c}
}

// StatusSnapshot is the cached view of one submission.
type StatusSnapshot struct {
	SubmissionID string                 `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	Result       *model.Result          `json:"result,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Set writes the current status snapshot.
func (r *StatusRepository) Set(ctx context.Context, snap StatusSnapshot) error {
	snap.UpdatedAt = time.Now()
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, errors.CacheError, "marshal status snapshot")
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+snap.SubmissionID, payload, statusTTL); err != nil {
		return errors.Wrapf(err, errors.CacheError, "set status snapshot")
	}
	return nil
}

// Get returns the cached snapshot, or nil when absent.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (*StatusSnapshot, error) {
	raw, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CacheError, "get status snapshot")
	}
	if raw == "" {
		return nil, nil
	}
	var snap StatusSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, errors.Wrapf(err, errors.CacheError, "unmarshal status snapshot")
	}
	return &snap, nil
}
