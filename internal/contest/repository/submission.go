package repository

import (
	"context"
	"encoding/json"
	"time"

	"eclipser/internal/common/db"
	"eclipser/internal/contest/model"
	"eclipser/pkg/errors"
)

// SubmissionRepository persists submissions in MySQL.
type SubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) *SubmissionRepository {
	return &SubmissionRepository{db: database}
}

// Create inserts a new submission in queued status.
func (r *SubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	query := `
		INSERT INTO submissions (submission_id, contest_id, user_id, code, language, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.ContestID, sub.UserID, sub.Code, sub.Language, string(sub.Status), sub.SubmittedAt)
	if err != nil {
		return errors.Wrapf(err, errors.SubmissionCreateFailed, "insert submission")
	}
	return nil
}

// GetByID loads one submission, including its result if terminal.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `
		SELECT submission_id, contest_id, user_id, code, language, status, result, submitted_at
		FROM submissions WHERE submission_id = ?`
	return scanSubmission(r.db.QueryRow(ctx, query, id))
}

// MarkProcessing moves a queued submission to processing. Reapplying on
// redelivery is a no-op for already-terminal submissions, preserving
// status monotonicity.
func (r *SubmissionRepository) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE submissions SET status = ?
		WHERE submission_id = ? AND status IN (?, ?)`
	_, err := r.db.Exec(ctx, query,
		string(model.StatusProcessing), id,
		string(model.StatusQueued), string(model.StatusProcessing))
	if err != nil {
		return errors.Wrapf(err, errors.DatabaseError, "mark submission processing")
	}
	return nil
}

// FinalizeVerdict writes the terminal status and result. The guard on
// non-terminal status makes redelivered jobs idempotent: a second write
// for the same submission changes nothing and reports applied=false.
func (r *SubmissionRepository) FinalizeVerdict(ctx context.Context, id string, status model.SubmissionStatus, result *model.Result) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, errors.Wrapf(err, errors.InternalServerError, "marshal result")
	}
	query := `
		UPDATE submissions SET status = ?, result = ?
		WHERE submission_id = ? AND status IN (?, ?)`
	res, err := r.db.Exec(ctx, query,
		string(status), payload, id,
		string(model.StatusQueued), string(model.StatusProcessing))
	if err != nil {
		return false, errors.Wrapf(err, errors.DatabaseError, "finalize submission verdict")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, errors.DatabaseError, "rows affected")
	}
	return affected == 1, nil
}

// ListByContest returns submissions for a contest, newest first, with
// code omitted.
func (r *SubmissionRepository) ListByContest(ctx context.Context, contestID string) ([]*model.Submission, error) {
	query := `
		SELECT submission_id, contest_id, user_id, '', language, status, result, submitted_at
		FROM submissions WHERE contest_id = ? ORDER BY submitted_at DESC`
	rows, err := r.db.Query(ctx, query, contestID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "list submissions")
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub, err := scanSubmissionRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "iterate submissions")
	}
	return subs, nil
}

func scanSubmission(row db.Row) (*model.Submission, error) {
	var (
		sub       model.Submission
		status    string
		resultRaw []byte
	)
	err := row.Scan(&sub.ID, &sub.ContestID, &sub.UserID, &sub.Code, &sub.Language, &status, &resultRaw, &sub.SubmittedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.Newf(errors.SubmissionNotFound, "submission not found")
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "scan submission")
	}
	sub.Status = model.SubmissionStatus(status)
	if len(resultRaw) > 0 {
		var result model.Result
		if err := json.Unmarshal(resultRaw, &result); err == nil {
			sub.Result = &result
		}
	}
	return &sub, nil
}

func scanSubmissionRow(rows db.Rows) (*model.Submission, error) {
	var (
		sub       model.Submission
		status    string
		resultRaw []byte
		submitted time.Time
	)
	err := rows.Scan(&sub.ID, &sub.ContestID, &sub.UserID, &sub.Code, &sub.Language, &status, &resultRaw, &submitted)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "scan submission row")
	}
	sub.Status = model.SubmissionStatus(status)
	sub.SubmittedAt = submitted
	if len(resultRaw) > 0 {
		var result model.Result
		if err := json.Unmarshal(resultRaw, &result); err == nil {
			sub.Result = &result
		}
	}
	return &sub, nil
}
