package repository

import (
	"context"
	"database/sql"
	"time"

	"eclipser/internal/common/db"
	"eclipser/internal/contest/model"
	"eclipser/pkg/errors"
)

// ContestRepository persists contests and participant membership.
type ContestRepository struct {
	db db.Database
}

func NewContestRepository(database db.Database) *ContestRepository {
	return &ContestRepository{db: database}
}

// Create inserts a pending contest with its initial participant set.
func (r *ContestRepository) Create(ctx context.Context, contest *model.Contest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrapf(err, errors.TransactionFailed, "begin create contest")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(ctx, `
		INSERT INTO contests (contest_id, problem_id, status, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		contest.ID, contest.ProblemID, string(contest.Status),
		nullableTime(contest.StartTime), nullableTime(contest.EndTime), contest.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, errors.ContestCreateFailed, "insert contest")
	}
	for _, userID := range contest.ParticipantIDs {
		if err := insertParticipant(ctx, tx, contest.ID, userID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, errors.TransactionFailed, "commit create contest")
	}
	return nil
}

// GetByID loads a contest with its participants and submission refs.
func (r *ContestRepository) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	var (
		contest   model.Contest
		status    string
		winner    sql.NullString
		startTime sql.NullTime
		endTime   sql.NullTime
	)
	err := r.db.QueryRow(ctx, `
		SELECT contest_id, problem_id, status, winner_id, start_time, end_time, created_at
		FROM contests WHERE contest_id = ?`, id).
		Scan(&contest.ID, &contest.ProblemID, &status, &winner, &startTime, &endTime, &contest.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.Newf(errors.ContestNotFound, "contest not found")
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "scan contest")
	}
	contest.Status = model.ContestStatus(status)
	contest.WinnerID = winner.String
	if startTime.Valid {
		t := startTime.Time
		contest.StartTime = &t
	}
	if endTime.Valid {
		t := endTime.Time
		contest.EndTime = &t
	}

	contest.ParticipantIDs, err = r.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	contest.SubmissionIDs, err = r.listSubmissionIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

// Join registers a participant and moves a pending contest to running,
// stamping the start time on the first join.
func (r *ContestRepository) Join(ctx context.Context, contestID, userID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrapf(err, errors.TransactionFailed, "begin join contest")
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertParticipant(ctx, tx, contestID, userID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE contests SET status = ?, start_time = ?
		WHERE contest_id = ? AND status = ?`,
		string(model.ContestRunning), time.Now(), contestID, string(model.ContestPending))
	if err != nil {
		return errors.Wrapf(err, errors.ContestUpdateFailed, "start contest")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, errors.TransactionFailed, "commit join contest")
	}
	return nil
}

// ClaimWinner performs the winner arbitration: a single conditional
// update that only succeeds while winner_id is still NULL. Exactly one
// of any number of concurrent claimants wins; everyone else gets
// claimed=false. The claimant that wins owns the announcement.
func (r *ContestRepository) ClaimWinner(ctx context.Context, contestID, userID string) (bool, error) {
	res, err := r.db.Exec(ctx, `
		UPDATE contests SET winner_id = ?, status = ?, end_time = ?
		WHERE contest_id = ? AND winner_id IS NULL`,
		userID, string(model.ContestFinished), time.Now(), contestID)
	if err != nil {
		return false, errors.Wrapf(err, errors.ContestUpdateFailed, "claim winner")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, errors.DatabaseError, "rows affected")
	}
	if affected == 1 {
		return true, nil
	}
	// Zero rows means either someone else already claimed or the
	// contest row is gone; tell those apart for the caller.
	var winner sql.NullString
	err = r.db.QueryRow(ctx, `SELECT winner_id FROM contests WHERE contest_id = ?`, contestID).Scan(&winner)
	if err != nil {
		if db.IsNoRows(err) {
			return false, errors.Newf(errors.ContestNotFound, "contest not found")
		}
		return false, errors.Wrapf(err, errors.DatabaseError, "check winner")
	}
	return false, nil
}

// ListAll returns every contest, newest first.
func (r *ContestRepository) ListAll(ctx context.Context) ([]*model.Contest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT contest_id FROM contests ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "query contests")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "scan contest id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "iterate contests")
	}

	contests := make([]*model.Contest, 0, len(ids))
	for _, id := range ids {
		contest, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		contests = append(contests, contest)
	}
	return contests, nil
}

// HistoryByUser lists contests the user participated in, newest first.
func (r *ContestRepository) HistoryByUser(ctx context.Context, userID string) ([]*model.Contest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.contest_id FROM contests c
		JOIN contest_participants p ON p.contest_id = c.contest_id
		WHERE p.user_id = ? ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "query contest history")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "scan contest id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "iterate contest history")
	}

	contests := make([]*model.Contest, 0, len(ids))
	for _, id := range ids {
		contest, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		contests = append(contests, contest)
	}
	return contests, nil
}

func (r *ContestRepository) listParticipants(ctx context.Context, contestID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM contest_participants WHERE contest_id = ? ORDER BY joined_at`, contestID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "query participants")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "scan participant")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ContestRepository) listSubmissionIDs(ctx context.Context, contestID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT submission_id FROM submissions WHERE contest_id = ? ORDER BY submitted_at`, contestID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "query submission ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "scan submission id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func insertParticipant(ctx context.Context, q db.Querier, contestID, userID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO contest_participants (contest_id, user_id, joined_at)
		VALUES (?, ?, ?)`, contestID, userID, time.Now())
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return errors.Newf(errors.AlreadyJoined, "user already joined contest")
		}
		return errors.Wrapf(err, errors.DatabaseError, "insert participant")
	}
	return nil
}
