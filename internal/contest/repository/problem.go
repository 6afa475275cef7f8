package repository

import (
	"context"

	"eclipser/internal/common/db"
	"eclipser/internal/contest/model"
	"eclipser/pkg/errors"
)

// ProblemRepository loads problems and their test cases.
type ProblemRepository struct {
	db db.Database
}

func NewProblemRepository(database db.Database) *ProblemRepository {
	return &ProblemRepository{db: database}
}

// GetByID loads a problem with its test cases in position order. A
// problem with zero test cases is valid; scoring then falls back to
// exit-status-only classification.
func (r *ProblemRepository) GetByID(ctx context.Context, id string) (*model.Problem, error) {
	var problem model.Problem
	err := r.db.QueryRow(ctx, `
		SELECT problem_id, title FROM problems WHERE problem_id = ?`, id).
		Scan(&problem.ID, &problem.Title)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errors.Newf(errors.NotFound, "problem not found")
		}
		return nil, errors.Wrapf(err, errors.DatabaseError, "scan problem")
	}

	rows, err := r.db.Query(ctx, `
		SELECT input, expected_output FROM test_cases
		WHERE problem_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "query test cases")
	}
	defer rows.Close()

	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.Input, &tc.ExpectedOutput); err != nil {
			return nil, errors.Wrapf(err, errors.DatabaseError, "scan test case")
		}
		problem.TestCases = append(problem.TestCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.DatabaseError, "iterate test cases")
	}
	return &problem, nil
}
