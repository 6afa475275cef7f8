package model

import "time"

// ContestStatus is the lifecycle state of a contest.
type ContestStatus string

const (
	ContestPending  ContestStatus = "pending"
	ContestRunning  ContestStatus = "running"
	ContestFinished ContestStatus = "finished"
)

// Contest groups participants racing on one problem. WinnerID is set at
// most once, by the conditional update in the contest repository, and
// setting it moves the contest to finished.
type Contest struct {
	ID             string        `json:"contest_id"`
	ProblemID      string        `json:"problem_id"`
	ParticipantIDs []string      `json:"participant_ids"`
	SubmissionIDs  []string      `json:"submission_ids"`
	Status         ContestStatus `json:"status"`
	WinnerID       string        `json:"winner_id,omitempty"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// HasParticipant reports whether userID is registered in the contest.
func (c *Contest) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TestCase is one expected input/output pair for a problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Problem carries the test cases used to score submissions.
type Problem struct {
	ID        string     `json:"problem_id"`
	Title     string     `json:"title"`
	TestCases []TestCase `json:"test_cases"`
}
