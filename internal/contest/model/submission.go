package model

import "time"

// SubmissionStatus is the lifecycle state of a submission. The first two
// are transient; the rest are terminal verdicts and are never revisited.
type SubmissionStatus string

const (
	StatusQueued            SubmissionStatus = "queued"
	StatusProcessing        SubmissionStatus = "processing"
	StatusAccepted          SubmissionStatus = "accepted"
	StatusWrongAnswer       SubmissionStatus = "wrong_answer"
	StatusTimeLimitExceeded SubmissionStatus = "time_limit_exceeded"
	StatusRuntimeError      SubmissionStatus = "runtime_error"
	StatusCompilationError  SubmissionStatus = "compilation_error"
	StatusError             SubmissionStatus = "error"
)

// IsTerminal reports whether the status is a final verdict.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusQueued, StatusProcessing:
		return false
	}
	return true
}

// SupportedLanguages lists the accepted language identifiers.
var SupportedLanguages = []string{"python", "javascript", "java", "cpp", "c"}

// IsLanguageSupported reports whether lang is a known language identifier.
func IsLanguageSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Result holds the execution outcome, populated once status leaves
// processing. Immutable after being set.
type Result struct {
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	MemoryUsedMb    int64  `json:"memory_used_mb"`
	Output          string `json:"output"`
	Error           string `json:"error"`
	TestCasesPassed int    `json:"test_cases_passed"`
	TotalTestCases  int    `json:"total_test_cases"`
}

// Submission is one user's code submission to a contest problem.
type Submission struct {
	ID          string           `json:"submission_id"`
	ContestID   string           `json:"contest_id"`
	UserID      string           `json:"user_id"`
	Code        string           `json:"code"`
	Language    string           `json:"language"`
	Status      SubmissionStatus `json:"status"`
	Result      *Result          `json:"result,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// JudgeJob is the Kafka payload for judge work. The code travels in the
// job so workers never re-read the submission row before executing.
type JudgeJob struct {
	SubmissionID string `json:"submission_id"`
	ContestID    string `json:"contest_id"`
	UserID       string `json:"user_id"`
	Code         string `json:"code"`
	Language     string `json:"language"`
}
