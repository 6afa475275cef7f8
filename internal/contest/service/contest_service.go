package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eclipser/internal/contest/broadcast"
	"eclipser/internal/contest/model"
	"eclipser/pkg/errors"
	"eclipser/pkg/utils/logger"
)

const defaultContestWindow = 2 * time.Hour

// ContestStore is the persistence surface the services need for
// contests.
type ContestStore interface {
	Create(ctx context.Context, contest *model.Contest) error
	GetByID(ctx context.Context, id string) (*model.Contest, error)
	Join(ctx context.Context, contestID, userID string) error
	ClaimWinner(ctx context.Context, contestID, userID string) (bool, error)
	HistoryByUser(ctx context.Context, userID string) ([]*model.Contest, error)
	ListAll(ctx context.Context) ([]*model.Contest, error)
}

// SubmissionStore is the persistence surface for submissions.
type SubmissionStore interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	MarkProcessing(ctx context.Context, id string) error
	FinalizeVerdict(ctx context.Context, id string, status model.SubmissionStatus, result *model.Result) (bool, error)
	ListByContest(ctx context.Context, contestID string) ([]*model.Submission, error)
}

// ContestService implements contest lifecycle operations.
type ContestService struct {
	contests    ContestStore
	submissions SubmissionStore
	publisher   broadcast.Publisher
}

func NewContestService(contests ContestStore, submissions SubmissionStore, publisher broadcast.Publisher) *ContestService {
	return &ContestService{contests: contests, submissions: submissions, publisher: publisher}
}

// CreateContestRequest is the create payload. Times are optional; a
// missing end time defaults to start + 2h.
type CreateContestRequest struct {
	Users     []string   `json:"users" binding:"required"`
	ProblemID string     `json:"problemId" binding:"required"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Create registers a pending contest and returns its id.
func (s *ContestService) Create(ctx context.Context, req CreateContestRequest) (string, error) {
	if len(req.Users) == 0 {
		return "", errors.ValidationError("users", "at least one participant is required")
	}
	if req.ProblemID == "" {
		return "", errors.ValidationError("problemId", "problem id is required")
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return "", errors.ValidationError("endTime", "end time must be after start time")
	}

	contest := &model.Contest{
		ID:             uuid.NewString(),
		ProblemID:      req.ProblemID,
		ParticipantIDs: req.Users,
		Status:         model.ContestPending,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		CreatedAt:      time.Now(),
	}
	if contest.StartTime != nil && contest.EndTime == nil {
		end := contest.StartTime.Add(defaultContestWindow)
		contest.EndTime = &end
	}
	if err := s.contests.Create(ctx, contest); err != nil {
		return "", err
	}
	s.publishContestUpdate(ctx, contest.ID, "contest_created", string(contest.Status))
	logger.Info(ctx, "contest created",
		zap.String("contest_id", contest.ID),
		zap.String("problem_id", contest.ProblemID),
		zap.Int("participants", len(contest.ParticipantIDs)))
	return contest.ID, nil
}

// Join adds the user to the contest and returns the updated state. The
// first join moves a pending contest to running.
func (s *ContestService) Join(ctx context.Context, contestID, userID string) (*model.Contest, error) {
	if contestID == "" {
		return nil, errors.ValidationError("contestId", "contest id is required")
	}
	if userID == "" {
		return nil, errors.ValidationError("userId", "user id is required")
	}
	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.Status == model.ContestFinished {
		return nil, errors.Newf(errors.ContestEnded, "contest has ended")
	}
	if !contest.HasParticipant(userID) {
		if err := s.contests.Join(ctx, contestID, userID); err != nil {
			return nil, err
		}
		s.publishContestUpdate(ctx, contestID, "user_joined", userID)
	}
	return s.contests.GetByID(ctx, contestID)
}

// publishContestUpdate is best-effort; an empty room is normal.
func (s *ContestService) publishContestUpdate(ctx context.Context, contestID, kind, detail string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, broadcast.ContestRoom(contestID), broadcast.Event{
		Type: broadcast.EventContestUpdate,
		Data: map[string]string{"contest_id": contestID, "event": kind, "detail": detail},
	})
	if err != nil && errors.GetCode(err) != errors.RoomNotSubscribed {
		logger.Warn(ctx, "contest update broadcast failed", zap.Error(err))
	}
}

// Get returns the contest state.
func (s *ContestService) Get(ctx context.Context, contestID string) (*model.Contest, error) {
	if contestID == "" {
		return nil, errors.ValidationError("contestId", "contest id is required")
	}
	return s.contests.GetByID(ctx, contestID)
}

// List returns every contest, newest first.
func (s *ContestService) List(ctx context.Context) ([]*model.Contest, error) {
	return s.contests.ListAll(ctx)
}

// History lists contests the user has participated in.
func (s *ContestService) History(ctx context.Context, userID string) ([]*model.Contest, error) {
	if userID == "" {
		return nil, errors.ValidationError("userId", "user id is required")
	}
	return s.contests.HistoryByUser(ctx, userID)
}

// Submissions lists a contest's submissions without code bodies.
func (s *ContestService) Submissions(ctx context.Context, contestID string) ([]*model.Submission, error) {
	if contestID == "" {
		return nil, errors.ValidationError("contestId", "contest id is required")
	}
	if _, err := s.contests.GetByID(ctx, contestID); err != nil {
		return nil, err
	}
	return s.submissions.ListByContest(ctx, contestID)
}
