package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"eclipser/internal/common/mq"
	"eclipser/internal/contest/broadcast"
	"eclipser/internal/contest/model"
	"eclipser/internal/contest/repository"
	"eclipser/internal/judge/sandbox"
	"eclipser/pkg/errors"
	"eclipser/pkg/utils/logger"
)

// ProblemStore loads test cases for scoring.
type ProblemStore interface {
	GetByID(ctx context.Context, id string) (*model.Problem, error)
}

// JudgeConfig tunes the consumer pool.
type JudgeConfig struct {
	JudgeTopic      string `yaml:"judgeTopic"`
	DeadLetterTopic string `yaml:"deadLetterTopic"`
	ConsumerGroup   string `yaml:"consumerGroup"`
	Prefetch        int    `yaml:"prefetch"`
	Workers         int    `yaml:"workers"`
	MaxRetries      int    `yaml:"maxRetries"`
}

// JudgeConsumer drains the judge queue: execute, classify, persist,
// arbitrate the winner, broadcast. A job is acknowledged only after the
// verdict write succeeds, so crashes redeliver; every write on the path
// is idempotent per submission id.
type JudgeConsumer struct {
	cfg         JudgeConfig
	executor    sandbox.Executor
	contests    ContestStore
	submissions SubmissionStore
	problems    ProblemStore
	status      StatusStore
	publisher   broadcast.Publisher
}

func NewJudgeConsumer(
	cfg JudgeConfig,
	executor sandbox.Executor,
	contests ContestStore,
	submissions SubmissionStore,
	problems ProblemStore,
	status StatusStore,
	publisher broadcast.Publisher,
) (*JudgeConsumer, error) {
	if cfg.JudgeTopic == "" {
		return nil, fmt.Errorf("judge topic is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if contests == nil || submissions == nil {
		return nil, fmt.Errorf("contest and submission stores are required")
	}
	return &JudgeConsumer{
		cfg:         cfg,
		executor:    executor,
		contests:    contests,
		submissions: submissions,
		problems:    problems,
		status:      status,
		publisher:   publisher,
	}, nil
}

// Register subscribes the consumer on the queue with its prefetch
// bound. Consumption begins when the queue starts.
func (c *JudgeConsumer) Register(ctx context.Context, consumer mq.Consumer) error {
	return consumer.SubscribeWithOptions(ctx, c.cfg.JudgeTopic, c.HandleMessage, &mq.SubscribeOptions{
		ConsumerGroup:   c.cfg.ConsumerGroup,
		PrefetchCount:   c.cfg.Prefetch,
		Concurrency:     c.cfg.Workers,
		MaxRetries:      c.cfg.MaxRetries,
		DeadLetterTopic: c.cfg.DeadLetterTopic,
	})
}

// HandleMessage processes one queue delivery. A returned error means
// the message is retried and, past the retry budget, dead-lettered.
func (c *JudgeConsumer) HandleMessage(ctx context.Context, msg *mq.Message) error {
	var job model.JudgeJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// Malformed payloads never become valid; dropping beats
		// poisoning the retry loop.
		logger.Error(ctx, "drop malformed judge job", zap.Error(err))
		return nil
	}
	ctx = context.WithValue(ctx, "submission_id", job.SubmissionID)
	ctx = context.WithValue(ctx, "contest_id", job.ContestID)
	return c.process(ctx, job)
}

func (c *JudgeConsumer) process(ctx context.Context, job model.JudgeJob) error {
	c.publish(ctx, broadcast.ContestRoom(job.ContestID), broadcast.Event{
		Type: broadcast.EventProcessingStarted,
		Data: map[string]string{"submission_id": job.SubmissionID, "user_id": job.UserID},
	})
	c.publish(ctx, broadcast.UserRoom(job.UserID), broadcast.Event{
		Type: broadcast.EventProcessingStarted,
		Data: map[string]string{"submission_id": job.SubmissionID},
	})

	if err := c.submissions.MarkProcessing(ctx, job.SubmissionID); err != nil {
		return err
	}
	c.mirrorStatus(ctx, job.SubmissionID, model.StatusProcessing, nil)

	status, result := c.evaluate(ctx, job)

	applied, err := c.submissions.FinalizeVerdict(ctx, job.SubmissionID, status, result)
	if err != nil {
		return err
	}
	if !applied {
		// Redelivered job whose verdict already landed. The terminal
		// status is immutable; skip the announcements too, they were
		// made by the worker that won the first write. The winner claim
		// may still be outstanding if the previous delivery died between
		// the verdict write and the CAS, so re-attempt it for accepted
		// verdicts; the conditional update makes the retry idempotent.
		stored, err := c.submissions.GetByID(ctx, job.SubmissionID)
		if err != nil {
			return err
		}
		if stored.Status == model.StatusAccepted {
			if err := c.declareWinner(ctx, job); err != nil {
				return err
			}
		}
		logger.Info(ctx, "verdict already recorded, skipping redelivery")
		return nil
	}
	c.mirrorStatus(ctx, job.SubmissionID, status, result)

	update := map[string]interface{}{
		"submission_id": job.SubmissionID,
		"user_id":       job.UserID,
		"status":        status,
		"result":        result,
	}
	c.publish(ctx, broadcast.ContestRoom(job.ContestID), broadcast.Event{
		Type: broadcast.EventSubmissionUpdate, Data: update,
	})
	c.publish(ctx, broadcast.UserRoom(job.UserID), broadcast.Event{
		Type: broadcast.EventSubmissionUpdate, Data: update,
	})

	if status == model.StatusAccepted {
		if err := c.declareWinner(ctx, job); err != nil {
			return err
		}
	}

	logger.Info(ctx, "submission judged",
		zap.String("status", string(status)),
		zap.Int("tests_passed", result.TestCasesPassed),
		zap.Int64("wall_time_ms", result.ExecutionTimeMs))
	return nil
}

// evaluate sanitizes, executes against the problem's test cases, and
// classifies. Sandbox and toolchain failures are folded into a verdict
// here; only infrastructure errors escape to the caller.
func (c *JudgeConsumer) evaluate(ctx context.Context, job model.JudgeJob) (model.SubmissionStatus, *model.Result) {
	code, replaced := sandbox.Sanitize(job.Language, job.Code)
	if replaced > 0 {
		logger.Warn(ctx, "sanitizer neutralized constructs", zap.Int("count", replaced))
	}

	tests := c.loadTestCases(ctx, job.ContestID)

	var (
		raw        sandbox.RawResult
		passed     int
		totalWall  int64
		peakMemKB  int64
		lastOutput string
	)
	runOnce := func(stdin string) (sandbox.RawResult, error) {
		return c.executor.Run(ctx, sandbox.Job{
			ID:       job.SubmissionID,
			Code:     code,
			Language: job.Language,
			Stdin:    stdin,
		})
	}

	if len(tests) == 0 {
		r, err := runOnce("")
		if err != nil {
			return c.internalError(ctx, err)
		}
		raw = r
		totalWall = r.WallTimeMs
		peakMemKB = r.MemoryPeakKB
		lastOutput = r.Stdout
	} else {
		for _, tc := range tests {
			r, err := runOnce(tc.Input)
			if err != nil {
				return c.internalError(ctx, err)
			}
			raw = r
			totalWall += r.WallTimeMs
			if r.MemoryPeakKB > peakMemKB {
				peakMemKB = r.MemoryPeakKB
			}
			lastOutput = r.Stdout
			if r.TimedOut || r.Truncated || r.CompileFailed || r.ExitCode != 0 || r.Signal != "" {
				break
			}
			if sandbox.OutputsMatch(r.Stdout, tc.ExpectedOutput) {
				passed++
			}
		}
	}

	status, errMsg := sandbox.Classify(raw, passed, len(tests))
	return status, &model.Result{
		ExecutionTimeMs: totalWall,
		MemoryUsedMb:    peakMemKB / 1024,
		Output:          lastOutput,
		Error:           errMsg,
		TestCasesPassed: passed,
		TotalTestCases:  len(tests),
	}
}

// loadTestCases resolves contest → problem → test cases. Any lookup
// failure degrades to exit-status-only scoring rather than failing the
// job.
func (c *JudgeConsumer) loadTestCases(ctx context.Context, contestID string) []model.TestCase {
	if c.problems == nil {
		return nil
	}
	contest, err := c.contests.GetByID(ctx, contestID)
	if err != nil {
		logger.Warn(ctx, "load contest for scoring failed", zap.Error(err))
		return nil
	}
	problem, err := c.problems.GetByID(ctx, contest.ProblemID)
	if err != nil {
		logger.Warn(ctx, "load problem for scoring failed", zap.Error(err))
		return nil
	}
	return problem.TestCases
}

func (c *JudgeConsumer) internalError(ctx context.Context, err error) (model.SubmissionStatus, *model.Result) {
	logger.Error(ctx, "sandbox execution failed", zap.Error(err))
	return model.StatusError, &model.Result{Error: "internal execution error"}
}

// declareWinner attempts the conditional winner update. Only the
// claimant whose update succeeded announces; losers record nothing at
// contest level. Infrastructure errors propagate so the queue
// redelivers and the claim is retried.
func (c *JudgeConsumer) declareWinner(ctx context.Context, job model.JudgeJob) error {
	claimed, err := c.contests.ClaimWinner(ctx, job.ContestID, job.UserID)
	if err != nil {
		if errors.GetCode(err) == errors.ContestNotFound {
			logger.Warn(ctx, "contest gone, dropping winner announcement")
			return nil
		}
		logger.Error(ctx, "claim winner failed", zap.Error(err))
		return err
	}
	if !claimed {
		return nil
	}
	c.publish(ctx, broadcast.ContestRoom(job.ContestID), broadcast.Event{
		Type: broadcast.EventWinnerDeclared,
		Data: map[string]string{
			"contest_id": job.ContestID,
			"winner_id":  job.UserID,
		},
	})
	c.publish(ctx, broadcast.ContestRoom(job.ContestID), broadcast.Event{
		Type: broadcast.EventContestUpdate,
		Data: map[string]string{
			"contest_id": job.ContestID,
			"status":     string(model.ContestFinished),
		},
	})
	logger.Info(ctx, "winner declared", zap.String("winner_id", job.UserID))
	return nil
}

// publish is best-effort: a room with no listeners is normal.
func (c *JudgeConsumer) publish(ctx context.Context, room string, event broadcast.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, room, event); err != nil {
		if errors.GetCode(err) == errors.RoomNotSubscribed {
			return
		}
		logger.Warn(ctx, "broadcast failed",
			zap.String("room", room), zap.String("event", event.Type), zap.Error(err))
	}
}

func (c *JudgeConsumer) mirrorStatus(ctx context.Context, id string, status model.SubmissionStatus, result *model.Result) {
	if c.status == nil {
		return
	}
	err := c.status.Set(ctx, repository.StatusSnapshot{
		SubmissionID: id,
		Status:       status,
		Result:       result,
	})
	if err != nil {
		logger.Warn(ctx, "mirror submission status failed", zap.Error(err))
	}
}
