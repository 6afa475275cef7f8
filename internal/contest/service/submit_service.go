package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"eclipser/internal/common/cache"
	"eclipser/internal/common/mq"
	"eclipser/internal/common/storage"
	"eclipser/internal/contest/model"
	"eclipser/internal/contest/repository"
	"eclipser/pkg/errors"
	"eclipser/pkg/utils/logger"
)

const (
	maxCodeBytes    = 64 * 1024
	rateLimitWindow = 10 * time.Second
	rateLimitMax    = 3
	rateKeyPrefix   = "submit:rate:"
)

// StatusStore mirrors live submission status for cheap polling.
type StatusStore interface {
	Set(ctx context.Context, snap repository.StatusSnapshot) error
	Get(ctx context.Context, submissionID string) (*repository.StatusSnapshot, error)
}

// SubmitConfig tunes intake behavior.
type SubmitConfig struct {
	JudgeTopic    string `yaml:"judgeTopic"`
	ArchiveBucket string `yaml:"archiveBucket"`
}

// SubmitService validates, persists, and enqueues submissions. Intake
// returns as soon as the job is enqueued; execution is asynchronous.
type SubmitService struct {
	cfg         SubmitConfig
	contests    ContestStore
	submissions SubmissionStore
	status      StatusStore
	cache       cache.Cache
	producer    mq.Producer
	archive     storage.ObjectStorage
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

func NewSubmitService(
	cfg SubmitConfig,
	contests ContestStore,
	submissions SubmissionStore,
	status StatusStore,
	c cache.Cache,
	producer mq.Producer,
	archive storage.ObjectStorage,
) (*SubmitService, error) {
	if cfg.JudgeTopic == "" {
		return nil, fmt.Errorf("judge topic is required")
	}
	if contests == nil || submissions == nil {
		return nil, fmt.Errorf("contest and submission stores are required")
	}
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &SubmitService{
		cfg:         cfg,
		contests:    contests,
		submissions: submissions,
		status:      status,
		cache:       c,
		producer:    producer,
		archive:     archive,
		encoder:     encoder,
		decoder:     decoder,
	}, nil
}

// SubmitRequest is the intake payload.
type SubmitRequest struct {
	ContestID string `json:"contestId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Language  string `json:"language" binding:"required"`
}

// Submit validates the request, persists a queued submission, and
// enqueues the judge job. Returns the submission id immediately.
func (s *SubmitService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := s.validate(ctx, req); err != nil {
		return "", err
	}
	if err := s.checkRateLimit(ctx, req.UserID); err != nil {
		return "", err
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		ContestID:   req.ContestID,
		UserID:      req.UserID,
		Code:        req.Code,
		Language:    req.Language,
		Status:      model.StatusQueued,
		SubmittedAt: time.Now(),
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return "", err
	}

	s.mirrorStatus(ctx, sub.ID, model.StatusQueued, nil)
	s.archiveSource(ctx, sub)

	job := model.JudgeJob{
		SubmissionID: sub.ID,
		ContestID:    sub.ContestID,
		UserID:       sub.UserID,
		Code:         sub.Code,
		Language:     sub.Language,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", errors.Wrapf(err, errors.InternalServerError, "marshal judge job")
	}
	msg := mq.NewMessage(payload)
	msg.ID = sub.ID
	if err := s.producer.Publish(ctx, s.cfg.JudgeTopic, msg); err != nil {
		// The row already exists as queued; it simply never transitions
		// until an operator requeues it. Surface the failure to the
		// caller instead of pretending the job is in flight.
		return "", errors.Wrapf(err, errors.JudgeQueueFull, "enqueue judge job")
	}

	logger.Info(ctx, "submission enqueued",
		zap.String("submission_id", sub.ID),
		zap.String("contest_id", sub.ContestID),
		zap.String("language", sub.Language))
	return sub.ID, nil
}

// Status returns the submission's live status, served from the cache
// mirror when available.
func (s *SubmitService) Status(ctx context.Context, submissionID string) (*repository.StatusSnapshot, error) {
	if submissionID == "" {
		return nil, errors.ValidationError("submissionId", "submission id is required")
	}
	if s.status != nil {
		snap, err := s.status.Get(ctx, submissionID)
		if err == nil && snap != nil {
			return snap, nil
		}
	}
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return &repository.StatusSnapshot{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		Result:       sub.Result,
	}, nil
}

// SubmissionSource is a submission's code with its language.
type SubmissionSource struct {
	SubmissionID string `json:"submissionId"`
	Language     string `json:"language"`
	Code         string `json:"code"`
}

// Source returns the submission's source code, preferring the archived
// copy in object storage and falling back to the database row when the
// archive is missing or unreadable.
func (s *SubmitService) Source(ctx context.Context, submissionID string) (*SubmissionSource, error) {
	if submissionID == "" {
		return nil, errors.ValidationError("submissionId", "submission id is required")
	}
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	src := &SubmissionSource{SubmissionID: sub.ID, Language: sub.Language, Code: sub.Code}
	if code, ok := s.fetchArchived(ctx, sub); ok {
		src.Code = code
	}
	return src, nil
}

func (s *SubmitService) fetchArchived(ctx context.Context, sub *model.Submission) (string, bool) {
	if s.archive == nil || s.cfg.ArchiveBucket == "" {
		return "", false
	}
	key := archiveKey(sub)
	if _, err := s.archive.StatObject(ctx, s.cfg.ArchiveBucket, key); err != nil {
		return "", false
	}
	obj, err := s.archive.GetObject(ctx, s.cfg.ArchiveBucket, key)
	if err != nil {
		logger.Warn(ctx, "fetch archived source failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
		return "", false
	}
	defer obj.Close()
	compressed, err := io.ReadAll(obj)
	if err != nil {
		logger.Warn(ctx, "read archived source failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
		return "", false
	}
	code, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		logger.Warn(ctx, "decompress archived source failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
		return "", false
	}
	return string(code), true
}

func (s *SubmitService) validate(ctx context.Context, req SubmitRequest) error {
	if !model.IsLanguageSupported(req.Language) {
		return errors.Newf(errors.LanguageNotSupported, "unsupported language: %s", req.Language)
	}
	if len(req.Code) == 0 {
		return errors.ValidationError("code", "code is required")
	}
	if len(req.Code) > maxCodeBytes {
		return errors.Newf(errors.CodeTooLarge, "code exceeds size limit")
	}
	contest, err := s.contests.GetByID(ctx, req.ContestID)
	if err != nil {
		return err
	}
	if contest.Status != model.ContestRunning {
		return errors.Newf(errors.ContestNotRunning, "contest is not running")
	}
	if !contest.HasParticipant(req.UserID) {
		return errors.Newf(errors.NotParticipant, "user is not a contest participant")
	}
	return nil
}

func (s *SubmitService) checkRateLimit(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	key := rateKeyPrefix + userID
	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		// Cache trouble must not block submissions.
		logger.Warn(ctx, "rate limit check failed", zap.Error(err))
		return nil
	}
	if count == 1 {
		_ = s.cache.Expire(ctx, key, rateLimitWindow)
	}
	if count > rateLimitMax {
		return errors.Newf(errors.SubmitTooFrequently, "too many submissions, slow down")
	}
	return nil
}

// mirrorStatus is best-effort; the database row stays authoritative.
func (s *SubmitService) mirrorStatus(ctx context.Context, id string, status model.SubmissionStatus, result *model.Result) {
	if s.status == nil {
		return
	}
	err := s.status.Set(ctx, repository.StatusSnapshot{
		SubmissionID: id,
		Status:       status,
		Result:       result,
	})
	if err != nil {
		logger.Warn(ctx, "mirror submission status failed", zap.Error(err))
	}
}

// archiveSource stores a zstd-compressed copy of the code in object
// storage. Best-effort: a failed archive never fails the submission.
func (s *SubmitService) archiveSource(ctx context.Context, sub *model.Submission) {
	if s.archive == nil || s.cfg.ArchiveBucket == "" {
		return
	}
	compressed := s.encoder.EncodeAll([]byte(sub.Code), nil)
	err := s.archive.PutObject(ctx, s.cfg.ArchiveBucket, archiveKey(sub),
		bytes.NewReader(compressed), int64(len(compressed)), "application/zstd")
	if err != nil {
		logger.Warn(ctx, "archive submission source failed",
			zap.String("submission_id", sub.ID), zap.Error(err))
	}
}

func archiveKey(sub *model.Submission) string {
	return fmt.Sprintf("submissions/%s.%s.zst", sub.ID, sub.Language)
}
