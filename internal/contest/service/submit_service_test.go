package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"eclipser/internal/common/mq"
	"eclipser/internal/common/storage"
	"eclipser/internal/contest/model"
	"eclipser/internal/contest/service"
	apperr "eclipser/pkg/errors"
)

type fakeProducer struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	Topic string
	Msg   *mq.Message
}

func (p *fakeProducer) Publish(_ context.Context, topic string, msg *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{Topic: topic, Msg: msg})
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	values  map[string]string
	counts  map[string]int64
	incrErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string), counts: make(map[string]int64)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := value.(string); ok {
		c.values[key] = s
	}
	return nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	if s, ok := value.(string); ok {
		c.values[key] = s
	}
	return true, nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		delete(c.counts, k)
	}
	return nil
}

func (c *fakeCache) Exists(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (c *fakeCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }
func (c *fakeCache) Close() error                 { return nil }

type archivedObject struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
}

type fakeArchive struct {
	mu      sync.Mutex
	objects []archivedObject
}

func (a *fakeArchive) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects = append(a.objects, archivedObject{Bucket: bucket, Key: key, Body: body, ContentType: contentType})
	return nil
}

func (a *fakeArchive) GetObject(_ context.Context, bucket, key string) (storage.ObjectReader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objects {
		if o.Bucket == bucket && o.Key == key {
			return readCloser{bytes.NewReader(o.Body)}, nil
		}
	}
	return nil, apperr.Newf(apperr.NotFound, "object not found")
}

func (a *fakeArchive) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objects {
		if o.Bucket == bucket && o.Key == key {
			return storage.ObjectStat{SizeBytes: int64(len(o.Body)), ContentType: o.ContentType}, nil
		}
	}
	return storage.ObjectStat{}, apperr.Newf(apperr.NotFound, "object not found")
}

type readCloser struct{ io.Reader }

func (readCloser) Close() error { return nil }

func newSubmitService(t *testing.T, contests *fakeContestStore, subs *fakeSubmissionStore, c *fakeCache, producer *fakeProducer, archive *fakeArchive) *service.SubmitService {
	t.Helper()
	var archiveIface storage.ObjectStorage
	if archive != nil {
		archiveIface = archive
	}
	svc, err := service.NewSubmitService(
		service.SubmitConfig{JudgeTopic: "contest.judge", ArchiveBucket: "submissions"},
		contests, subs, &fakeStatusStore{}, c, producer, archiveIface,
	)
	if err != nil {
		t.Fatalf("NewSubmitService: %v", err)
	}
	return svc
}

func validSubmit() service.SubmitRequest {
	return service.SubmitRequest{
		ContestID: "c1",
		UserID:    "u1",
		Code:      "print(42)",
		Language:  "python",
	}
}

func TestSubmitEnqueuesJob(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore(runningContest("c1", "p1", "u1"))
	subs := newFakeSubmissionStore()
	producer := &fakeProducer{}
	archive := &fakeArchive{}
	svc := newSubmitService(t, contests, subs, newFakeCache(), producer, archive)

	id, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("empty submission id")
	}

	sub, err := subs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if sub.Status != model.StatusQueued {
		t.Fatalf("status = %s, want queued", sub.Status)
	}

	if len(producer.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(producer.published))
	}
	pub := producer.published[0]
	if pub.Topic != "contest.judge" || pub.Msg.ID != id {
		t.Fatalf("unexpected publish: topic=%s id=%s", pub.Topic, pub.Msg.ID)
	}
	var job model.JudgeJob
	if err := json.Unmarshal(pub.Msg.Body, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.SubmissionID != id || job.ContestID != "c1" || job.UserID != "u1" || job.Code != "print(42)" || job.Language != "python" {
		t.Fatalf("job fields wrong: %+v", job)
	}

	if len(archive.objects) != 1 {
		t.Fatalf("archived %d objects, want 1", len(archive.objects))
	}
	if !strings.HasSuffix(archive.objects[0].Key, ".python.zst") {
		t.Fatalf("unexpected archive key %q", archive.objects[0].Key)
	}
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u1")),
		newFakeSubmissionStore(), newFakeCache(), &fakeProducer{}, nil)

	req := validSubmit()
	req.Language = "brainfuck"
	_, err := svc.Submit(context.Background(), req)
	if apperr.GetCode(err) != apperr.LanguageNotSupported {
		t.Fatalf("got %v, want LanguageNotSupported", err)
	}
}

func TestSubmitRejectsOversizedCode(t *testing.T) {
	t.Parallel()
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u1")),
		newFakeSubmissionStore(), newFakeCache(), &fakeProducer{}, nil)

	req := validSubmit()
	req.Code = strings.Repeat("a", 64*1024+1)
	_, err := svc.Submit(context.Background(), req)
	if apperr.GetCode(err) != apperr.CodeTooLarge {
		t.Fatalf("got %v, want CodeTooLarge", err)
	}
}

func TestSubmitRejectsNonRunningContest(t *testing.T) {
	t.Parallel()
	contest := runningContest("c1", "p1", "u1")
	contest.Status = model.ContestFinished
	svc := newSubmitService(t, newFakeContestStore(contest),
		newFakeSubmissionStore(), newFakeCache(), &fakeProducer{}, nil)

	_, err := svc.Submit(context.Background(), validSubmit())
	if apperr.GetCode(err) != apperr.ContestNotRunning {
		t.Fatalf("got %v, want ContestNotRunning", err)
	}
}

func TestSubmitRejectsNonParticipant(t *testing.T) {
	t.Parallel()
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u2")),
		newFakeSubmissionStore(), newFakeCache(), &fakeProducer{}, nil)

	_, err := svc.Submit(context.Background(), validSubmit())
	if apperr.GetCode(err) != apperr.NotParticipant {
		t.Fatalf("got %v, want NotParticipant", err)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	t.Parallel()
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u1")),
		newFakeSubmissionStore(), newFakeCache(), &fakeProducer{}, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(context.Background(), validSubmit()); err != nil {
			t.Fatalf("submit #%d: %v", i+1, err)
		}
	}
	_, err := svc.Submit(context.Background(), validSubmit())
	if apperr.GetCode(err) != apperr.SubmitTooFrequently {
		t.Fatalf("got %v, want SubmitTooFrequently", err)
	}
}

func TestSubmitCacheFailureDoesNotBlock(t *testing.T) {
	t.Parallel()
	c := newFakeCache()
	c.incrErr = apperr.Newf(apperr.CacheError, "redis down")
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u1")),
		newFakeSubmissionStore(), c, &fakeProducer{}, nil)

	if _, err := svc.Submit(context.Background(), validSubmit()); err != nil {
		t.Fatalf("cache failure blocked submission: %v", err)
	}
}

func TestSubmitEnqueueFailure(t *testing.T) {
	t.Parallel()
	producer := &fakeProducer{err: apperr.Newf(apperr.InternalServerError, "broker down")}
	svc := newSubmitService(t, newFakeContestStore(runningContest("c1", "p1", "u1")),
		newFakeSubmissionStore(), newFakeCache(), producer, nil)

	_, err := svc.Submit(context.Background(), validSubmit())
	if apperr.GetCode(err) != apperr.JudgeQueueFull {
		t.Fatalf("got %v, want JudgeQueueFull", err)
	}
}

func TestSourceServesArchivedCopy(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore(runningContest("c1", "p1", "u1"))
	subs := newFakeSubmissionStore()
	archive := &fakeArchive{}
	svc := newSubmitService(t, contests, subs, newFakeCache(), &fakeProducer{}, archive)

	id, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	src, err := svc.Source(context.Background(), id)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src.Code != "print(42)" || src.Language != "python" {
		t.Fatalf("unexpected source: %+v", src)
	}
	if len(archive.objects) != 1 {
		t.Fatalf("archived %d objects, want 1", len(archive.objects))
	}
}

func TestSourceFallsBackToDatabase(t *testing.T) {
	t.Parallel()
	sub := queuedSubmission("s9", "c1", "u1")
	subs := newFakeSubmissionStore(sub)
	svc := newSubmitService(t, newFakeContestStore(), subs, newFakeCache(), &fakeProducer{}, nil)

	src, err := svc.Source(context.Background(), "s9")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src.Code != sub.Code {
		t.Fatalf("code = %q, want %q", src.Code, sub.Code)
	}

	if _, err := svc.Source(context.Background(), "missing"); apperr.GetCode(err) != apperr.SubmissionNotFound {
		t.Fatalf("got %v, want SubmissionNotFound", err)
	}
}

func TestStatusFallsBackToDatabase(t *testing.T) {
	t.Parallel()
	sub := queuedSubmission("s9", "c1", "u1")
	sub.Status = model.StatusAccepted
	sub.Result = &model.Result{TestCasesPassed: 3, TotalTestCases: 3}
	subs := newFakeSubmissionStore(sub)
	svc := newSubmitService(t, newFakeContestStore(), subs, newFakeCache(), &fakeProducer{}, nil)

	snap, err := svc.Status(context.Background(), "s9")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != model.StatusAccepted || snap.Result.TestCasesPassed != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
