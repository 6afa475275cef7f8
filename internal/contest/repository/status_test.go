package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"eclipser/internal/common/cache"
	"eclipser/internal/contest/model"
	"eclipser/internal/contest/repository"
)

func newStatusRepo(t *testing.T) (*repository.StatusRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewStatusRepository(cache.NewRedisCacheWithClient(client)), mr
}

func TestStatusSetGetRoundTrip(t *testing.T) {
	repo, _ := newStatusRepo(t)
	ctx := context.Background()

	err := repo.Set(ctx, repository.StatusSnapshot{
		SubmissionID: "s1",
		Status:       model.StatusAccepted,
		Result: &model.Result{
			ExecutionTimeMs: 120,
			TestCasesPassed: 3,
			TotalTestCases:  3,
		},
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	snap, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap == nil {
		t.Fatal("snapshot missing after Set")
	}
	if snap.Status != model.StatusAccepted || snap.Result.TestCasesPassed != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not stamped")
	}
}

func TestStatusGetAbsent(t *testing.T) {
	repo, _ := newStatusRepo(t)

	snap, err := repo.Get(context.Background(), "never-submitted")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil for absent key, got %+v", snap)
	}
}

func TestStatusOverwriteKeepsLatest(t *testing.T) {
	repo, _ := newStatusRepo(t)
	ctx := context.Background()

	for _, st := range []model.SubmissionStatus{model.StatusQueued, model.StatusProcessing, model.StatusWrongAnswer} {
		if err := repo.Set(ctx, repository.StatusSnapshot{SubmissionID: "s2", Status: st}); err != nil {
			t.Fatalf("Set %s: %v", st, err)
		}
	}

	snap, err := repo.Get(ctx, "s2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Status != model.StatusWrongAnswer {
		t.Fatalf("status = %s, want wrong_answer", snap.Status)
	}
}

func TestStatusEntriesExpire(t *testing.T) {
	repo, mr := newStatusRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, repository.StatusSnapshot{SubmissionID: "s3", Status: model.StatusQueued}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(25 * time.Hour)

	snap, err := repo.Get(ctx, "s3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap != nil {
		t.Fatalf("snapshot survived TTL: %+v", snap)
	}
}
