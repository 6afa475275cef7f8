package service_test

import (
	"context"
	"testing"
	"time"

	"eclipser/internal/contest/broadcast"
	"eclipser/internal/contest/model"
	"eclipser/internal/contest/service"
	apperr "eclipser/pkg/errors"
)

func TestContestCreate(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore()
	svc := service.NewContestService(contests, newFakeSubmissionStore(), nil)

	id, err := svc.Create(context.Background(), service.CreateContestRequest{
		Users:     []string{"u1", "u2"},
		ProblemID: "p1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	contest, err := contests.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("contest not persisted: %v", err)
	}
	if contest.Status != model.ContestPending {
		t.Fatalf("status = %s, want pending", contest.Status)
	}
	if len(contest.ParticipantIDs) != 2 {
		t.Fatalf("participants = %v", contest.ParticipantIDs)
	}
}

func TestContestCreateRejectsEmptyUsers(t *testing.T) {
	t.Parallel()
	svc := service.NewContestService(newFakeContestStore(), newFakeSubmissionStore(), nil)

	_, err := svc.Create(context.Background(), service.CreateContestRequest{ProblemID: "p1"})
	if apperr.GetCode(err) != apperr.ValidationFailed {
		t.Fatalf("got %v, want ValidationFailed", err)
	}
}

func TestContestJoinStartsPendingContest(t *testing.T) {
	t.Parallel()
	contest := runningContest("c1", "p1")
	contest.Status = model.ContestPending
	svc := service.NewContestService(newFakeContestStore(contest), newFakeSubmissionStore(), nil)

	got, err := svc.Join(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got.Status != model.ContestRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}
	if !got.HasParticipant("u1") {
		t.Fatal("joining user missing from participants")
	}
}

func TestContestJoinIdempotent(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore(runningContest("c1", "p1", "u1"))
	svc := service.NewContestService(contests, newFakeSubmissionStore(), nil)

	got, err := svc.Join(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("repeat join must succeed: %v", err)
	}
	seen := 0
	for _, p := range got.ParticipantIDs {
		if p == "u1" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("participant duplicated %d times", seen)
	}
}

func TestContestJoinRejectsFinished(t *testing.T) {
	t.Parallel()
	contest := runningContest("c1", "p1", "u1")
	contest.Status = model.ContestFinished
	svc := service.NewContestService(newFakeContestStore(contest), newFakeSubmissionStore(), nil)

	_, err := svc.Join(context.Background(), "c1", "u2")
	if apperr.GetCode(err) != apperr.ContestEnded {
		t.Fatalf("got %v, want ContestEnded", err)
	}
}

func TestContestCreateDefaultsEndTime(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore()
	svc := service.NewContestService(contests, newFakeSubmissionStore(), nil)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := svc.Create(context.Background(), service.CreateContestRequest{
		Users:     []string{"u1"},
		ProblemID: "p1",
		StartTime: &start,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	contest, _ := contests.GetByID(context.Background(), id)
	if contest.EndTime == nil || !contest.EndTime.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("end time not defaulted: %v", contest.EndTime)
	}
}

func TestContestCreateRejectsInvertedWindow(t *testing.T) {
	t.Parallel()
	svc := service.NewContestService(newFakeContestStore(), newFakeSubmissionStore(), nil)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Minute)
	_, err := svc.Create(context.Background(), service.CreateContestRequest{
		Users:     []string{"u1"},
		ProblemID: "p1",
		StartTime: &start,
		EndTime:   &end,
	})
	if apperr.GetCode(err) != apperr.ValidationFailed {
		t.Fatalf("got %v, want ValidationFailed", err)
	}
}

func TestContestJoinBroadcastsUpdate(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	contests := newFakeContestStore(runningContest("c1", "p1", "u1"))
	svc := service.NewContestService(contests, newFakeSubmissionStore(), pub)

	if _, err := svc.Join(context.Background(), "c1", "u2"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	updates := pub.byType(broadcast.EventContestUpdate)
	if len(updates) != 1 {
		t.Fatalf("contest_update fired %d times, want 1", len(updates))
	}
	if updates[0].Room != broadcast.ContestRoom("c1") {
		t.Fatalf("broadcast to wrong room %s", updates[0].Room)
	}

	// Repeat join changes nothing and stays silent.
	if _, err := svc.Join(context.Background(), "c1", "u2"); err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if got := pub.byType(broadcast.EventContestUpdate); len(got) != 1 {
		t.Fatalf("repeat join broadcast again: %d events", len(got))
	}
}

func TestContestListReturnsAll(t *testing.T) {
	t.Parallel()
	contests := newFakeContestStore(
		runningContest("c1", "p1", "u1"),
		runningContest("c2", "p2", "u2"),
	)
	svc := service.NewContestService(contests, newFakeSubmissionStore(), nil)

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d contests, want 2", len(got))
	}
}

func TestContestSubmissionsUnknownContest(t *testing.T) {
	t.Parallel()
	svc := service.NewContestService(newFakeContestStore(), newFakeSubmissionStore(), nil)

	_, err := svc.Submissions(context.Background(), "nope")
	if apperr.GetCode(err) != apperr.ContestNotFound {
		t.Fatalf("got %v, want ContestNotFound", err)
	}
}
