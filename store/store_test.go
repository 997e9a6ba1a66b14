package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, email string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := s.CreateUser(context.Background(), User{ID: id, Email: email, PasswordHash: "fake-hash"}); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	got := pg.rebind("UPDATE tasks SET title = ? WHERE id = ? AND user_id = ?")
	want := "UPDATE tasks SET title = $1 WHERE id = $2 AND user_id = $3"
	if got != want {
		t.Errorf("postgres rebind: expected %q, got %q", want, got)
	}

	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := seedUser(t, s, "  Ada@Example.com ")

	u, err := s.UserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if u.ID != id {
		t.Errorf("expected id %s, got %s", id, u.ID)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.Role != DefaultRole {
		t.Errorf("expected role %q, got %q", DefaultRole, u.Role)
	}

	err = s.CreateUser(ctx, User{ID: uuid.New(), Email: "ADA@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}

	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")

	due := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	hours := 3
	created, err := s.CreateTask(ctx, Task{
		OwnerID:       owner,
		Title:         "Write report",
		DueDate:       &due,
		Category:      "Work",
		EstimateHours: &hours,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected new task to have a non-zero ID; got %d", created.ID)
	}

	got, err := s.GetTask(ctx, owner, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != "Write report" || got.Category != "Work" || got.IsDone || got.OwnerID != owner {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("expected due date %v, got %v", due, got.DueDate)
	}
	if got.EstimateHours == nil || *got.EstimateHours != 3 {
		t.Errorf("expected estimate 3, got %v", got.EstimateHours)
	}

	bare, err := s.CreateTask(ctx, Task{OwnerID: owner, Title: "No extras", Category: "Home"})
	if err != nil {
		t.Fatalf("create bare task: %v", err)
	}
	got, err = s.GetTask(ctx, owner, bare.ID)
	if err != nil {
		t.Fatalf("get bare task: %v", err)
	}
	if got.DueDate != nil || got.EstimateHours != nil {
		t.Errorf("expected nil due date and estimate, got %v %v", got.DueDate, got.EstimateHours)
	}
}

func TestTaskOwnershipScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")

	task, err := s.CreateTask(ctx, Task{OwnerID: bob, Title: "Bob's", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := s.GetTask(ctx, alice, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	task.OwnerID = alice
	task.Title = "stolen"
	if err := s.UpdateTask(ctx, task); !errors.Is(err, ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.SetTaskDone(ctx, alice, task.ID, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("set done: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTask(ctx, alice, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}

	aliceTasks, err := s.ListTasks(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(aliceTasks) != 0 {
		t.Errorf("expected alice to see 0 tasks; got %d", len(aliceTasks))
	}

	got, err := s.GetTask(ctx, bob, task.ID)
	if err != nil {
		t.Fatalf("get as owner: %v", err)
	}
	if got.Title != "Bob's" || got.IsDone {
		t.Errorf("task changed by another user: %+v", got)
	}
}

func TestUpdateAndDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")

	task, err := s.CreateTask(ctx, Task{OwnerID: owner, Title: "Draft", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	zero := 0
	task.Title = "Final"
	task.IsDone = true
	task.EstimateHours = &zero
	for i := 0; i < 2; i++ {
		if err := s.UpdateTask(ctx, task); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	got, err := s.GetTask(ctx, owner, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Final" || !got.IsDone || got.EstimateHours == nil || *got.EstimateHours != 0 {
		t.Errorf("unexpected task after update: %+v", got)
	}

	if err := s.SetTaskDone(ctx, owner, task.ID, false); err != nil {
		t.Fatalf("set done: %v", err)
	}
	got, _ = s.GetTask(ctx, owner, task.ID)
	if got.IsDone {
		t.Error("expected task to be reopened")
	}

	if err := s.DeleteTask(ctx, owner, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTask(ctx, owner, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected task with id %d to be deleted, got %v", task.ID, err)
	}
	if err := s.DeleteTask(ctx, owner, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestSchemaRejectsInvalidRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")

	negative := -1
	if _, err := s.CreateTask(ctx, Task{OwnerID: owner, Title: "x", Category: "Work", EstimateHours: &negative}); err == nil {
		t.Error("expected check constraint to reject negative estimate")
	}
	if _, err := s.CreateTask(ctx, Task{OwnerID: uuid.New(), Title: "x", Category: "Work"}); err == nil {
		t.Error("expected foreign key to reject unknown owner")
	}
}

func TestCacheKeyIncludesOwner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if CacheKey(a, 1) == CacheKey(b, 1) {
		t.Error("cache keys for different owners must differ")
	}
}
