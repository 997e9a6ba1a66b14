package tasks

import (
	"context"
	"errors"
	"log"
	"slices"

	"github.com/google/uuid"

	"task-api/auth"
	"task-api/store"
)

var (
	// ErrNotFound covers both a missing task and a task owned by someone
	// else.
	ErrNotFound = errors.New("task not found")
	// ErrUnauthorized is returned before any storage access when the
	// caller has no resolved identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store is the owner-scoped task persistence the service runs on. Every
// method must filter by owner in the same statement that finds the task.
type Store interface {
	ListTasks(ctx context.Context, owner uuid.UUID) ([]store.Task, error)
	GetTask(ctx context.Context, owner uuid.UUID, id int) (store.Task, error)
	CreateTask(ctx context.Context, t store.Task) (store.Task, error)
	UpdateTask(ctx context.Context, t store.Task) error
	SetTaskDone(ctx context.Context, owner uuid.UUID, id int, done bool) error
	DeleteTask(ctx context.Context, owner uuid.UUID, id int) error
}

// Service implements task CRUD for an authenticated caller.
type Service struct {
	store Store
	cache store.TaskCache
}

// NewService returns a Service; a nil cache disables caching.
func NewService(s Store, cache store.TaskCache) *Service {
	if cache == nil {
		cache = store.NopCache{}
	}
	return &Service{store: s, cache: cache}
}

func checkCaller(caller auth.Identity) error {
	if caller.UserID == uuid.Nil {
		return ErrUnauthorized
	}
	return nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// List returns the caller's tasks, open ones first, each group by
// ascending due date with undated tasks last.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]store.Task, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	SortForListing(tasks)
	return tasks, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Identity, id int) (store.Task, error) {
	if err := checkCaller(caller); err != nil {
		return store.Task{}, err
	}

	t, ok, err := s.cache.Get(ctx, caller.UserID, id)
	if err != nil {
		log.Printf("WARN: task cache read failed for %s: %v", store.CacheKey(caller.UserID, id), err)
	} else if ok {
		return t, nil
	}

	// The version is read before the database so a write that lands in
	// between makes the Set below a no-op.
	version, verr := s.cache.Version(ctx, caller.UserID, id)
	if verr != nil {
		log.Printf("WARN: task cache version read failed for %s: %v", store.CacheKey(caller.UserID, id), verr)
	}

	t, err = s.store.GetTask(ctx, caller.UserID, id)
	if err != nil {
		return store.Task{}, mapStoreErr(err)
	}

	if verr == nil {
		if err := s.cache.Set(ctx, t, version); err != nil {
			log.Printf("WARN: task cache write failed for %s: %v", store.CacheKey(t.OwnerID, t.ID), err)
		}
	}
	return t, nil
}

// Create stores a new task owned by the caller.
func (s *Service) Create(ctx context.Context, caller auth.Identity, f Fields) (store.Task, error) {
	if err := checkCaller(caller); err != nil {
		return store.Task{}, err
	}
	if err := Validate(f); err != nil {
		return store.Task{}, err
	}
	return s.store.CreateTask(ctx, newTask(caller.UserID, 0, f))
}

// Update replaces every editable field of the caller's task id.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id int, f Fields) (store.Task, error) {
	if err := checkCaller(caller); err != nil {
		return store.Task{}, err
	}
	if err := Validate(f); err != nil {
		return store.Task{}, err
	}
	t := newTask(caller.UserID, id, f)
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return store.Task{}, mapStoreErr(err)
	}
	s.invalidate(ctx, caller.UserID, id)
	return t, nil
}

// SetDone changes only the completion flag of the caller's task id.
func (s *Service) SetDone(ctx context.Context, caller auth.Identity, id int, done bool) error {
	if err := checkCaller(caller); err != nil {
		return err
	}
	if err := s.store.SetTaskDone(ctx, caller.UserID, id, done); err != nil {
		return mapStoreErr(err)
	}
	s.invalidate(ctx, caller.UserID, id)
	return nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Identity, id int) error {
	if err := checkCaller(caller); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, caller.UserID, id); err != nil {
		return mapStoreErr(err)
	}
	s.invalidate(ctx, caller.UserID, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, owner uuid.UUID, id int) {
	if err := s.cache.Delete(ctx, owner, id); err != nil {
		log.Printf("WARN: Failed to delete the cache key, %s,  %v", store.CacheKey(owner, id), err)
	}
}

func newTask(owner uuid.UUID, id int, f Fields) store.Task {
	t := store.Task{
		ID:            id,
		OwnerID:       owner,
		Title:         f.Title,
		IsDone:        f.IsDone,
		Category:      f.Category,
		EstimateHours: f.EstimateHours,
	}
	if f.DueDate != nil {
		d := f.DueDate.UTC()
		t.DueDate = &d
	}
	return t
}

// SortForListing orders tasks in place: open before done, then by due
// date ascending with undated tasks after dated ones. Ties keep their
// existing order.
func SortForListing(tasks []store.Task) {
	slices.SortStableFunc(tasks, compareForListing)
}

func compareForListing(a, b store.Task) int {
	if a.IsDone != b.IsDone {
		if a.IsDone {
			return 1
		}
		return -1
	}
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	return a.DueDate.Compare(*b.DueDate)
}
