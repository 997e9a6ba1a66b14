package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"task-api/api"
	"task-api/store"
	"task-api/tasks"
)

const maxBodyBytes = 1 << 20

func toDto(t store.Task) api.TaskDto {
	dto := api.TaskDto{
		ID:            t.ID,
		UserID:        t.OwnerID,
		Title:         t.Title,
		IsDone:        t.IsDone,
		Category:      t.Category,
		EstimateHours: t.EstimateHours,
	}
	if t.DueDate != nil {
		dto.DueDate = api.NewDate(*t.DueDate)
	}
	return dto
}

func toFields(req api.TaskRequest) tasks.Fields {
	f := tasks.Fields{
		Title:         req.Title,
		IsDone:        req.IsDone,
		Category:      req.Category,
		EstimateHours: req.EstimateHours,
	}
	if req.DueDate != nil {
		d := req.DueDate.Time
		f.DueDate = &d
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// taskID reads the {id} path value. A non-numeric id matches no task route,
// so it answers like a missing task.
func taskID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Task not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// writeError maps service and storage errors onto status codes. Anything
// unrecognised is a server fault and is only described in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *tasks.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, tasks.ErrNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, tasks.ErrUnauthorized):
		unauthorized(w)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request timed out", http.StatusGatewayTimeout)
	default:
		log.Printf("ERROR: %s %s failed: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
	}
}

func (s *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	list, err := s.tasks.List(ctx, callerFrom(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]api.TaskDto, 0, len(list))
	for _, t := range list {
		dtos = append(dtos, toDto(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	t, err := s.tasks.Get(ctx, callerFrom(ctx), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDto(t))
}

func (s *server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req api.TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	t, err := s.tasks.Create(ctx, callerFrom(ctx), toFields(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/Tasks/"+strconv.Itoa(t.ID))
	writeJSON(w, http.StatusCreated, toDto(t))
}

func (s *server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req api.TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if _, err := s.tasks.Update(ctx, callerFrom(ctx), id, toFields(req)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) setDoneHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req api.DoneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsDone == nil {
		http.Error(w, "isDone is required.", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.tasks.SetDone(ctx, callerFrom(ctx), id, *req.IsDone); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.tasks.Delete(ctx, callerFrom(ctx), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		log.Printf("ERROR: health check failed: %v", err)
		http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
