package storage

import (
	"context"
	"errors"
	"sort"

	"join-api/domain"
)

// FetchTasks retrieves all tasks ordered by id, which matches the push-id
// creation order the board renders in.
func (s *Storage) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	var raw map[string]domain.Task
	if err := s.client.GetData(ctx, tasksPath, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []domain.Task{}, nil
		}
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(raw))
	for id, t := range raw {
		t.ID = id
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// GetTask retrieves a single task by id.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	if err := s.client.GetData(ctx, tasksPath+"/"+id, &t); err != nil {
		return domain.Task{}, err
	}
	t.ID = id
	return t, nil
}

// SaveTask creates a new task and returns it with the assigned id.
func (s *Storage) SaveTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.ID = ""
	id, err := s.client.PostData(ctx, tasksPath, t)
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = id
	return t, nil
}

// UpdateTask replaces the stored record for t.ID.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	id := t.ID
	t.ID = ""
	return s.client.PutData(ctx, tasksPath+"/"+id, t)
}

// PatchTask merges the given fields into the stored task, used for board
// moves and subtask toggles where rewriting the whole record would race
// with other edits for no reason.
func (s *Storage) PatchTask(ctx context.Context, id string, fields map[string]any) error {
	return s.client.PatchData(ctx, tasksPath+"/"+id, fields)
}

// DeleteTask removes the task.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	return s.client.DeleteData(ctx, tasksPath+"/"+id)
}
