package api

import (
	"context"

	"join-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchContacts(ctx context.Context) ([]domain.Contact, error)
	GetContact(ctx context.Context, id string) (domain.Contact, error)
	SaveContact(ctx context.Context, c domain.Contact) (domain.Contact, error)
	UpdateContact(ctx context.Context, c domain.Contact) error
	DeleteContact(ctx context.Context, id string) error

	FetchTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	SaveTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	PatchTask(ctx context.Context, id string, fields map[string]any) error
	DeleteTask(ctx context.Context, id string) error

	FetchCurrentUser(ctx context.Context) (domain.CurrentUser, error)
	PutCurrentUser(ctx context.Context, u domain.CurrentUser) error
	ClearCurrentUser(ctx context.Context) error
}

// Deduper guards write endpoints against replayed form submissions.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, key string) error
}
