package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"join-api/domain"
)

type stubBackend struct {
	fetchContactsFn func(ctx context.Context) ([]domain.Contact, error)
	fetchTasksFn    func(ctx context.Context) ([]domain.Task, error)
	saveContactFn   func(ctx context.Context, c domain.Contact) (domain.Contact, error)
	patchTaskFn     func(ctx context.Context, id string, fields map[string]any) error
}

func (s *stubBackend) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	if s.fetchContactsFn == nil {
		return nil, errors.New("unexpected FetchContacts call")
	}
	return s.fetchContactsFn(ctx)
}

func (s *stubBackend) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if s.fetchTasksFn == nil {
		return nil, errors.New("unexpected FetchTasks call")
	}
	return s.fetchTasksFn(ctx)
}

func (s *stubBackend) SaveContact(ctx context.Context, c domain.Contact) (domain.Contact, error) {
	if s.saveContactFn == nil {
		return domain.Contact{}, errors.New("unexpected SaveContact call")
	}
	return s.saveContactFn(ctx, c)
}

func (s *stubBackend) PatchTask(ctx context.Context, id string, fields map[string]any) error {
	if s.patchTaskFn == nil {
		return errors.New("unexpected PatchTask call")
	}
	return s.patchTaskFn(ctx, id, fields)
}

func (s *stubBackend) GetContact(context.Context, string) (domain.Contact, error) {
	return domain.Contact{}, nil
}
func (s *stubBackend) UpdateContact(context.Context, domain.Contact) error { return nil }
func (s *stubBackend) DeleteContact(context.Context, string) error         { return nil }
func (s *stubBackend) GetTask(context.Context, string) (domain.Task, error) {
	return domain.Task{}, nil
}
func (s *stubBackend) SaveTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return t, nil
}
func (s *stubBackend) UpdateTask(context.Context, domain.Task) error { return nil }
func (s *stubBackend) DeleteTask(context.Context, string) error      { return nil }
func (s *stubBackend) FetchCurrentUser(context.Context) (domain.CurrentUser, error) {
	return domain.CurrentUser{}, nil
}
func (s *stubBackend) PutCurrentUser(context.Context, domain.CurrentUser) error { return nil }
func (s *stubBackend) ClearCurrentUser(context.Context) error                   { return nil }

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheFetchContactsMissThenHit(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	expected := []domain.Contact{{ID: "c1", Name: "Ada Lovelace", Color: "#FF7A00"}}

	var calls int
	cache := NewCache(&stubBackend{
		fetchContactsFn: func(ctx context.Context) ([]domain.Contact, error) {
			calls++
			return append([]domain.Contact(nil), expected...), nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		contacts, err := cache.FetchContacts(ctx)
		if err != nil {
			t.Fatalf("fetch contacts: %v", err)
		}
		if !reflect.DeepEqual(contacts, expected) {
			t.Fatalf("unexpected contacts: %#v", contacts)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
}

func TestCacheWriteEvictsCollection(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchContactsFn: func(ctx context.Context) ([]domain.Contact, error) {
			fetches++
			return []domain.Contact{{ID: "c1", Name: "Ada Lovelace"}}, nil
		},
		saveContactFn: func(ctx context.Context, c domain.Contact) (domain.Contact, error) {
			c.ID = "c2"
			return c, nil
		},
	}, client, time.Minute)

	if _, err := cache.FetchContacts(ctx); err != nil {
		t.Fatalf("fetch contacts: %v", err)
	}
	if _, err := cache.SaveContact(ctx, domain.Contact{Name: "Alan Turing"}); err != nil {
		t.Fatalf("save contact: %v", err)
	}
	if _, err := cache.FetchContacts(ctx); err != nil {
		t.Fatalf("fetch contacts: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected eviction to force refetch, got %d fetches", fetches)
	}
}

func TestCachePatchTaskEvictsTasks(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			fetches++
			return []domain.Task{{ID: "t1", Category: domain.CategoryToDo}}, nil
		},
		patchTaskFn: func(ctx context.Context, id string, fields map[string]any) error {
			return nil
		},
	}, client, time.Minute)

	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if err := cache.PatchTask(ctx, "t1", map[string]any{"category": domain.CategoryDone}); err != nil {
		t.Fatalf("patch task: %v", err)
	}
	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected eviction to force refetch, got %d fetches", fetches)
	}
}

func TestCacheFailedWriteKeepsCache(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchContactsFn: func(ctx context.Context) ([]domain.Contact, error) {
			fetches++
			return []domain.Contact{{ID: "c1", Name: "Ada Lovelace"}}, nil
		},
		saveContactFn: func(ctx context.Context, c domain.Contact) (domain.Contact, error) {
			return domain.Contact{}, errors.New("store down")
		},
	}, client, time.Minute)

	if _, err := cache.FetchContacts(ctx); err != nil {
		t.Fatalf("fetch contacts: %v", err)
	}
	if _, err := cache.SaveContact(ctx, domain.Contact{Name: "Alan Turing"}); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := cache.FetchContacts(ctx); err != nil {
		t.Fatalf("fetch contacts: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected cached read after failed write, got %d fetches", fetches)
	}
}

func TestCacheNilRedisPassesThrough(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return nil, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.FetchTasks(ctx); err != nil {
			t.Fatalf("fetch tasks: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected no caching without redis, got %d calls", calls)
	}
}

func TestCacheRedisOutageFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	var calls int
	cache := NewCache(&stubBackend{
		fetchContactsFn: func(ctx context.Context) ([]domain.Contact, error) {
			calls++
			return []domain.Contact{{ID: "c1"}}, nil
		},
	}, client, time.Minute)

	contacts, err := cache.FetchContacts(context.Background())
	if err != nil {
		t.Fatalf("fetch contacts: %v", err)
	}
	if len(contacts) != 1 || calls != 1 {
		t.Fatalf("expected backend fallback, contacts=%#v calls=%d", contacts, calls)
	}
}
