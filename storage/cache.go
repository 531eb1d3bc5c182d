package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"join-api/domain"
)

type backend interface {
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

// Cache wraps a Storage instance with Redis-backed caching for the
// collection reads. Writes evict the affected collection so a single
// instance reads its own writes; cross-instance staleness is bounded by
// the TTL.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and
// TTL. A nil client or zero TTL disables caching without changing
// behavior.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func contactsCacheKey() string { return "join:contacts" }
func tasksCacheKey() string    { return "join:tasks" }

func (c *Cache) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	var cached []domain.Contact
	if c.loadCached(ctx, contactsCacheKey(), &cached) {
		return cached, nil
	}
	contacts, err := c.base.FetchContacts(ctx)
	if err != nil {
		return nil, err
	}
	c.storeCached(ctx, contactsCacheKey(), contacts)
	return contacts, nil
}

func (c *Cache) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	var cached []domain.Task
	if c.loadCached(ctx, tasksCacheKey(), &cached) {
		return cached, nil
	}
	tasks, err := c.base.FetchTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.storeCached(ctx, tasksCacheKey(), tasks)
	return tasks, nil
}

func (c *Cache) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	return c.base.GetContact(ctx, id)
}

func (c *Cache) SaveContact(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	saved, err := c.base.SaveContact(ctx, contact)
	if err != nil {
		return domain.Contact{}, err
	}
	c.evict(ctx, contactsCacheKey())
	return saved, nil
}

func (c *Cache) UpdateContact(ctx context.Context, contact domain.Contact) error {
	if err := c.base.UpdateContact(ctx, contact); err != nil {
		return err
	}
	c.evict(ctx, contactsCacheKey())
	return nil
}

func (c *Cache) DeleteContact(ctx context.Context, id string) error {
	if err := c.base.DeleteContact(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, contactsCacheKey())
	return nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) SaveTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	saved, err := c.base.SaveTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey())
	return saved, nil
}

func (c *Cache) UpdateTask(ctx context.Context, task domain.Task) error {
	if err := c.base.UpdateTask(ctx, task); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey())
	return nil
}

func (c *Cache) PatchTask(ctx context.Context, id string, fields map[string]any) error {
	if err := c.base.PatchTask(ctx, id, fields); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey())
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey())
	return nil
}

func (c *Cache) FetchCurrentUser(ctx context.Context) (domain.CurrentUser, error) {
	return c.base.FetchCurrentUser(ctx)
}

func (c *Cache) PutCurrentUser(ctx context.Context, u domain.CurrentUser) error {
	return c.base.PutCurrentUser(ctx, u)
}

func (c *Cache) ClearCurrentUser(ctx context.Context) error {
	return c.base.ClearCurrentUser(ctx)
}

func (c *Cache) loadCached(ctx context.Context, key string, v any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) storeCached(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, key).Result()
}
