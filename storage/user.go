package storage

import (
	"context"

	"join-api/domain"
)

// FetchCurrentUser reads the session identity singleton. ErrNotFound means
// nobody is logged in.
func (s *Storage) FetchCurrentUser(ctx context.Context) (domain.CurrentUser, error) {
	var u domain.CurrentUser
	if err := s.client.GetData(ctx, currentUserPath, &u); err != nil {
		return domain.CurrentUser{}, err
	}
	return u, nil
}

// PutCurrentUser writes the session identity singleton.
func (s *Storage) PutCurrentUser(ctx context.Context, u domain.CurrentUser) error {
	return s.client.PutData(ctx, currentUserPath, u)
}

// ClearCurrentUser removes the session identity singleton.
func (s *Storage) ClearCurrentUser(ctx context.Context) error {
	return s.client.DeleteData(ctx, currentUserPath)
}
