package storage

import (
	"context"
	"errors"

	"join-api/domain"
)

// FetchContacts retrieves all contacts sorted by name. Records stored
// without a color get one assigned and written back, so older data grows
// the field lazily.
func (s *Storage) FetchContacts(ctx context.Context) ([]domain.Contact, error) {
	var raw map[string]domain.Contact
	if err := s.client.GetData(ctx, contactsPath, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []domain.Contact{}, nil
		}
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(raw))
	for id, c := range raw {
		c.ID = id
		if c.Color == "" {
			c.Color = domain.RandomColor()
			if err := s.client.PatchData(ctx, contactsPath+"/"+id, map[string]string{"color": c.Color}); err != nil {
				return nil, err
			}
		}
		contacts = append(contacts, c)
	}
	domain.SortContacts(contacts)
	return contacts, nil
}

// GetContact retrieves a single contact by id.
func (s *Storage) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	var c domain.Contact
	if err := s.client.GetData(ctx, contactsPath+"/"+id, &c); err != nil {
		return domain.Contact{}, err
	}
	c.ID = id
	return c, nil
}

// SaveContact creates a new contact and returns it with the id the store
// assigned. The id field is never persisted inside the record itself.
func (s *Storage) SaveContact(ctx context.Context, c domain.Contact) (domain.Contact, error) {
	c.ID = ""
	id, err := s.client.PostData(ctx, contactsPath, c)
	if err != nil {
		return domain.Contact{}, err
	}
	c.ID = id
	return c, nil
}

// UpdateContact replaces the stored record for c.ID.
func (s *Storage) UpdateContact(ctx context.Context, c domain.Contact) error {
	id := c.ID
	c.ID = ""
	return s.client.PutData(ctx, contactsPath+"/"+id, c)
}

// DeleteContact removes the contact. Assignee snapshots on tasks are left
// as they are.
func (s *Storage) DeleteContact(ctx context.Context, id string) error {
	return s.client.DeleteData(ctx, contactsPath+"/"+id)
}
