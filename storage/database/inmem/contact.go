package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core/contact"
)

type contactRepository struct {
	db *DB
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *DB) *contactRepository {
	return &contactRepository{db: db}
}

func (repo *contactRepository) CreateContactMessage(ctx context.Context, m contact.Message) (contact.Message, error) {
	_ = repo.db.write(ctx, func(t *tables) error {
		m.ID = t.nextPK()
		t.contacts[m.ID] = m
		return nil
	})
	return m, nil
}

func (repo *contactRepository) GetContactMessage(_ context.Context, id int) (m contact.Message, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if m, ok = t.contacts[id]; !ok {
			err = contact.ErrNotFound
		}
	})
	return m, err
}

func (repo *contactRepository) FilterContactMessages(_ context.Context, filter contact.QueryFilter) ([]contact.Message, error) {
	msgs := make([]contact.Message, 0)
	repo.db.read(func(t *tables) {
		for _, m := range t.contacts {
			if filter.Status != "" && string(m.Status) != filter.Status {
				continue
			}
			if filter.Search != "" && !contains(filter.Search, m.Name, m.Email, m.Subject) {
				continue
			}
			msgs = append(msgs, m)
		}
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}

func (repo *contactRepository) UpdateContactMessage(ctx context.Context, m contact.Message) (contact.Message, error) {
	var updated contact.Message
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.contacts[m.ID]
		if !ok {
			return contact.ErrNotFound
		}
		orig.Status = m.Status
		orig.UpdatedAt = m.UpdatedAt
		t.contacts[m.ID] = orig
		updated = orig
		return nil
	})
	return updated, err
}
