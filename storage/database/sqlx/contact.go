package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core/contact"
)

type contactRepository struct {
	repository
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *sqlx.DB) *contactRepository {
	return &contactRepository{repository{db: db}}
}

func (repo contactRepository) CreateContactMessage(ctx context.Context, m contact.Message) (contact.Message, error) {
	var created contact.Message
	b := psql.Insert("contact_message").
		SetMap(map[string]interface{}{
			"name":       m.Name,
			"email":      m.Email,
			"phone":      m.Phone,
			"subject":    m.Subject,
			"message":    m.Message,
			"status":     m.Status,
			"created_at": m.CreatedAt,
			"updated_at": m.UpdatedAt,
		}).
		Suffix("RETURNING *")
	err := repo.get(ctx, &created, b, nil, "inserting contact message")
	return created, err
}

func (repo contactRepository) GetContactMessage(ctx context.Context, id int) (contact.Message, error) {
	var m contact.Message
	b := psql.Select("*").From("contact_message").Where(sq.Eq{"id": id})
	err := repo.get(ctx, &m, b, contact.ErrNotFound, "finding contact message by ID")
	return m, err
}

func (repo contactRepository) FilterContactMessages(ctx context.Context, filter contact.QueryFilter) ([]contact.Message, error) {
	b := psql.Select("*").From("contact_message").OrderBy("created_at DESC")
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		b = b.Where(search(filter.Search, "name", "email", "subject"))
	}
	msgs := make([]contact.Message, 0)
	err := repo.selectAll(ctx, &msgs, b, "filtering contact messages")
	return msgs, err
}

// UpdateContactMessage only changes the status of a message.
func (repo contactRepository) UpdateContactMessage(ctx context.Context, m contact.Message) (contact.Message, error) {
	var updated contact.Message
	b := psql.Update("contact_message").
		Set("status", m.Status).
		Set("updated_at", m.UpdatedAt).
		Where(sq.Eq{"id": m.ID}).
		Suffix("RETURNING *")
	err := repo.get(ctx, &updated, b, contact.ErrNotFound, "updating contact message")
	return updated, err
}
