package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core/news"
)

type newsRepository struct {
	repository
}

var _ news.Repository = (*newsRepository)(nil) // interface compliance check

func NewNewsRepository(db *sqlx.DB) *newsRepository {
	return &newsRepository{repository{db: db}}
}

func (repo newsRepository) CreateNews(ctx context.Context, n news.News) (news.News, error) {
	var created news.News
	b := psql.Insert("news").
		Columns("title", "content", "is_active", "created_by", "created_at").
		Values(n.Title, n.Content, n.IsActive, n.CreatedBy, n.CreatedAt).
		Suffix("RETURNING *")
	err := repo.get(ctx, &created, b, nil, "inserting news")
	return created, err
}

func (repo newsRepository) GetNews(ctx context.Context, id int) (news.News, error) {
	var n news.News
	err := repo.get(ctx, &n, psql.Select("*").From("news").Where(sq.Eq{"id": id}), news.ErrNotFound, "finding news by ID")
	return n, err
}

func (repo newsRepository) ListNews(ctx context.Context, activeOnly bool, limit int) ([]news.News, error) {
	b := psql.Select("*").From("news").OrderBy("created_at DESC", "id DESC")
	if activeOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	list := make([]news.News, 0)
	err := repo.selectAll(ctx, &list, b, "listing news")
	return list, err
}

func (repo newsRepository) UpdateNews(ctx context.Context, n news.News) (news.News, error) {
	var updated news.News
	b := psql.Update("news").
		Set("title", n.Title).
		Set("content", n.Content).
		Set("is_active", n.IsActive).
		Where(sq.Eq{"id": n.ID}).
		Suffix("RETURNING *")
	err := repo.get(ctx, &updated, b, news.ErrNotFound, "updating news")
	return updated, err
}
