package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core/news"
)

type newsRepository struct {
	db *DB
}

var _ news.Repository = (*newsRepository)(nil) // interface compliance check

func NewNewsRepository(db *DB) *newsRepository {
	return &newsRepository{db: db}
}

func (repo *newsRepository) CreateNews(ctx context.Context, n news.News) (news.News, error) {
	_ = repo.db.write(ctx, func(t *tables) error {
		n.ID = t.nextPK()
		t.news[n.ID] = n
		return nil
	})
	return n, nil
}

func (repo *newsRepository) GetNews(_ context.Context, id int) (n news.News, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if n, ok = t.news[id]; !ok {
			err = news.ErrNotFound
		}
	})
	return n, err
}

func (repo *newsRepository) ListNews(_ context.Context, activeOnly bool, limit int) ([]news.News, error) {
	list := make([]news.News, 0)
	repo.db.read(func(t *tables) {
		for _, n := range t.news {
			if activeOnly && !n.IsActive {
				continue
			}
			list = append(list, n)
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (repo *newsRepository) UpdateNews(ctx context.Context, n news.News) (news.News, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.news[n.ID]
		if !ok {
			return news.ErrNotFound
		}
		n.CreatedBy = orig.CreatedBy
		n.CreatedAt = orig.CreatedAt
		t.news[n.ID] = n
		return nil
	})
	if err != nil {
		return news.News{}, err
	}
	return n, nil
}
