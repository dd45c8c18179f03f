package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func applicationColumn(a application.Application, field string) interface{} {
	switch field {
	case "updated_at":
		return a.UpdatedAt
	case "application_number":
		return a.ApplicationNumber
	case "first_name":
		return a.FirstName
	case "last_name":
		return a.LastName
	case "status":
		return string(a.Status)
	case "branch":
		return string(a.Branch)
	case "course":
		return a.Course
	default:
		return a.CreatedAt
	}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.applications {
			if other.ApplicationNumber == a.ApplicationNumber {
				return uniqueViolation("application_number_key")
			}
		}
		a.ID = t.nextPK()
		t.applications[a.ID] = a
		return nil
	})
	if err != nil {
		return application.Application{}, err
	}
	return a, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id int) (a application.Application, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if a, ok = t.applications[id]; !ok {
			err = application.ErrNotFound
		}
	})
	return a, err
}

// GetApplicationForUpdate relies on the serialized transactions for locking.
func (repo *applicationRepository) GetApplicationForUpdate(ctx context.Context, id int) (application.Application, error) {
	return repo.GetApplication(ctx, id)
}

func (repo *applicationRepository) GetApplicationByNumber(_ context.Context, number string) (a application.Application, err error) {
	err = application.ErrNotFound
	repo.db.read(func(t *tables) {
		for _, other := range t.applications {
			if other.ApplicationNumber == number {
				a, err = other, nil
				return
			}
		}
	})
	return a, err
}

func (repo *applicationRepository) FilterApplications(
	_ context.Context,
	filter application.QueryFilter,
	ordering ...core.DBOrdering,
) ([]application.Application, error) {
	from, to := filter.From(), filter.To()
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	apps := make([]application.Application, 0)
	repo.db.read(func(t *tables) {
		for _, a := range t.applications {
			switch {
			case filter.Status != "" && string(a.Status) != filter.Status,
				filter.Branch != "" && string(a.Branch) != filter.Branch,
				filter.Course != "" && a.Course != filter.Course,
				!from.IsZero() && a.CreatedAt.Before(from),
				!to.IsZero() && !a.CreatedAt.Before(to),
				filter.Search != "" && !contains(filter.Search, a.FirstName, a.LastName, a.Email, a.Phone, a.ApplicationNumber):
				continue
			}
			apps = append(apps, a)
		}
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(apps, lessFunc(
		ordering,
		func(i int, field string) interface{} { return applicationColumn(apps[i], field) },
		func(i int) int { return apps[i].ID },
	))
	return apps, nil
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.applications[a.ID]
		if !ok {
			return application.ErrNotFound
		}
		a.ApplicationNumber = orig.ApplicationNumber
		a.CreatedAt = orig.CreatedAt
		t.applications[a.ID] = a
		return nil
	})
	if err != nil {
		return application.Application{}, err
	}
	return a, nil
}

func (repo *applicationRepository) CountByStatus(_ context.Context, branch core.Branch) (map[application.Status]int, error) {
	counts := make(map[application.Status]int)
	repo.db.read(func(t *tables) {
		for _, a := range t.applications {
			if branch != "" && branch != core.BranchBoth && a.Branch != branch {
				continue
			}
			counts[a.Status]++
		}
	})
	return counts, nil
}
