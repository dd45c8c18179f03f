package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core/admin"
)

type adminRepository struct {
	db *DB
}

var _ admin.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(db *DB) *adminRepository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) CreateAdmin(ctx context.Context, a admin.Admin) (admin.Admin, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		for _, other := range t.admins {
			if other.Email == a.Email {
				return uniqueViolation("admin_email_key")
			}
		}
		a.ID = t.nextPK()
		t.admins[a.ID] = a
		return nil
	})
	if err != nil {
		return admin.Admin{}, err
	}
	return a, nil
}

func (repo *adminRepository) GetAdmin(_ context.Context, id int) (a admin.Admin, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if a, ok = t.admins[id]; !ok {
			err = admin.ErrNotFound
		}
	})
	return a, err
}

func (repo *adminRepository) GetAdminByEmail(_ context.Context, email string) (a admin.Admin, err error) {
	err = admin.ErrNotFound
	repo.db.read(func(t *tables) {
		for _, other := range t.admins {
			if other.Email == email {
				a, err = other, nil
				return
			}
		}
	})
	return a, err
}

func (repo *adminRepository) FilterAdmins(_ context.Context, filter admin.QueryFilter) ([]admin.Admin, error) {
	admins := make([]admin.Admin, 0)
	repo.db.read(func(t *tables) {
		for _, a := range t.admins {
			if filter.Search != "" && !contains(filter.Search, a.Name, a.Email, a.Phone) {
				continue
			}
			if filter.Role != "" && string(a.Role) != filter.Role {
				continue
			}
			if filter.Branch != "" && string(a.Branch) != filter.Branch {
				continue
			}
			if filter.IsActive != nil && a.IsActive != *filter.IsActive {
				continue
			}
			admins = append(admins, a)
		}
	})
	sort.Slice(admins, func(i, j int) bool { return admins[i].Name < admins[j].Name })
	return admins, nil
}

func (repo *adminRepository) UpdateAdmin(ctx context.Context, a admin.Admin) (admin.Admin, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.admins[a.ID]
		if !ok {
			return admin.ErrNotFound
		}
		for _, other := range t.admins {
			if other.ID != a.ID && other.Email == a.Email {
				return uniqueViolation("admin_email_key")
			}
		}
		a.CreatedAt = orig.CreatedAt
		t.admins[a.ID] = a
		return nil
	})
	if err != nil {
		return admin.Admin{}, err
	}
	return a, nil
}
