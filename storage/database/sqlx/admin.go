package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core/admin"
)

type adminRepository struct {
	repository
}

var _ admin.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(db *sqlx.DB) *adminRepository {
	return &adminRepository{repository{db: db}}
}

func adminValues(a admin.Admin) map[string]interface{} {
	return map[string]interface{}{
		"name":          a.Name,
		"email":         a.Email,
		"phone":         a.Phone,
		"password_hash": a.PasswordHash,
		"role":          a.Role,
		"branch":        a.Branch,
		"is_active":     a.IsActive,
		"last_login":    a.LastLogin,
		"created_at":    a.CreatedAt,
		"updated_at":    a.UpdatedAt,
	}
}

func (repo adminRepository) CreateAdmin(ctx context.Context, a admin.Admin) (admin.Admin, error) {
	var created admin.Admin
	b := psql.Insert("admin").SetMap(adminValues(a)).Suffix("RETURNING *")
	err := repo.get(ctx, &created, b, nil, "inserting admin")
	return created, err
}

func (repo adminRepository) GetAdmin(ctx context.Context, id int) (admin.Admin, error) {
	var a admin.Admin
	err := repo.get(ctx, &a, psql.Select("*").From("admin").Where(sq.Eq{"id": id}), admin.ErrNotFound, "finding admin by ID")
	return a, err
}

func (repo adminRepository) GetAdminByEmail(ctx context.Context, email string) (admin.Admin, error) {
	var a admin.Admin
	err := repo.get(ctx, &a, psql.Select("*").From("admin").Where(sq.Eq{"email": email}), admin.ErrNotFound, "finding admin by email")
	return a, err
}

func (repo adminRepository) FilterAdmins(ctx context.Context, filter admin.QueryFilter) ([]admin.Admin, error) {
	b := psql.Select("*").From("admin").OrderBy("name ASC")
	if filter.Search != "" {
		b = b.Where(search(filter.Search, "name", "email", "phone"))
	}
	if filter.Role != "" {
		b = b.Where(sq.Eq{"role": filter.Role})
	}
	if filter.Branch != "" {
		b = b.Where(sq.Eq{"branch": filter.Branch})
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}

	admins := make([]admin.Admin, 0)
	err := repo.selectAll(ctx, &admins, b, "filtering admins")
	return admins, err
}

func (repo adminRepository) UpdateAdmin(ctx context.Context, a admin.Admin) (admin.Admin, error) {
	values := adminValues(a)
	delete(values, "created_at")

	var updated admin.Admin
	b := psql.Update("admin").SetMap(values).Where(sq.Eq{"id": a.ID}).Suffix("RETURNING *")
	err := repo.get(ctx, &updated, b, admin.ErrNotFound, "updating admin")
	return updated, err
}
