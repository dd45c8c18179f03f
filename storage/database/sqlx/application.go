package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/application"
)

type applicationRepository struct {
	repository
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{repository{db: db}}
}

func applicationValues(a application.Application) map[string]interface{} {
	return map[string]interface{}{
		"application_number":  a.ApplicationNumber,
		"status":              a.Status,
		"first_name":          a.FirstName,
		"last_name":           a.LastName,
		"email":               a.Email,
		"phone":               a.Phone,
		"whatsapp":            a.WhatsApp,
		"date_of_birth":       a.DateOfBirth,
		"gender":              a.Gender,
		"nrc_number":          a.NRCNumber,
		"address":             a.Address,
		"city":                a.City,
		"province":            a.Province,
		"branch":              a.Branch,
		"course":              a.Course,
		"preferred_language":  a.PreferredLanguage,
		"preferred_schedule":  a.PreferredSchedule,
		"education_level":     a.EducationLevel,
		"previous_experience": a.PreviousExperience,
		"medical_conditions":  a.MedicalConditions,
		"emergency_name":      a.EmergencyName,
		"emergency_phone":     a.EmergencyPhone,
		"emergency_relation":  a.EmergencyRelation,
		"profile_photo":       a.ProfilePhoto,
		"admin_notes":         a.AdminNotes,
		"reviewed_by":         a.ReviewedBy,
		"reviewed_at":         a.ReviewedAt,
		"created_at":          a.CreatedAt,
		"updated_at":          a.UpdatedAt,
	}
}

func (repo applicationRepository) CreateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	var created application.Application
	b := psql.Insert("application").SetMap(applicationValues(a)).Suffix("RETURNING *")
	err := repo.get(ctx, &created, b, nil, "inserting application")
	return created, err
}

func (repo applicationRepository) GetApplication(ctx context.Context, id int) (application.Application, error) {
	var a application.Application
	b := psql.Select("*").From("application").Where(sq.Eq{"id": id})
	err := repo.get(ctx, &a, b, application.ErrNotFound, "finding application by ID")
	return a, err
}

func (repo applicationRepository) GetApplicationForUpdate(ctx context.Context, id int) (application.Application, error) {
	var a application.Application
	b := psql.Select("*").From("application").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
	err := repo.get(ctx, &a, b, application.ErrNotFound, "locking application")
	return a, err
}

func (repo applicationRepository) GetApplicationByNumber(ctx context.Context, number string) (application.Application, error) {
	var a application.Application
	b := psql.Select("*").From("application").Where(sq.Eq{"application_number": number})
	err := repo.get(ctx, &a, b, application.ErrNotFound, "finding application by number")
	return a, err
}

func (repo applicationRepository) FilterApplications(
	ctx context.Context,
	filter application.QueryFilter,
	ordering ...core.DBOrdering,
) ([]application.Application, error) {
	b := psql.Select("*").From("application")
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Branch != "" {
		b = b.Where(sq.Eq{"branch": filter.Branch})
	}
	if filter.Course != "" {
		b = b.Where(sq.Eq{"course": filter.Course})
	}
	if from := filter.From(); !from.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": from})
	}
	if to := filter.To(); !to.IsZero() {
		b = b.Where(sq.Lt{"created_at": to.AddDate(0, 0, 1)})
	}
	if filter.Search != "" {
		b = b.Where(search(filter.Search, "first_name", "last_name", "email", "phone", "application_number"))
	}
	b = orderBy(b, "", ordering, "created_at DESC")

	apps := make([]application.Application, 0)
	err := repo.selectAll(ctx, &apps, b, "filtering applications")
	return apps, err
}

func (repo applicationRepository) UpdateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	values := applicationValues(a)
	delete(values, "application_number")
	delete(values, "created_at")

	var updated application.Application
	b := psql.Update("application").SetMap(values).Where(sq.Eq{"id": a.ID}).Suffix("RETURNING *")
	err := repo.get(ctx, &updated, b, application.ErrNotFound, "updating application")
	return updated, err
}

func (repo applicationRepository) CountByStatus(ctx context.Context, branch core.Branch) (map[application.Status]int, error) {
	b := psql.Select("status", "COUNT(*) AS count").From("application").GroupBy("status")
	if branch != "" && branch != core.BranchBoth {
		b = b.Where(sq.Eq{"branch": branch})
	}

	var rows []struct {
		Status application.Status `db:"status"`
		Count  int                `db:"count"`
	}
	if err := repo.selectAll(ctx, &rows, b, "counting applications"); err != nil {
		return nil, err
	}
	counts := make(map[application.Status]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
