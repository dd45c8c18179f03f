package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/student"
)

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{repository{db: db}}
}

// students are read with the name and contact of their application
func selectStudents() sq.SelectBuilder {
	return psql.Select("s.*", "a.first_name", "a.last_name", "a.email", "a.phone").
		From("student s").
		Join("application a ON a.id = s.application_id")
}

func selectPayments() sq.SelectBuilder {
	return psql.Select("p.*", "s.student_number", "s.branch").
		From("payment p").
		Join("student s ON s.id = p.student_id")
}

func studentValues(s student.Student) map[string]interface{} {
	return map[string]interface{}{
		"student_number":    s.StudentNumber,
		"application_id":    s.ApplicationID,
		"enrollment_date":   s.EnrollmentDate,
		"course_start_date": s.CourseStartDate,
		"course_end_date":   s.CourseEndDate,
		"status":            s.Status,
		"total_fee":         s.TotalFee,
		"amount_paid":       s.AmountPaid,
		"payment_status":    s.PaymentStatus,
		"course":            s.Course,
		"branch":            s.Branch,
		"created_by":        s.CreatedBy,
		"created_at":        s.CreatedAt,
		"updated_at":        s.UpdatedAt,
	}
}

func paymentValues(p student.Payment) map[string]interface{} {
	return map[string]interface{}{
		"payment_number": p.PaymentNumber,
		"student_id":     p.StudentID,
		"amount":         p.Amount,
		"method":         p.Method,
		"reference":      p.Reference,
		"status":         p.Status,
		"payment_date":   p.PaymentDate,
		"received_by":    p.ReceivedBy,
		"notes":          p.Notes,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
}

func lessonValues(l student.Lesson) map[string]interface{} {
	return map[string]interface{}{
		"student_id":       l.StudentID,
		"instructor_id":    l.InstructorID,
		"title":            l.Title,
		"lesson_type":      l.LessonType,
		"scheduled_at":     l.ScheduledAt,
		"duration_minutes": l.DurationMinutes,
		"status":           l.Status,
		"notes":            l.Notes,
		"created_at":       l.CreatedAt,
		"updated_at":       l.UpdatedAt,
	}
}

// insertReturningID runs an INSERT ... RETURNING id.
func (repo studentRepository) insertReturningID(ctx context.Context, table string, values map[string]interface{}, msg string) (int, error) {
	var id int
	b := psql.Insert(table).SetMap(values).Suffix("RETURNING id")
	err := repo.get(ctx, &id, b, nil, msg)
	return id, err
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	id, err := repo.insertReturningID(ctx, "student", studentValues(s), "inserting student")
	if err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, id)
}

func (repo studentRepository) GetStudent(ctx context.Context, id int) (student.Student, error) {
	var s student.Student
	err := repo.get(ctx, &s, selectStudents().Where(sq.Eq{"s.id": id}), student.ErrNotFound, "finding student by ID")
	return s, err
}

func (repo studentRepository) GetStudentForUpdate(ctx context.Context, id int) (student.Student, error) {
	var s student.Student
	b := selectStudents().Where(sq.Eq{"s.id": id}).Suffix("FOR UPDATE OF s")
	err := repo.get(ctx, &s, b, student.ErrNotFound, "locking student")
	return s, err
}

func (repo studentRepository) GetStudentByApplication(ctx context.Context, applicationID int) (student.Student, error) {
	var s student.Student
	b := selectStudents().Where(sq.Eq{"s.application_id": applicationID})
	err := repo.get(ctx, &s, b, student.ErrNotFound, "finding student by application")
	return s, err
}

func (repo studentRepository) StudentNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	b := psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM student WHERE student_number = ?)", number))
	err := repo.get(ctx, &exists, b, nil, "checking student number")
	return exists, err
}

func (repo studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	b := selectStudents()
	if filter.Status != "" {
		b = b.Where(sq.Eq{"s.status": filter.Status})
	}
	if filter.PaymentStatus != "" {
		b = b.Where(sq.Eq{"s.payment_status": filter.PaymentStatus})
	}
	if filter.Branch != "" {
		b = b.Where(sq.Eq{"s.branch": filter.Branch})
	}
	if filter.Course != "" {
		b = b.Where(sq.Eq{"s.course": filter.Course})
	}
	if filter.Search != "" {
		b = b.Where(search(filter.Search, "s.student_number", "a.first_name", "a.last_name", "a.email", "a.phone"))
	}
	b = orderBy(b, "s.", ordering, "s.created_at DESC")

	students := make([]student.Student, 0)
	err := repo.selectAll(ctx, &students, b, "filtering students")
	return students, err
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	values := studentValues(s)
	delete(values, "student_number")
	delete(values, "application_id")
	delete(values, "created_at")

	var id int
	b := psql.Update("student").SetMap(values).Where(sq.Eq{"id": s.ID}).Suffix("RETURNING id")
	if err := repo.get(ctx, &id, b, student.ErrNotFound, "updating student"); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, id)
}

func (repo studentRepository) CreatePayment(ctx context.Context, p student.Payment) (student.Payment, error) {
	id, err := repo.insertReturningID(ctx, "payment", paymentValues(p), "inserting payment")
	if err != nil {
		return student.Payment{}, err
	}
	return repo.GetPayment(ctx, id)
}

func (repo studentRepository) GetPayment(ctx context.Context, id int) (student.Payment, error) {
	var p student.Payment
	err := repo.get(ctx, &p, selectPayments().Where(sq.Eq{"p.id": id}), student.ErrPaymentNotFound, "finding payment by ID")
	return p, err
}

func (repo studentRepository) GetPaymentForUpdate(ctx context.Context, id int) (student.Payment, error) {
	var p student.Payment
	b := selectPayments().Where(sq.Eq{"p.id": id}).Suffix("FOR UPDATE OF p")
	err := repo.get(ctx, &p, b, student.ErrPaymentNotFound, "locking payment")
	return p, err
}

func (repo studentRepository) UpdatePayment(ctx context.Context, p student.Payment) (student.Payment, error) {
	values := paymentValues(p)
	delete(values, "payment_number")
	delete(values, "student_id")
	delete(values, "created_at")

	var id int
	b := psql.Update("payment").SetMap(values).Where(sq.Eq{"id": p.ID}).Suffix("RETURNING id")
	if err := repo.get(ctx, &id, b, student.ErrPaymentNotFound, "updating payment"); err != nil {
		return student.Payment{}, err
	}
	return repo.GetPayment(ctx, id)
}

func (repo studentRepository) FilterPayments(ctx context.Context, filter student.PaymentFilter) ([]student.Payment, error) {
	b := selectPayments()
	if filter.StudentID != 0 {
		b = b.Where(sq.Eq{"p.student_id": filter.StudentID})
	}
	if filter.Method != "" {
		b = b.Where(sq.Eq{"p.method": filter.Method})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"p.status": filter.Status})
	}
	if filter.Branch != "" {
		b = b.Where(sq.Eq{"s.branch": filter.Branch})
	}
	if from := filter.From(); !from.IsZero() {
		b = b.Where(sq.GtOrEq{"p.payment_date": from})
	}
	if to := filter.To(); !to.IsZero() {
		b = b.Where(sq.LtOrEq{"p.payment_date": to})
	}
	b = b.OrderBy("p.payment_date DESC", "p.id DESC")

	payments := make([]student.Payment, 0)
	err := repo.selectAll(ctx, &payments, b, "filtering payments")
	return payments, err
}

func (repo studentRepository) CountPayments(ctx context.Context, studentID int) (int, error) {
	var count int
	b := psql.Select("COUNT(*)").From("payment").Where(sq.Eq{"student_id": studentID})
	err := repo.get(ctx, &count, b, nil, "counting payments")
	return count, err
}

func (repo studentRepository) SumCompletedPayments(ctx context.Context, studentID int) (student.Money, error) {
	var sum student.Money
	b := psql.Select("COALESCE(SUM(amount), 0)").From("payment").
		Where(sq.Eq{"student_id": studentID, "status": student.PaymentCompleted})
	err := repo.get(ctx, &sum, b, nil, "summing payments")
	return sum, err
}

func (repo studentRepository) CreateLesson(ctx context.Context, l student.Lesson) (student.Lesson, error) {
	var created student.Lesson
	b := psql.Insert("lesson").SetMap(lessonValues(l)).Suffix("RETURNING *")
	err := repo.get(ctx, &created, b, nil, "inserting lesson")
	return created, err
}

func (repo studentRepository) GetLesson(ctx context.Context, id int) (student.Lesson, error) {
	var l student.Lesson
	b := psql.Select("*").From("lesson").Where(sq.Eq{"id": id})
	err := repo.get(ctx, &l, b, student.ErrLessonNotFound, "finding lesson by ID")
	return l, err
}

func (repo studentRepository) UpdateLesson(ctx context.Context, l student.Lesson) (student.Lesson, error) {
	values := lessonValues(l)
	delete(values, "student_id")
	delete(values, "created_at")

	var updated student.Lesson
	b := psql.Update("lesson").SetMap(values).Where(sq.Eq{"id": l.ID}).Suffix("RETURNING *")
	err := repo.get(ctx, &updated, b, student.ErrLessonNotFound, "updating lesson")
	return updated, err
}

func (repo studentRepository) FilterLessons(ctx context.Context, studentID int) ([]student.Lesson, error) {
	b := psql.Select("*").From("lesson").Where(sq.Eq{"student_id": studentID}).OrderBy("scheduled_at ASC")
	lessons := make([]student.Lesson, 0)
	err := repo.selectAll(ctx, &lessons, b, "filtering lessons")
	return lessons, err
}
