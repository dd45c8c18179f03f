package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

// withApplication fills the fields a student reads from its application.
func (t *tables) withApplication(s student.Student) student.Student {
	a := t.applications[s.ApplicationID]
	s.FirstName = a.FirstName
	s.LastName = a.LastName
	s.Email = a.Email
	s.Phone = a.Phone
	return s
}

func (t *tables) withStudent(p student.Payment) student.Payment {
	s := t.students[p.StudentID]
	p.StudentNumber = s.StudentNumber
	p.Branch = s.Branch
	return p
}

func studentColumn(s student.Student, field string) interface{} {
	switch field {
	case "enrollment_date":
		return s.EnrollmentDate
	case "student_number":
		return s.StudentNumber
	case "status":
		return string(s.Status)
	case "payment_status":
		return string(s.PaymentStatus)
	case "branch":
		return string(s.Branch)
	case "course":
		return s.Course
	default:
		return s.CreatedAt
	}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.applications[s.ApplicationID]; !ok {
			return foreignKeyViolation("student_application_id_fkey")
		}
		for _, other := range t.students {
			if other.StudentNumber == s.StudentNumber {
				return uniqueViolation("student_number_key")
			}
			if other.ApplicationID == s.ApplicationID {
				return uniqueViolation("student_application_id_key")
			}
		}
		s.ID = t.nextPK()
		t.students[s.ID] = s
		s = t.withApplication(s)
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id int) (s student.Student, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if s, ok = t.students[id]; !ok {
			err = student.ErrNotFound
			return
		}
		s = t.withApplication(s)
	})
	return s, err
}

// GetStudentForUpdate relies on the serialized transactions for locking.
func (repo *studentRepository) GetStudentForUpdate(ctx context.Context, id int) (student.Student, error) {
	return repo.GetStudent(ctx, id)
}

func (repo *studentRepository) GetStudentByApplication(_ context.Context, applicationID int) (s student.Student, err error) {
	err = student.ErrNotFound
	repo.db.read(func(t *tables) {
		for _, other := range t.students {
			if other.ApplicationID == applicationID {
				s, err = t.withApplication(other), nil
				return
			}
		}
	})
	return s, err
}

func (repo *studentRepository) StudentNumberExists(_ context.Context, number string) (exists bool, err error) {
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			if s.StudentNumber == number {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	students := make([]student.Student, 0)
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			s = t.withApplication(s)
			switch {
			case filter.Status != "" && string(s.Status) != filter.Status,
				filter.PaymentStatus != "" && string(s.PaymentStatus) != filter.PaymentStatus,
				filter.Branch != "" && string(s.Branch) != filter.Branch,
				filter.Course != "" && s.Course != filter.Course,
				filter.Search != "" && !contains(filter.Search, s.StudentNumber, s.FirstName, s.LastName, s.Email, s.Phone):
				continue
			}
			students = append(students, s)
		}
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(students, lessFunc(
		ordering,
		func(i int, field string) interface{} { return studentColumn(students[i], field) },
		func(i int) int { return students[i].ID },
	))
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.students[s.ID]
		if !ok {
			return student.ErrNotFound
		}
		s.StudentNumber = orig.StudentNumber
		s.ApplicationID = orig.ApplicationID
		s.CreatedAt = orig.CreatedAt
		t.students[s.ID] = s
		s = t.withApplication(s)
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) CreatePayment(ctx context.Context, p student.Payment) (student.Payment, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.students[p.StudentID]; !ok {
			return foreignKeyViolation("payment_student_id_fkey")
		}
		for _, other := range t.payments {
			if other.PaymentNumber == p.PaymentNumber {
				return uniqueViolation("payment_number_key")
			}
		}
		p.ID = t.nextPK()
		t.payments[p.ID] = p
		p = t.withStudent(p)
		return nil
	})
	if err != nil {
		return student.Payment{}, err
	}
	return p, nil
}

func (repo *studentRepository) GetPayment(_ context.Context, id int) (p student.Payment, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if p, ok = t.payments[id]; !ok {
			err = student.ErrPaymentNotFound
			return
		}
		p = t.withStudent(p)
	})
	return p, err
}

// GetPaymentForUpdate relies on the serialized transactions for locking.
func (repo *studentRepository) GetPaymentForUpdate(ctx context.Context, id int) (student.Payment, error) {
	return repo.GetPayment(ctx, id)
}

func (repo *studentRepository) UpdatePayment(ctx context.Context, p student.Payment) (student.Payment, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.payments[p.ID]
		if !ok {
			return student.ErrPaymentNotFound
		}
		p.PaymentNumber = orig.PaymentNumber
		p.StudentID = orig.StudentID
		p.CreatedAt = orig.CreatedAt
		t.payments[p.ID] = p
		p = t.withStudent(p)
		return nil
	})
	if err != nil {
		return student.Payment{}, err
	}
	return p, nil
}

func (repo *studentRepository) FilterPayments(_ context.Context, filter student.PaymentFilter) ([]student.Payment, error) {
	from, to := filter.From(), filter.To()

	payments := make([]student.Payment, 0)
	repo.db.read(func(t *tables) {
		for _, p := range t.payments {
			p = t.withStudent(p)
			switch {
			case filter.StudentID != 0 && p.StudentID != filter.StudentID,
				filter.Method != "" && string(p.Method) != filter.Method,
				filter.Status != "" && string(p.Status) != filter.Status,
				filter.Branch != "" && string(p.Branch) != filter.Branch,
				!from.IsZero() && p.PaymentDate.Before(from),
				!to.IsZero() && p.PaymentDate.After(to):
				continue
			}
			payments = append(payments, p)
		}
	})
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].PaymentDate.After(payments[j].PaymentDate)
		}
		return payments[i].ID > payments[j].ID
	})
	return payments, nil
}

func (repo *studentRepository) CountPayments(_ context.Context, studentID int) (count int, err error) {
	repo.db.read(func(t *tables) {
		for _, p := range t.payments {
			if p.StudentID == studentID {
				count++
			}
		}
	})
	return count, nil
}

func (repo *studentRepository) SumCompletedPayments(_ context.Context, studentID int) (sum student.Money, err error) {
	repo.db.read(func(t *tables) {
		for _, p := range t.payments {
			if p.StudentID == studentID && p.Status == student.PaymentCompleted {
				sum += p.Amount
			}
		}
	})
	return sum, nil
}

func (repo *studentRepository) CreateLesson(ctx context.Context, l student.Lesson) (student.Lesson, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.students[l.StudentID]; !ok {
			return foreignKeyViolation("lesson_student_id_fkey")
		}
		if l.InstructorID != nil {
			if _, ok := t.admins[*l.InstructorID]; !ok {
				return foreignKeyViolation("lesson_instructor_id_fkey")
			}
		}
		l.ID = t.nextPK()
		t.lessons[l.ID] = l
		return nil
	})
	if err != nil {
		return student.Lesson{}, err
	}
	return l, nil
}

func (repo *studentRepository) GetLesson(_ context.Context, id int) (l student.Lesson, err error) {
	repo.db.read(func(t *tables) {
		var ok bool
		if l, ok = t.lessons[id]; !ok {
			err = student.ErrLessonNotFound
		}
	})
	return l, err
}

func (repo *studentRepository) UpdateLesson(ctx context.Context, l student.Lesson) (student.Lesson, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		orig, ok := t.lessons[l.ID]
		if !ok {
			return student.ErrLessonNotFound
		}
		if l.InstructorID != nil {
			if _, ok := t.admins[*l.InstructorID]; !ok {
				return foreignKeyViolation("lesson_instructor_id_fkey")
			}
		}
		l.StudentID = orig.StudentID
		l.CreatedAt = orig.CreatedAt
		t.lessons[l.ID] = l
		return nil
	})
	if err != nil {
		return student.Lesson{}, err
	}
	return l, nil
}

func (repo *studentRepository) FilterLessons(_ context.Context, studentID int) ([]student.Lesson, error) {
	lessons := make([]student.Lesson, 0)
	repo.db.read(func(t *tables) {
		for _, l := range t.lessons {
			if l.StudentID == studentID {
				lessons = append(lessons, l)
			}
		}
	})
	sort.Slice(lessons, func(i, j int) bool {
		if !lessons[i].ScheduledAt.Equal(lessons[j].ScheduledAt) {
			return lessons[i].ScheduledAt.Before(lessons[j].ScheduledAt)
		}
		return lessons[i].ID < lessons[j].ID
	})
	return lessons, nil
}
