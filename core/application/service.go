package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
)

const (
	numberAttempts   = 5
	numberConstraint = "application_number_key"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("application")

	NowFunc = time.Now // mockable

	orderingFields = []string{"created_at", "updated_at", "application_number", "first_name", "last_name", "status", "branch", "course"}
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, a Application) (Application, error)
		GetApplication(ctx context.Context, id int) (Application, error)
		GetApplicationForUpdate(ctx context.Context, id int) (Application, error)
		GetApplicationByNumber(ctx context.Context, number string) (Application, error)
		FilterApplications(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Application, error)
		UpdateApplication(ctx context.Context, a Application) (Application, error)
		CountByStatus(ctx context.Context, branch core.Branch) (map[Status]int, error)
	}

	// Enroller materializes the Student of an accepted application.
	Enroller interface {
		Enroll(ctx context.Context, e student.Enrollment) (student.Student, bool, error)
	}

	SettingsSource interface {
		Snapshot(ctx context.Context) (settings.Snapshot, error)
	}

	// PhotoStore keeps the profile photos of applicants.
	PhotoStore interface {
		Save(r io.Reader) (name string, err error)
		Delete(name string) error
	}

	// LetterRenderer renders the acceptance letter sent along the acceptance email.
	LetterRenderer func(a Application, st student.Student, snap settings.Snapshot) ([]byte, error)

	Deps struct {
		Repo     Repository
		Tx       core.Transactor
		Students Enroller
		Settings SettingsSource
		Email    notify.Dispatcher
		WhatsApp notify.Dispatcher
		Photos   PhotoStore
		Letter   LetterRenderer
		Validate *validator.Validate
		Logger   core.Logger
		Conf     *core.Config
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		students Enroller
		settings SettingsSource
		email    notify.Dispatcher
		whatsapp notify.Dispatcher
		photos   PhotoStore
		letter   LetterRenderer
		validate *validator.Validate
		logger   core.Logger
		timeout  time.Duration
	}

	// TransitionResult reports what a status change did.
	TransitionResult struct {
		Application    Application      `json:"application"`
		Previous       Status           `json:"previous_status"`
		Student        *student.Student `json:"student,omitempty"`
		StudentCreated bool             `json:"student_created"`
		Notifications  []notify.Outcome `json:"notifications"`
	}
)

func NewService(deps Deps) *Service {
	timeout := 10 * time.Second
	if deps.Conf != nil && deps.Conf.Notify.Timeout > 0 {
		timeout = deps.Conf.Notify.Timeout
	}
	return &Service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		students: deps.Students,
		settings: deps.Settings,
		email:    deps.Email,
		whatsapp: deps.WhatsApp,
		photos:   deps.Photos,
		letter:   deps.Letter,
		validate: deps.Validate,
		logger:   deps.Logger,
		timeout:  timeout,
	}
}

// Warnings lists the notifications that could not be delivered.
func (res TransitionResult) Warnings() []string {
	var warns []string
	for _, o := range res.Notifications {
		if !o.Delivered {
			warns = append(warns, fmt.Sprintf("%s notification to %s failed", o.Channel, o.Recipient))
		}
	}
	return warns
}

func newApplicationNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("APP-%s-%s", at.UTC().Format("200601"), id[:8])
}

// Submit validates and stores a new pending Application along with the optional photo.
// Nothing is stored when validation fails. No notification is sent.
func (svc *Service) Submit(ctx context.Context, na NewApplication, photo io.Reader) (Application, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Application{}, err
	}
	app := na.toApplication()

	if photo != nil && svc.photos != nil {
		name, err := svc.photos.Save(photo)
		if err != nil {
			return Application{}, err
		}
		app.ProfilePhoto = name
	}

	var (
		created Application
		err     error
	)
	for i := 0; i < numberAttempts; i++ {
		now := NowFunc().UTC()
		app.ApplicationNumber = newApplicationNumber(now)
		app.CreatedAt, app.UpdatedAt = now, now

		created, err = svc.repo.CreateApplication(ctx, app)
		if ce, ok := errors.Cause(err).(*core.ConstraintError); ok && ce.Constraint == numberConstraint {
			continue
		}
		break
	}
	if err != nil {
		if app.ProfilePhoto != "" {
			if derr := svc.photos.Delete(app.ProfilePhoto); derr != nil {
				svc.logger.Error(fmt.Sprintf("deleting photo %s: %v", app.ProfilePhoto, derr), derr)
			}
		}
		return Application{}, errors.Wrap(err, "creating application")
	}
	return created, nil
}

// Get returns an application; applications outside the branch of p are not found.
func (svc *Service) Get(ctx context.Context, p admin.Principal, id int) (Application, error) {
	if err := p.Require(); err != nil {
		return Application{}, err
	}
	app, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !p.CanAccess(app.Branch) {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (svc *Service) Filter(ctx context.Context, p admin.Principal, filter QueryFilter, ordering ...core.DBOrdering) ([]Application, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	branch, ok := p.ScopeBranch(core.Branch(filter.Branch))
	if !ok {
		return []Application{}, nil
	}
	filter.Branch = string(branch)
	return svc.repo.FilterApplications(ctx, filter, core.CleanOrderings(ordering, orderingFields...)...)
}

func (svc *Service) Stats(ctx context.Context, p admin.Principal) (Stats, error) {
	if err := p.Require(); err != nil {
		return Stats{}, err
	}
	branch, _ := p.ScopeBranch("")
	counts, err := svc.repo.CountByStatus(ctx, branch)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting applications")
	}
	return newStats(counts), nil
}

// Pending lists the pending applications of a branch (both when empty), oldest first.
func (svc *Service) Pending(ctx context.Context, branch core.Branch) ([]Application, error) {
	if branch == core.BranchBoth {
		branch = ""
	}
	filter := QueryFilter{Status: string(StatusPending), Branch: string(branch)}
	return svc.repo.FilterApplications(ctx, filter, core.DBOrdering{Field: "created_at", Ascending: true})
}

// Lookup returns the status of an application to its applicant.
// A reference that does not match the email is not found.
func (svc *Service) Lookup(ctx context.Context, number, email string) (StatusView, error) {
	number = strings.ToUpper(core.CleanString(number))
	email = core.CleanString(email, true /* lower */)
	if number == "" || email == "" {
		return StatusView{}, ErrNotFound
	}
	app, err := svc.repo.GetApplicationByNumber(ctx, number)
	if err != nil {
		return StatusView{}, err
	}
	if app.Email != email {
		return StatusView{}, ErrNotFound
	}
	return newStatusView(app), nil
}

// Annotate appends notes to an application without changing its status. Allowed in every status.
func (svc *Service) Annotate(ctx context.Context, p admin.Principal, id int, notes string) (Application, error) {
	if err := p.Require(); err != nil {
		return Application{}, err
	}
	if core.CleanString(notes) == "" {
		return Application{}, core.NewFieldError("notes", "this field is required")
	}

	var app Application
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if app, err = svc.lockApplication(ctx, p, id); err != nil {
			return err
		}
		now := NowFunc().UTC()
		app.appendNote(p.Name, notes, now)
		app.UpdatedAt = now
		app, err = svc.repo.UpdateApplication(ctx, app)
		return errors.Wrap(err, "updating application")
	})
	return app, err
}

func (svc *Service) lockApplication(ctx context.Context, p admin.Principal, id int) (Application, error) {
	app, err := svc.repo.GetApplicationForUpdate(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !p.CanAccess(app.Branch) {
		return Application{}, ErrNotFound
	}
	return app, nil
}

// Transition changes the status of an application on behalf of an admin.
//
// The status change, the review stamp, the notes and, on acceptance, the Student
// are written in one transaction. The applicant is then notified by email and WhatsApp;
// notification failures are reported in the result, never returned as an error.
// Keeping the current status re-sends the notifications and never creates a second Student.
func (svc *Service) Transition(ctx context.Context, p admin.Principal, id int, status, notes string) (TransitionResult, error) {
	if err := p.Require(); err != nil {
		return TransitionResult{}, err
	}
	next, err := ParseStatus(status)
	if err != nil {
		return TransitionResult{}, err
	}
	snap, err := svc.settings.Snapshot(ctx)
	if err != nil {
		return TransitionResult{}, errors.Wrap(err, "reading settings")
	}

	var res TransitionResult
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := svc.lockApplication(ctx, p, id)
		if err != nil {
			return err
		}
		if !app.Status.CanTransitionTo(next) {
			return core.NewFieldError("status", fmt.Sprintf("cannot change status from %s to %s", app.Status, next))
		}

		now := NowFunc().UTC()
		res.Previous = app.Status
		app.Status = next
		app.ReviewedBy = core.IntPtr(p.AdminID)
		app.ReviewedAt = &now
		app.UpdatedAt = now
		app.appendNote(p.Name, notes, now)
		if app, err = svc.repo.UpdateApplication(ctx, app); err != nil {
			return errors.Wrap(err, "updating application")
		}
		res.Application = app

		if next == StatusAccepted {
			st, created, err := svc.students.Enroll(ctx, student.Enrollment{
				ApplicationID: app.ID,
				Course:        app.Course,
				Branch:        app.Branch,
				EnrolledAt:    now,
				CreatedBy:     p.AdminID,
			})
			if err != nil {
				return errors.Wrap(err, "enrolling student")
			}
			res.Student = &st
			res.StudentCreated = created
		}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	res.Notifications = svc.notifyApplicant(ctx, res, snap, core.CleanString(notes))
	return res, nil
}

func (svc *Service) notifyApplicant(ctx context.Context, res TransitionResult, snap settings.Snapshot, notes string) []notify.Outcome {
	ctx, cancel := context.WithTimeout(ctx, svc.timeout)
	defer cancel()

	app := res.Application
	data := statusMessageData{
		FirstName:         app.FirstName,
		ApplicationNumber: app.ApplicationNumber,
		Course:            app.CourseName(),
		Branch:            string(app.Branch),
		StatusLabel:       app.Status.Label(),
		Notes:             notes,
		SchoolName:        snap.SchoolName(),
		SchoolPhone:       snap.SchoolPhone(),
		SchoolEmail:       snap.SchoolEmail(),
	}

	em := notify.Message{
		Recipient:     app.Email,
		RecipientName: app.FullName(),
		Subject:       fmt.Sprintf("Your application %s: %s", app.ApplicationNumber, data.StatusLabel),
		TemplateName:  "application_status",
		TemplateData:  data,
	}
	if app.Status == StatusAccepted && res.Student != nil {
		data.StudentNumber = res.Student.StudentNumber
		em.Subject = fmt.Sprintf("Welcome to %s: application %s accepted", data.SchoolName, app.ApplicationNumber)
		em.TemplateName = "application_accepted"
		em.TemplateData = data
		if at, ok := svc.acceptanceLetter(app, *res.Student, snap); ok {
			em.Attachments = []core.Attachment{at}
		}
	}

	msgs := map[notify.Channel]notify.Message{
		notify.ChannelEmail: em,
		notify.ChannelWhatsApp: {
			Recipient:     app.WhatsAppNumber(),
			RecipientName: app.FullName(),
			Subject:       data.SchoolName,
			Body:          whatsAppStatusBody(data),
		},
	}
	return notify.Dispatch(ctx, msgs, svc.email, svc.whatsapp)
}

// acceptanceLetter renders the letter attached to the acceptance email.
// A rendering failure is logged; the email is sent without it.
func (svc *Service) acceptanceLetter(app Application, st student.Student, snap settings.Snapshot) (core.Attachment, bool) {
	if svc.letter == nil {
		return core.Attachment{}, false
	}
	pdf, err := svc.letter(app, st, snap)
	if err == nil {
		var at core.Attachment
		filename := fmt.Sprintf("acceptance-letter-%s.pdf", app.ApplicationNumber)
		if at, err = core.NewAttachment(bytes.NewReader(pdf), filename, "application/pdf"); err == nil {
			return at, true
		}
	}
	svc.logger.Error(fmt.Sprintf("rendering acceptance letter of %s: %v", app.ApplicationNumber, err), err)
	return core.Attachment{}, false
}
