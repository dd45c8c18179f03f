// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/contact"
	"github.com/keemdrivingschool/keem/core/export"
	"github.com/keemdrivingschool/keem/core/news"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
	"github.com/keemdrivingschool/keem/services/email"
	"github.com/keemdrivingschool/keem/services/logger"
	"github.com/keemdrivingschool/keem/services/whatsapp"
	"github.com/keemdrivingschool/keem/storage/database/inmem"
	"github.com/keemdrivingschool/keem/storage/files"
)

const DefaultPassword = "Dr1v3-S4fe!"

// Env holds the services and their doubles, all sharing one in-memory database.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	WhatsApp   *whatsappsvc.SenderMock
	Photos     *files.PhotoStore

	AdminRepo       admin.Repository
	ApplicationRepo application.Repository
	StudentRepo     student.Repository

	AdminSvc       *admin.Service
	ApplicationSvc *application.Service
	StudentSvc     *student.Service
	SettingsSvc    *settings.Service
	ContactSvc     *contact.Service
	NewsSvc        *news.Service
}

// NewValidator returns a validator with every custom rule and its english translations registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()

	core.InitValidators(validate, translator)
	admin.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t testing.TB) *Env {
	conf := core.NewTestConfig()
	conf.Upload.Dir = t.TempDir()

	log := logsvc.NewConsoleLogger(io.Discard, conf)
	core.ParseEmailTemplates(log, conf)
	admin.LoadCommonPasswords(log)
	validate, translator := NewValidator()

	photos, err := files.NewPhotoStore(conf.Upload)
	if err != nil {
		t.Fatalf("NewPhotoStore() failed: %v", err)
	}

	db := inmemdb.Open()
	env := &Env{
		Conf:            conf,
		DB:              db,
		Logger:          log,
		Validate:        validate,
		Translator:      translator,
		Mail:            emailsvc.NewConsoleServiceMock(conf),
		WhatsApp:        whatsappsvc.NewSenderMock(),
		Photos:          photos,
		AdminRepo:       inmemdb.NewAdminRepository(db),
		ApplicationRepo: inmemdb.NewApplicationRepository(db),
		StudentRepo:     inmemdb.NewStudentRepository(db),
	}

	emailDispatcher := notify.NewEmailDispatcher(env.Mail, log)
	env.AdminSvc = admin.NewService(env.AdminRepo, env.Mail, validate, log, conf)
	env.StudentSvc = student.NewService(env.StudentRepo, db, validate)
	env.SettingsSvc = settings.NewService(inmemdb.NewSettingsRepository(db), validate)
	env.ContactSvc = contact.NewService(inmemdb.NewContactRepository(db), env.SettingsSvc, emailDispatcher, validate, log)
	env.NewsSvc = news.NewService(inmemdb.NewNewsRepository(db), validate)
	env.ApplicationSvc = application.NewService(application.Deps{
		Repo:     env.ApplicationRepo,
		Tx:       db,
		Students: env.StudentSvc,
		Settings: env.SettingsSvc,
		Email:    emailDispatcher,
		WhatsApp: notify.NewWhatsAppDispatcher(env.WhatsApp, conf.DefaultCountryCode, log),
		Photos:   photos,
		Letter:   export.AcceptanceLetter,
		Validate: validate,
		Logger:   log,
		Conf:     conf,
	})
	return env
}

// ResetOutboxes forgets the emails and WhatsApp messages sent so far.
func (env *Env) ResetOutboxes() {
	env.Mail.Reset()
	env.WhatsApp.Reset()
}

func CreateAdmin(
	t testing.TB,
	repo admin.Repository,
	name, email, pwd string,
	role admin.Role,
	branch core.Branch,
	isActive bool,
) admin.Admin {
	now := time.Now().UTC()
	a := admin.Admin{
		Name:      name,
		Email:     email,
		Role:      role,
		Branch:    branch,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := a.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAdmin() failed: %v", err)
		}
	}
	a, err := repo.CreateAdmin(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAdmin() failed: %v", err)
	}
	return a
}

func Principal(t testing.TB, a admin.Admin) admin.Principal {
	p, err := admin.NewPrincipal(a)
	if err != nil {
		t.Fatalf("Principal() failed: %v", err)
	}
	return p
}

// NewApplicationData returns a valid submission for the given branch and course.
func NewApplicationData(firstName, email, branch, course string) application.NewApplication {
	return application.NewApplication{
		FirstName:         firstName,
		LastName:          "Mwansa",
		Email:             email,
		Phone:             "0977123456",
		DateOfBirth:       "1998-04-12",
		Gender:            "female",
		NRCNumber:         "123456/10/1",
		Address:           "Plot 12, Kafubu Road",
		City:              "Luanshya",
		Province:          "Copperbelt",
		Branch:            branch,
		Course:            course,
		PreferredLanguage: "English",
		EmergencyName:     "Joseph Mwansa",
		EmergencyPhone:    "0966765432",
		EmergencyRelation: "Father",
	}
}

func SubmitApplication(t testing.TB, svc *application.Service, na application.NewApplication) application.Application {
	app, err := svc.Submit(context.Background(), na, nil)
	if err != nil {
		t.Fatalf("SubmitApplication() failed: %v", err)
	}
	return app
}

// AcceptApplication accepts app on behalf of p and returns the enrolled student.
func AcceptApplication(t testing.TB, svc *application.Service, p admin.Principal, app application.Application) student.Student {
	res, err := svc.Transition(context.Background(), p, app.ID, string(application.StatusAccepted), "")
	if err != nil {
		t.Fatalf("AcceptApplication() failed: %v", err)
	}
	if res.Student == nil {
		t.Fatal("AcceptApplication() failed: no student")
	}
	return *res.Student
}
