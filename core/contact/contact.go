// Package contact handles the messages sent through the public contact form.
package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/core/settings"
)

type Status string

// Statuses
const (
	StatusNew      Status = "new"
	StatusRead     Status = "read"
	StatusReplied  Status = "replied"
	StatusArchived Status = "archived"
)

var (
	ErrNotFound = core.NewNotFoundError("contact message")

	Statuses = []Status{StatusNew, StatusRead, StatusReplied, StatusArchived}

	nowFunc = time.Now // mockable
)

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type (
	Message struct {
		ID        int       `json:"id" db:"id"`
		Name      string    `json:"name" db:"name"`
		Email     string    `json:"email" db:"email"`
		Phone     string    `json:"phone" db:"phone"`
		Subject   string    `json:"subject" db:"subject"`
		Message   string    `json:"message" db:"message"`
		Status    Status    `json:"status" db:"status"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	}

	NewMessage struct {
		Name    string `json:"name" form:"name" validate:"required,max=100"`
		Email   string `json:"email" form:"email" validate:"required,email,max=150"`
		Phone   string `json:"phone" form:"phone" validate:"omitempty,phone"`
		Subject string `json:"subject" form:"subject" validate:"required,max=200"`
		Message string `json:"message" form:"message" validate:"required,max=5000"`
	}

	QueryFilter struct {
		Status string `query:"status"`
		Search string `query:"search"`
	}

	Repository interface {
		CreateContactMessage(ctx context.Context, m Message) (Message, error)
		GetContactMessage(ctx context.Context, id int) (Message, error)
		FilterContactMessages(ctx context.Context, filter QueryFilter) ([]Message, error)
		UpdateContactMessage(ctx context.Context, m Message) (Message, error)
	}

	SettingsSource interface {
		Snapshot(ctx context.Context) (settings.Snapshot, error)
	}

	Service struct {
		repo     Repository
		settings SettingsSource
		email    notify.Dispatcher
		validate *validator.Validate
		logger   core.Logger
	}
)

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Phone = core.CleanString(nm.Phone)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Message = core.CleanString(nm.Message)
	return validate.Struct(nm)
}

func (qf *QueryFilter) Clean() error {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status != "" && !Status(qf.Status).IsValid() {
		return core.NewFieldError("status", "must be one of new, read, replied or archived")
	}
	return nil
}

func NewService(repo Repository, settingsSrc SettingsSource, email notify.Dispatcher, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settingsSrc,
		email:    email,
		validate: validate,
		logger:   logger,
	}
}

// Submit stores a contact message then forwards it to the admin notification email, if set.
func (svc *Service) Submit(ctx context.Context, nm NewMessage) (Message, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Message{}, err
	}
	now := nowFunc().UTC()
	m, err := svc.repo.CreateContactMessage(ctx, Message{
		Name:      nm.Name,
		Email:     nm.Email,
		Phone:     nm.Phone,
		Subject:   nm.Subject,
		Message:   nm.Message,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating contact message")
	}

	snap, err := svc.settings.Snapshot(ctx)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("reading settings: %v", err), err)
		return m, nil
	}
	if to := snap.AdminNotifyEmail(); to != "" && svc.email != nil {
		svc.email.Send(ctx, notify.Message{
			Recipient:    to,
			Subject:      "Contact form: " + m.Subject,
			TemplateName: "contact_received",
			TemplateData: m,
		})
	}
	return m, nil
}

func (svc *Service) Filter(ctx context.Context, p admin.Principal, filter QueryFilter) ([]Message, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	return svc.repo.FilterContactMessages(ctx, filter)
}

func (svc *Service) SetStatus(ctx context.Context, p admin.Principal, id int, status string) (Message, error) {
	if err := p.Require(); err != nil {
		return Message{}, err
	}
	st := Status(core.CleanString(status, true /* lower */))
	if !st.IsValid() {
		return Message{}, core.NewFieldError("status", "must be one of new, read, replied or archived")
	}
	m, err := svc.repo.GetContactMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	m.Status = st
	m.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateContactMessage(ctx, m)
}
