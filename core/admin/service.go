package admin

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("admin")
	ErrEmailExists = errors.New("an admin with this email already exists")
	errSelfUpdate  = core.NewPermissionError("you cannot deactivate your own account")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAdmin(ctx context.Context, a Admin) (Admin, error)
		GetAdmin(ctx context.Context, id int) (Admin, error)
		GetAdminByEmail(ctx context.Context, email string) (Admin, error)
		FilterAdmins(ctx context.Context, filter QueryFilter) ([]Admin, error)
		UpdateAdmin(ctx context.Context, a Admin) (Admin, error)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	initDummyHash()
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		logger:   logger,
		conf:     conf,
	}
}

// Authenticate checks the credentials of an active Admin and records the login.
// Unknown email, wrong password and inactive account all fail the same way.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Admin, error) {
	a, err := svc.repo.GetAdminByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			checkDummyPassword(pwd)
			return Admin{}, core.ErrAuthenticationFailed
		}
		return Admin{}, errors.Wrap(err, "finding admin by email")
	}
	if err = a.CheckPassword(pwd); err != nil || !a.IsActive {
		return Admin{}, core.ErrAuthenticationFailed
	}

	now := NowFunc().UTC()
	a.LastLogin = &now
	a.UpdatedAt = now
	if a, err = svc.repo.UpdateAdmin(ctx, a); err != nil {
		return Admin{}, errors.Wrap(err, "setting last login")
	}
	return a, nil
}

// CurrentPrincipal reloads the Admin behind a session.
// A missing or deactivated Admin invalidates the session.
func (svc *Service) CurrentPrincipal(ctx context.Context, id int) (Principal, error) {
	a, err := svc.repo.GetAdmin(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Principal{}, core.ErrSessionInvalid
		}
		return Principal{}, errors.Wrap(err, "finding admin by ID")
	}
	return NewPrincipal(a)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Admin, error) {
	return svc.repo.GetAdmin(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Admin, error) {
	return svc.repo.GetAdminByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetAdminByEmail(ctx, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

// Create adds a new Admin. Only super admins may create admins.
func (svc *Service) Create(ctx context.Context, p Principal, na NewAdmin) (Admin, error) {
	if err := p.Require(RoleSuperAdmin); err != nil {
		return Admin{}, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return Admin{}, err
	}
	return svc.create(ctx, na)
}

func (svc *Service) create(ctx context.Context, na NewAdmin) (Admin, error) {
	if err := svc.checkUniqueness(ctx, na.Email); err != nil {
		return Admin{}, err
	}

	now := NowFunc().UTC()
	a := Admin{
		Name:      na.Name,
		Email:     na.Email,
		Phone:     na.Phone,
		Role:      Role(na.Role),
		Branch:    core.Branch(na.Branch),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.SetPassword(na.Password); err != nil {
		return Admin{}, errors.Wrap(err, "hashing password")
	}
	a, err := svc.repo.CreateAdmin(ctx, a)
	return a, errors.Wrap(err, "creating admin")
}

// UpdateOrCreate sets the password, role and branch of the Admin with the given email, creating it if needed.
// It is meant for the command line, where no Principal exists.
func (svc *Service) UpdateOrCreate(ctx context.Context, na NewAdmin) (Admin, error) {
	na.PasswordConfirm = na.Password
	if err := na.Validate(svc.validate); err != nil {
		return Admin{}, err
	}

	a, err := svc.repo.GetAdminByEmail(ctx, na.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return svc.create(ctx, na)
		}
		return Admin{}, errors.Wrap(err, "finding admin by email")
	}

	if na.Name != "" {
		a.Name = na.Name
	}
	if na.Phone != "" {
		a.Phone = na.Phone
	}
	a.Role = Role(na.Role)
	a.Branch = core.Branch(na.Branch)
	a.IsActive = true
	a.UpdatedAt = NowFunc().UTC()
	if err = a.SetPassword(na.Password); err != nil {
		return Admin{}, errors.Wrap(err, "hashing password")
	}
	a, err = svc.repo.UpdateAdmin(ctx, a)
	return a, errors.Wrap(err, "updating admin")
}

func (svc *Service) Query(ctx context.Context, p Principal, filter QueryFilter) ([]Admin, error) {
	if err := p.Require(RoleSuperAdmin, RoleAdmin); err != nil {
		return nil, err
	}
	filter.Clean()
	return svc.repo.FilterAdmins(ctx, filter)
}

// SetActive activates or deactivates an Admin. Deactivation ends the Admin's sessions on their next request.
func (svc *Service) SetActive(ctx context.Context, p Principal, id int, active bool) (Admin, error) {
	if err := p.Require(RoleSuperAdmin); err != nil {
		return Admin{}, err
	}
	if id == p.AdminID && !active {
		return Admin{}, errSelfUpdate
	}
	a, err := svc.repo.GetAdmin(ctx, id)
	if err != nil {
		return Admin{}, err
	}
	a.IsActive = active
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAdmin(ctx, a)
}

// SetPassword replaces the password of the Admin with the given email, applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	a, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = svc.validate.Struct(SetPassword{Name: a.Name, Email: a.Email, Password: pwd}); err != nil {
		return err
	}
	if err = a.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	a.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAdmin(ctx, a)
	return errors.Wrap(err, "updating admin")
}

// RequestPasswordReset emails a password reset token to the active Admin with the given email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return ErrNotFound
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: a.Name, Address: a.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  a.Name,
			"UID":   encodeUID(a),
			"Token": makeToken(a),
		},
	}
	if err = svc.mailSvc.Send(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending password reset email: %v", err), core.NewTransportError("email", a.Email, err))
	}
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetAdminPassword) error {
	if err := rp.Validate(svc.validate); err != nil {
		return err
	}
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid
	}
	a, err := svc.repo.GetAdmin(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid
		}
		return errors.Wrap(err, "finding admin by ID")
	}
	if err = verifyToken(a, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = svc.validate.Struct(SetPassword{Name: a.Name, Email: a.Email, Password: rp.Password}); err != nil {
		return err
	}

	if err = a.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	a.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAdmin(ctx, a)
	return errors.Wrap(err, "updating admin")
}
