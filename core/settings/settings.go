package settings

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
)

// Keys
const (
	KeySchoolName          = "school_name"
	KeySchoolPhone         = "school_phone"
	KeySchoolEmail         = "school_email"
	KeySchoolWhatsApp      = "school_whatsapp"
	KeySchoolAddress       = "school_address"
	KeyAdminNotifyEmail    = "admin_notification_email"
	KeyAdminNotifyWhatsApp = "admin_notification_whatsapp"
	KeyCurrency            = "currency"
)

var (
	Defaults = map[string]string{
		KeySchoolName:          "KEEM Driving School",
		KeySchoolPhone:         "+260 977 000 000",
		KeySchoolEmail:         "info@keemdrivingschool.com",
		KeySchoolWhatsApp:      "+260977000000",
		KeySchoolAddress:       "Luanshya & Mufulira, Copperbelt Province, Zambia",
		KeyAdminNotifyEmail:    "",
		KeyAdminNotifyWhatsApp: "",
		KeyCurrency:            "ZMW",
	}

	// validation rules of the values, per key
	rules = map[string]string{
		KeySchoolName:          "required,max=100",
		KeySchoolPhone:         "required,phone",
		KeySchoolEmail:         "required,email",
		KeySchoolWhatsApp:      "omitempty,phone",
		KeySchoolAddress:       "max=255",
		KeyAdminNotifyEmail:    "omitempty,email",
		KeyAdminNotifyWhatsApp: "omitempty,phone",
		KeyCurrency:            "required,len=3,alpha",
	}

	nowFunc = time.Now // mockable
)

type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Snapshot is an immutable view of the settings, taken once per request.
type Snapshot struct {
	values map[string]string
}

func NewSnapshot(stored []Setting) Snapshot {
	values := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		values[k] = v
	}
	for _, s := range stored {
		if _, known := Defaults[s.Key]; known {
			values[s.Key] = s.Value
		}
	}
	return Snapshot{values: values}
}

// DefaultSnapshot holds the default values only.
func DefaultSnapshot() Snapshot { return NewSnapshot(nil) }

func (s Snapshot) Get(key string) string {
	if s.values == nil {
		return Defaults[key]
	}
	return s.values[key]
}

func (s Snapshot) SchoolName() string          { return s.Get(KeySchoolName) }
func (s Snapshot) SchoolPhone() string         { return s.Get(KeySchoolPhone) }
func (s Snapshot) SchoolEmail() string         { return s.Get(KeySchoolEmail) }
func (s Snapshot) SchoolWhatsApp() string      { return s.Get(KeySchoolWhatsApp) }
func (s Snapshot) SchoolAddress() string       { return s.Get(KeySchoolAddress) }
func (s Snapshot) AdminNotifyEmail() string    { return s.Get(KeyAdminNotifyEmail) }
func (s Snapshot) AdminNotifyWhatsApp() string { return s.Get(KeyAdminNotifyWhatsApp) }
func (s Snapshot) Currency() string            { return s.Get(KeyCurrency) }

type (
	Repository interface {
		ListSettings(ctx context.Context) ([]Setting, error)
		UpsertSetting(ctx context.Context, s Setting) (Setting, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stored, err := svc.repo.ListSettings(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "listing settings")
	}
	return NewSnapshot(stored), nil
}

// List returns every known setting, stored or default, sorted by key.
func (svc *Service) List(ctx context.Context, p admin.Principal) ([]Setting, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	stored, err := svc.repo.ListSettings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing settings")
	}
	byKey := make(map[string]Setting, len(stored))
	for _, s := range stored {
		byKey[s.Key] = s
	}

	list := make([]Setting, 0, len(Defaults))
	for k, v := range Defaults {
		if s, ok := byKey[k]; ok {
			list = append(list, s)
		} else {
			list = append(list, Setting{Key: k, Value: v})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

// Update sets the value of a known setting. Super admins only.
func (svc *Service) Update(ctx context.Context, p admin.Principal, key, value string) (Setting, error) {
	if err := p.Require(admin.RoleSuperAdmin); err != nil {
		return Setting{}, err
	}
	rule, known := rules[key]
	if !known {
		return Setting{}, core.NewFieldError("key", "unknown setting")
	}
	value = core.CleanString(value)
	if err := svc.validate.Var(value, rule); err != nil {
		return Setting{}, core.NewFieldError("value", "invalid value for "+key)
	}
	s, err := svc.repo.UpsertSetting(ctx, Setting{Key: key, Value: value, UpdatedAt: nowFunc().UTC()})
	return s, errors.Wrap(err, "saving setting")
}
