package admin

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/keemdrivingschool/keem/core"
)

type Role string

// Roles
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
)

var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleStaff}

func (r Role) IsValid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Admin struct {
	ID           int         `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	Phone        string      `json:"phone" db:"phone"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	Role         Role        `json:"role" db:"role"`
	Branch       core.Branch `json:"branch" db:"branch"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	LastLogin    *time.Time  `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (a *Admin) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

var (
	compareHashFunc = bcrypt.CompareHashAndPassword // mockable

	dummyHashOnce sync.Once
	dummyHash     []byte
)

func (a *Admin) CheckPassword(pwd string) error {
	return compareHashFunc(a.PasswordHash, []byte(pwd))
}

func initDummyHash() {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-an-admin-password"), bcrypt.DefaultCost)
	})
}

// checkDummyPassword takes as long as CheckPassword, for logins with an unknown email.
func checkDummyPassword(pwd string) {
	initDummyHash()
	_ = compareHashFunc(dummyHash, []byte(pwd))
}

// NewAdmin contains information needed to create a new Admin.
type NewAdmin struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=150"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Role            string `json:"role" validate:"required,adminrole"`
	Branch          string `json:"branch" validate:"required,adminbranch"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Role = core.CleanString(na.Role, true /* lower */)
	na.Branch = core.CleanString(na.Branch)
	if na.Branch == "" || strings.EqualFold(na.Branch, string(core.BranchBoth)) {
		na.Branch = string(core.BranchBoth)
	} else if b, err := core.ParseBranch(na.Branch); err == nil {
		na.Branch = string(b)
	}
	return validate.Struct(na)
}

type ResetAdminPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetAdminPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	Branch   string `query:"branch"`
	IsActive *bool  // set from the is_active query param by the caller
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Branch = core.CleanString(qf.Branch)
}
