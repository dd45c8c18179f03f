package admin

import (
	"strconv"

	"github.com/keemdrivingschool/keem/core"
)

// Principal is the authenticated admin acting on an operation.
// It is built from a freshly loaded, active Admin and passed explicitly to every admin operation.
type Principal struct {
	AdminID int
	Name    string
	Email   string
	Role    Role
	Branch  core.Branch
}

var _ core.LogPerson = Principal{}

func NewPrincipal(a Admin) (Principal, error) {
	if a.ID == 0 || !a.IsActive {
		return Principal{}, core.ErrSessionInvalid
	}
	return Principal{
		AdminID: a.ID,
		Name:    a.Name,
		Email:   a.Email,
		Role:    a.Role,
		Branch:  a.Branch,
	}, nil
}

func (p Principal) IsZero() bool { return p.AdminID == 0 }

// AllBranches reports whether p may act on both branches.
func (p Principal) AllBranches() bool {
	return p.Role == RoleSuperAdmin || p.Branch == core.BranchBoth
}

func (p Principal) CanAccess(b core.Branch) bool {
	return p.AllBranches() || p.Branch == b
}

func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Require fails unless p is authenticated and holds one of roles (any role when none given).
func (p Principal) Require(roles ...Role) error {
	if p.IsZero() {
		return core.ErrSessionInvalid
	}
	if len(roles) > 0 && !p.HasRole(roles...) {
		return core.ErrPermissionDenied
	}
	return nil
}

// ScopeBranch returns the branch p must be restricted to.
// ok is false when the requested branch lies outside p's scope.
func (p Principal) ScopeBranch(requested core.Branch) (b core.Branch, ok bool) {
	if p.AllBranches() {
		return requested, true
	}
	if requested != "" && requested != p.Branch {
		return "", false
	}
	return p.Branch, true
}

func (p Principal) LogPerson() (id, name, email string) {
	return strconv.Itoa(p.AdminID), p.Name, p.Email
}
