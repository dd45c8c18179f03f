package core

import "strings"

// Branch is one of the school's physical locations.
type Branch string

const (
	BranchLuanshya Branch = "Luanshya"
	BranchMufulira Branch = "Mufulira"

	// BranchBoth is only valid as an admin's scope.
	BranchBoth Branch = "Both"
)

var Branches = []Branch{BranchLuanshya, BranchMufulira}

func (b Branch) IsLocation() bool {
	return b == BranchLuanshya || b == BranchMufulira
}

func (b Branch) IsAdminScope() bool {
	return b.IsLocation() || b == BranchBoth
}

// ParseBranch matches s case-insensitively against the known locations.
func ParseBranch(s string) (Branch, error) {
	s = CleanString(s)
	for _, b := range Branches {
		if strings.EqualFold(s, string(b)) {
			return b, nil
		}
	}
	return "", NewFieldError("branch", "invalid branch")
}
