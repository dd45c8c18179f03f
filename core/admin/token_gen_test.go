package admin

import (
	"testing"
	"time"

	"github.com/keemdrivingschool/keem/core"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Now()
	a := Admin{
		ID:        1,
		Name:      "T",
		Email:     "t@test.zm",
		Role:      RoleStaff,
		Branch:    core.BranchLuanshya,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: &now,
	}
	_ = a.SetPassword("pwd")

	validToken := makeToken(a)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := makeToken(a)
	nowFunc = time.Now // reset

	// a new login invalidates previous tokens
	later := now.Add(time.Minute)
	loggedIn := a
	loggedIn.LastLogin = &later

	tests := []struct {
		name    string
		a       Admin
		token   string
		wantErr error
	}{
		{name: "no token", a: a, wantErr: errInvalidToken},
		{name: "invalid parts len", a: a, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", a: a, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", a: a, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", a: a, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", a: a, token: expiredToken, wantErr: errTokenExpired},
		{name: "logged in since", a: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", a: a, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.a, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := encodeUID(Admin{ID: 42})
	id, err := decodeUID(uid)
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if id != 42 {
		t.Errorf("decodeUID() = %d, want 42", id)
	}
	if _, err = decodeUID("!!"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
