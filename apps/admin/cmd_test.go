package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		adminSvc: env.AdminSvc,
		appRepo:  env.ApplicationRepo,
		out:      out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if pwd, ok := tt.extra.(string); ok {
				return []byte(pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "lessons", "sql"}},
	}
	runCLITests(t, cli, tests, nil)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, out := setup(t)

	notSaved := func(t *testing.T) {
		_, err := env.AdminRepo.GetAdminByEmail(context.Background(), "mwila@keem.zm")
		assert.True(t, core.IsNotFound(err))
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-email", "mwila@keem.zm"}, extra: testutil.DefaultPassword, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "mwila@keem.zm", "-name", "Mwila"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-username", "mwila"}, wantErr: errHelp},
	}
	runCLITests(t, cli, tests, nil)
	notSaved(t)

	t.Run("weak password", func(t *testing.T) {
		readPasswordFunc = func(int) ([]byte, error) { return []byte("12345678"), nil }
		err := cli.run([]string{"admin", "adduser", "-email", "mwila@keem.zm", "-name", "Mwila"})
		require.Error(t, err)
		notSaved(t)
	})

	tests = []cliTest{
		{name: "super admin by default", args: []string{"adduser", "-email", "Mwila@keem.zm", "-name", "Mwila"}, extra: testutil.DefaultPassword},
		{
			name: "update existing", args: []string{"adduser", "-email", "mwila@keem.zm", "-name", "Mwila Banda", "-role", "staff", "-branch", "mufulira"},
			extra: "Kaf1ta-Br1dge",
		},
	}
	runCLITests(t, cli, tests, nil)

	a, err := env.AdminRepo.GetAdminByEmail(context.Background(), "mwila@keem.zm")
	require.NoError(t, err)
	assert.Equal(t, "Mwila Banda", a.Name)
	assert.Equal(t, admin.RoleStaff, a.Role)
	assert.Equal(t, core.BranchMufulira, a.Branch)
	assert.True(t, a.IsActive)
	assert.NoError(t, a.CheckPassword("Kaf1ta-Br1dge"))
	assert.Contains(t, out.String(), "admin mwila@keem.zm (super_admin, Both) saved")
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, _ := setup(t)

	a := testutil.CreateAdmin(t, env.AdminRepo, "Chanda", "chanda@keem.zm", testutil.DefaultPassword, admin.RoleAdmin, core.BranchLuanshya, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@keem.zm"}, wantErr: errHelp},
		{name: "admin not found", args: []string{"resetpassword", "-email", "lol@keem.zm"}, extra: "Kaf1ta-Br1dge", wantErrStr: "admin not found"},
		{name: "reset", args: []string{"resetpassword", "-email", " CHANDA@keem.zm"}, extra: "Kaf1ta-Br1dge"},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		refreshed, err := env.AdminRepo.GetAdmin(context.Background(), a.ID)
		require.NoError(t, err)
		assert.NotEqual(t, a.PasswordHash, refreshed.PasswordHash)
		assert.NoError(t, refreshed.CheckPassword(tt.extra.(string)))
	})
}

func Test_commandLine_pending(t *testing.T) {
	cli, env, out := setup(t)

	boss := testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true)

	require.NoError(t, cli.run([]string{"admin", "pending"}))
	assert.Contains(t, out.String(), "No pending applications.")

	grace := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))
	john := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("John", "john@example.com", "Mufulira", "class-c"))
	ruth := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Ruth", "ruth@example.com", "Luanshya", "class-b"))
	testutil.AcceptApplication(t, env.ApplicationSvc, testutil.Principal(t, boss), ruth)

	nowFunc = func() time.Time { return time.Now().Add(4 * 24 * time.Hour) }
	defer func() { nowFunc = time.Now }()

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "pending"}))
	assert.Contains(t, out.String(), "2 pending application(s)")
	assert.Contains(t, out.String(), grace.ApplicationNumber)
	assert.Contains(t, out.String(), john.ApplicationNumber)
	assert.NotContains(t, out.String(), ruth.ApplicationNumber)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "pending", "-branch", "mufulira"}))
	assert.Contains(t, out.String(), "1 pending application(s)")
	assert.Contains(t, out.String(), john.ApplicationNumber)
	assert.NotContains(t, out.String(), grace.ApplicationNumber)

	assert.Error(t, cli.run([]string{"admin", "pending", "-branch", "Ndola"}))
}
