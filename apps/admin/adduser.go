package main

import (
	"context"
	"fmt"

	"github.com/keemdrivingschool/keem/core/admin"
)

// addUser updates or creates an admin.Admin, activated.
func (cli *commandLine) addUser(name, email, pwd, role, branch string) error {
	a, err := cli.adminSvc.UpdateOrCreate(context.Background(), admin.NewAdmin{
		Name:     name,
		Email:    email,
		Role:     role,
		Branch:   branch,
		Password: pwd,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %s (%s, %s) saved\n", a.Email, a.Role, a.Branch)
	return nil
}
