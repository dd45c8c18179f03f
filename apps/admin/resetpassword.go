package main

import (
	"context"
	"fmt"

	"github.com/keemdrivingschool/keem/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	if err := cli.adminSvc.SetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", email)
	return nil
}
