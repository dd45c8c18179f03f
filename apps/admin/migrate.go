package main

import (
	"fmt"
	"strings"

	"github.com/keemdrivingschool/keem/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

// migrate runs a goose command (up, down-to 3, status...) with the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	if err := runMigrationsFunc(cli.db, args[0], args[1:]...); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "migrate %s: done\n", strings.Join(args, " "))
	return nil
}
