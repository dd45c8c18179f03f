package main

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/application"
)

// staleAfter is the age from which a pending application is highlighted.
const staleAfter = 3 * 24 * time.Hour

var nowFunc = time.Now // mockable

// pending prints the applications awaiting review, oldest first.
func (cli *commandLine) pending(branch string) error {
	filter := application.QueryFilter{Status: string(application.StatusPending), Branch: branch}
	if err := filter.Clean(); err != nil {
		return err
	}
	apps, err := cli.appRepo.FilterApplications(context.Background(), filter, core.DBOrdering{Field: "created_at", Ascending: true})
	if err != nil {
		return err
	}

	if len(apps) == 0 {
		color.New(color.FgGreen).Fprintln(cli.out, "No pending applications.")
		return nil
	}
	color.New(color.FgYellow).Fprintf(cli.out, "%d pending application(s)\n", len(apps))

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Reference", "Name", "Phone", "Branch", "Course", "Submitted"})
	stale := color.New(color.FgRed).SprintFunc()
	now := nowFunc()
	for _, a := range apps {
		submitted := a.CreatedAt.Format("2006-01-02 15:04")
		if now.Sub(a.CreatedAt) > staleAfter {
			submitted = stale(submitted)
		}
		table.Append([]string{a.ApplicationNumber, a.FullName(), a.Phone, string(a.Branch), a.CourseName(), submitted})
	}
	table.Render()
	return nil
}

