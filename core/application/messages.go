package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core/notify"
)

type (
	statusMessageData struct {
		FirstName         string
		ApplicationNumber string
		Course            string
		Branch            string
		StatusLabel       string
		Notes             string
		StudentNumber     string
		SchoolName        string
		SchoolPhone       string
		SchoolEmail       string
	}

	digestItem struct {
		ApplicationNumber string
		FirstName         string
		LastName          string
		Branch            string
		Course            string
		CreatedAt         time.Time
	}

	digestData struct {
		Applications []digestItem
	}
)

func whatsAppStatusBody(d statusMessageData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", d.FirstName)
	if d.StudentNumber != "" {
		fmt.Fprintf(&b, "Congratulations! Your application %s for %s at our %s branch has been accepted.\n", d.ApplicationNumber, d.Course, d.Branch)
		fmt.Fprintf(&b, "Your student number is %s. Your acceptance letter was sent to your email.\n", d.StudentNumber)
	} else {
		fmt.Fprintf(&b, "The status of your application %s for %s at our %s branch is now: %s.\n", d.ApplicationNumber, d.Course, d.Branch, d.StatusLabel)
	}
	if d.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", d.Notes)
	}
	fmt.Fprintf(&b, "\nQuestions? Call %s.", d.SchoolPhone)
	return b.String()
}

// NotifyPending sends the digest of the pending applications to the admin notification
// email and WhatsApp. Nothing is sent when no application is pending.
// It returns the number of pending applications.
func (svc *Service) NotifyPending(ctx context.Context) (int, []notify.Outcome, error) {
	snap, err := svc.settings.Snapshot(ctx)
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading settings")
	}
	apps, err := svc.Pending(ctx, "")
	if err != nil {
		return 0, nil, errors.Wrap(err, "listing pending applications")
	}
	if len(apps) == 0 {
		return 0, nil, nil
	}

	data := digestData{Applications: make([]digestItem, 0, len(apps))}
	for _, a := range apps {
		data.Applications = append(data.Applications, digestItem{
			ApplicationNumber: a.ApplicationNumber,
			FirstName:         a.FirstName,
			LastName:          a.LastName,
			Branch:            string(a.Branch),
			Course:            a.CourseName(),
			CreatedAt:         a.CreatedAt,
		})
	}
	subject := fmt.Sprintf("%d application(s) pending review", len(apps))

	msgs := make(map[notify.Channel]notify.Message)
	if to := snap.AdminNotifyEmail(); to != "" {
		msgs[notify.ChannelEmail] = notify.Message{
			Recipient:    to,
			Subject:      subject,
			TemplateName: "pending_digest",
			TemplateData: data,
		}
	}
	if to := snap.AdminNotifyWhatsApp(); to != "" {
		msgs[notify.ChannelWhatsApp] = notify.Message{
			Recipient: to,
			Subject:   snap.SchoolName(),
			Body:      subject + ". Log in to the admin panel to review them.",
		}
	}
	if len(msgs) == 0 {
		return len(apps), nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, svc.timeout)
	defer cancel()
	return len(apps), notify.Dispatch(ctx, msgs, svc.email, svc.whatsapp), nil
}
