// Package notify sends best-effort notifications over email and WhatsApp.
// Dispatchers never fail their caller: transport errors are logged and reported as a false outcome.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/keemdrivingschool/keem/core"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

type (
	Message struct {
		Recipient     string // email address or phone number
		RecipientName string
		Subject       string
		Body          string // plain text body; WhatsApp only uses this
		TemplateName  string
		TemplateData  interface{}
		Attachments   []core.Attachment
	}

	// Outcome reports the result of one dispatch.
	Outcome struct {
		Channel   Channel `json:"channel"`
		Recipient string  `json:"recipient"`
		Delivered bool    `json:"delivered"`
	}

	Dispatcher interface {
		Channel() Channel
		Send(ctx context.Context, msg Message) bool
	}

	// WhatsAppSender is a WhatsApp transport. `to` is an international number (+260...).
	WhatsAppSender interface {
		SendWhatsApp(ctx context.Context, to, body string) error
	}
)

// Dispatch hands every dispatcher the message of its channel, if any, and collects the outcomes.
func Dispatch(ctx context.Context, msgs map[Channel]Message, dispatchers ...Dispatcher) []Outcome {
	outcomes := make([]Outcome, 0, len(dispatchers))
	for _, d := range dispatchers {
		if d == nil {
			continue
		}
		msg, ok := msgs[d.Channel()]
		if !ok {
			continue
		}
		outcomes = append(outcomes, Outcome{
			Channel:   d.Channel(),
			Recipient: msg.Recipient,
			Delivered: d.Send(ctx, msg),
		})
	}
	return outcomes
}

type emailDispatcher struct {
	svc    core.EmailService
	logger core.Logger
}

var _ Dispatcher = (*emailDispatcher)(nil)

func NewEmailDispatcher(svc core.EmailService, logger core.Logger) Dispatcher {
	return &emailDispatcher{svc: svc, logger: logger}
}

func (d *emailDispatcher) Channel() Channel { return ChannelEmail }

func (d *emailDispatcher) Send(ctx context.Context, msg Message) (ok bool) {
	defer recoverDispatch(d.logger, ChannelEmail, msg.Recipient, &ok)

	addr, err := mail.ParseAddress(msg.Recipient)
	if err != nil {
		d.logger.Warn("email not sent: invalid recipient", core.NewTransportError(string(ChannelEmail), msg.Recipient, err))
		return false
	}
	addr.Name = msg.RecipientName

	em := &core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      msg.Subject,
		TemplateName: msg.TemplateName,
		TemplateData: msg.TemplateData,
		Attachments:  msg.Attachments,
	}
	if msg.TemplateName == "" {
		em.BodyStr = msg.Body
	}
	if err = d.svc.Send(ctx, em); err != nil {
		d.logger.Warn(fmt.Sprintf("email not sent: %v", err), core.NewTransportError(string(ChannelEmail), addr.Address, err))
		return false
	}
	return true
}

type whatsAppDispatcher struct {
	sender      WhatsAppSender
	countryCode string
	logger      core.Logger
}

var _ Dispatcher = (*whatsAppDispatcher)(nil)

func NewWhatsAppDispatcher(sender WhatsAppSender, countryCode string, logger core.Logger) Dispatcher {
	return &whatsAppDispatcher{sender: sender, countryCode: countryCode, logger: logger}
}

func (d *whatsAppDispatcher) Channel() Channel { return ChannelWhatsApp }

func (d *whatsAppDispatcher) Send(ctx context.Context, msg Message) (ok bool) {
	defer recoverDispatch(d.logger, ChannelWhatsApp, msg.Recipient, &ok)

	to, err := NormalizePhone(msg.Recipient, d.countryCode)
	if err != nil {
		d.logger.Warn("whatsapp not sent: invalid recipient", core.NewTransportError(string(ChannelWhatsApp), msg.Recipient, err))
		return false
	}
	body := strings.TrimSpace(msg.Body)
	if msg.Subject != "" {
		body = "*" + msg.Subject + "*\n\n" + body
	}
	if err = d.sender.SendWhatsApp(ctx, to, body); err != nil {
		d.logger.Warn(fmt.Sprintf("whatsapp not sent: %v", err), core.NewTransportError(string(ChannelWhatsApp), to, err))
		return false
	}
	return true
}

func recoverDispatch(logger core.Logger, ch Channel, recipient string, ok *bool) {
	if r := recover(); r != nil {
		logger.Error(fmt.Sprintf("%s dispatch panicked: %v", ch, r), core.NewTransportError(string(ch), recipient, fmt.Errorf("%v", r)))
		*ok = false
	}
}
