package whatsappsvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/notify"
)

const addrPrefix = "whatsapp:"

type (
	// messageCreator is the part of the Twilio API used to send messages.
	messageCreator interface {
		CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	}

	twilioSender struct {
		api  messageCreator
		from string
	}
)

var _ notify.WhatsAppSender = (*twilioSender)(nil)

// NewTwilioSender sends WhatsApp messages through the Twilio messaging API.
func NewTwilioSender(conf core.TwilioConfig) notify.WhatsAppSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.AccountSID,
		Password: conf.AuthToken,
	})
	return &twilioSender{api: client.Api, from: whatsAppAddr(conf.WhatsAppFrom)}
}

func whatsAppAddr(number string) string {
	if strings.HasPrefix(number, addrPrefix) {
		return number
	}
	return addrPrefix + number
}

func (s *twilioSender) SendWhatsApp(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(whatsAppAddr(to))
	params.SetBody(body)

	res, err := s.api.CreateMessage(params)
	if err != nil {
		return errors.Wrap(err, "creating twilio message")
	}
	if res.ErrorCode != nil {
		msg := ""
		if res.ErrorMessage != nil {
			msg = *res.ErrorMessage
		}
		return errors.Errorf("twilio error %d: %s", *res.ErrorCode, msg)
	}
	return nil
}
