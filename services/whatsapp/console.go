// Package whatsappsvc implements the WhatsApp transports.
package whatsappsvc

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core/notify"
)

type consoleSender struct {
	std *log.Logger
}

var _ notify.WhatsAppSender = (*consoleSender)(nil)

// NewConsoleSender logs the messages instead of sending them.
func NewConsoleSender(std *log.Logger) notify.WhatsAppSender {
	return &consoleSender{std: std}
}

func (s *consoleSender) SendWhatsApp(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.std.Printf("[WhatsApp] to %s:\n%s\n", to, body)
	return nil
}

// Message is a WhatsApp message recorded by SenderMock.
type Message struct {
	To   string
	Body string
}

// SenderMock records the messages; it can be made to fail.
type SenderMock struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

var _ notify.WhatsAppSender = (*SenderMock)(nil)

func NewSenderMock() *SenderMock {
	return &SenderMock{}
}

func (s *SenderMock) SendWhatsApp(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("whatsapp transport unavailable")
	}
	s.sent = append(s.sent, Message{To: to, Body: body})
	return nil
}

func (s *SenderMock) SentMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func (s *SenderMock) SetFailing(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *SenderMock) Reset() {
	s.mu.Lock()
	s.sent = nil
	s.fail = false
	s.mu.Unlock()
}
