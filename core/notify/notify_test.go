package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		cc      string
		want    string
		wantErr error
	}{
		{name: "local with trunk zero", raw: "0977123456", cc: "260", want: "+260977123456"},
		{name: "local formatted", raw: "097-712 3456", cc: "260", want: "+260977123456"},
		{name: "already prefixed", raw: "260977123456", cc: "260", want: "+260977123456"},
		{name: "plus prefixed", raw: "+260 977 123 456", cc: "260", want: "+260977123456"},
		{name: "double zero prefixed", raw: "00260977123456", cc: "260", want: "+260977123456"},
		{name: "foreign number", raw: "+44 7700 900123", cc: "260", want: "+447700900123"},
		{name: "no trunk zero", raw: "977123456", cc: "260", want: "+260977123456"},
		{name: "too short", raw: "123", cc: "260", wantErr: ErrInvalidPhone},
		{name: "empty", raw: "", cc: "260", wantErr: ErrInvalidPhone},
		{name: "too long", raw: "+1234567890123456", cc: "260", wantErr: ErrInvalidPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.cc)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type nopLogger struct {
	mu    sync.Mutex
	warns []interface{}
}

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(_ string, args ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, args...)
	l.mu.Unlock()
}
func (l *nopLogger) Error(msg string, args ...interface{}) { l.Warn(msg, args...) }
func (l *nopLogger) Fatal(string, ...interface{})          {}

type fakeEmailService struct {
	err  error
	sent []*core.EmailMessage
}

func (s *fakeEmailService) Send(_ context.Context, msg *core.EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeWhatsAppSender struct {
	err   error
	panic bool
	to    []string
	body  []string
}

func (s *fakeWhatsAppSender) SendWhatsApp(_ context.Context, to, body string) error {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return s.err
	}
	s.to = append(s.to, to)
	s.body = append(s.body, body)
	return nil
}

func TestEmailDispatcher_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		svc := &fakeEmailService{}
		d := NewEmailDispatcher(svc, &nopLogger{})
		ok := d.Send(ctx, Message{Recipient: "jane@test.zm", RecipientName: "Jane", Subject: "Hi", Body: "Hello"})
		assert.True(t, ok)
		require.Len(t, svc.sent, 1)
		assert.Equal(t, "jane@test.zm", svc.sent[0].To[0].Address)
		assert.Equal(t, "Jane", svc.sent[0].To[0].Name)
		assert.Equal(t, "Hello", svc.sent[0].BodyStr)
	})

	t.Run("transport failure is reported, not raised", func(t *testing.T) {
		logger := &nopLogger{}
		d := NewEmailDispatcher(&fakeEmailService{err: errors.New("smtp down")}, logger)
		assert.False(t, d.Send(ctx, Message{Recipient: "jane@test.zm", Body: "Hello"}))
		require.Len(t, logger.warns, 1)
		assert.IsType(t, &core.TransportError{}, logger.warns[0])
	})

	t.Run("invalid recipient", func(t *testing.T) {
		svc := &fakeEmailService{}
		d := NewEmailDispatcher(svc, &nopLogger{})
		assert.False(t, d.Send(ctx, Message{Recipient: "not-an-email", Body: "Hello"}))
		assert.Empty(t, svc.sent)
	})
}

func TestWhatsAppDispatcher_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes the recipient", func(t *testing.T) {
		sender := &fakeWhatsAppSender{}
		d := NewWhatsAppDispatcher(sender, "260", &nopLogger{})
		assert.True(t, d.Send(ctx, Message{Recipient: "0977123456", Subject: "Accepted", Body: "Welcome"}))
		assert.Equal(t, []string{"+260977123456"}, sender.to)
		assert.Equal(t, "*Accepted*\n\nWelcome", sender.body[0])
	})

	t.Run("transport failure", func(t *testing.T) {
		d := NewWhatsAppDispatcher(&fakeWhatsAppSender{err: errors.New("rate limited")}, "260", &nopLogger{})
		assert.False(t, d.Send(ctx, Message{Recipient: "0977123456", Body: "Welcome"}))
	})

	t.Run("panicking transport", func(t *testing.T) {
		logger := &nopLogger{}
		d := NewWhatsAppDispatcher(&fakeWhatsAppSender{panic: true}, "260", logger)
		assert.False(t, d.Send(ctx, Message{Recipient: "0977123456", Body: "Welcome"}))
		assert.NotEmpty(t, logger.warns)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		sender := &fakeWhatsAppSender{}
		d := NewWhatsAppDispatcher(sender, "260", &nopLogger{})
		assert.False(t, d.Send(ctx, Message{Recipient: "12", Body: "Welcome"}))
		assert.Empty(t, sender.to)
	})
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	email := NewEmailDispatcher(&fakeEmailService{err: errors.New("down")}, &nopLogger{})
	sender := &fakeWhatsAppSender{}
	wa := NewWhatsAppDispatcher(sender, "260", &nopLogger{})

	outcomes := Dispatch(ctx, map[Channel]Message{
		ChannelEmail:    {Recipient: "jane@test.zm", Body: "Hi"},
		ChannelWhatsApp: {Recipient: "0977123456", Body: "Hi"},
	}, email, wa, nil)

	assert.Equal(t, []Outcome{
		{Channel: ChannelEmail, Recipient: "jane@test.zm", Delivered: false},
		{Channel: ChannelWhatsApp, Recipient: "0977123456", Delivered: true},
	}, outcomes)
}
