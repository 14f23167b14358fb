package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Send(ctx context.Context, to domain.Recipient, req Request) error {
	args := m.Called(ctx, to, req)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockMailClient struct {
	mock.Mock
}

func (m *mockMailClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

var (
	emailTo = domain.Recipient{Channel: domain.ChannelEmail, Address: "ops@example.com", Name: "Ops"}
	chatTo  = domain.Recipient{Channel: domain.ChannelChat, Address: "https://chat.example.com/hook"}
)

func newRequest(recipients ...domain.Recipient) Request {
	return Request{
		TenantID:   1,
		ScheduleID: 7,
		Title:      "Revenue Report",
		Period:     domain.MustDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)),
		File: domain.ExportedFile{
			Name:     "revenue.pdf",
			URL:      "https://files.example.com/revenue.pdf",
			MimeType: "application/pdf",
			Content:  []byte("%PDF-1.4"),
		},
		Recipients: recipients,
		Options:    domain.DeliveryOptions{AttachFile: true, IncludeLink: true},
	}
}

func TestRequest_SubjectAndBody(t *testing.T) {
	req := newRequest()
	assert.Equal(t, "Revenue Report (2024-01-01 to 2024-01-31)", req.Subject())
	assert.Contains(t, req.Body(), "Your Revenue Report report for 2024-01-01 to 2024-01-31 is ready.")
	assert.Contains(t, req.Body(), "Download: https://files.example.com/revenue.pdf")

	req.Options.Subject = "Monthly numbers"
	req.Options.Message = "See attached."
	req.Options.IncludeLink = false
	assert.Equal(t, "Monthly numbers", req.Subject())
	assert.Equal(t, "See attached.", req.Body())
}

func TestDeliverer_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("all recipients notified", func(t *testing.T) {
		email, chat := new(mockChannel), new(mockChannel)
		req := newRequest(emailTo, chatTo)
		email.On("Send", ctx, emailTo, req).Return(nil)
		chat.On("Send", ctx, chatTo, req).Return(nil)

		d := NewDeliverer(map[domain.Channel]Channel{domain.ChannelEmail: email, domain.ChannelChat: chat}, nil)
		res := d.Deliver(ctx, req)

		assert.Equal(t, domain.DeliverySuccess, res.Status)
		assert.Equal(t, 2, res.RecipientsNotified)
		assert.Empty(t, res.Errors)
		email.AssertExpectations(t)
		chat.AssertExpectations(t)
	})

	t.Run("partial failure", func(t *testing.T) {
		email, chat := new(mockChannel), new(mockChannel)
		req := newRequest(emailTo, chatTo)
		email.On("Send", ctx, emailTo, req).Return(nil)
		chat.On("Send", ctx, chatTo, req).Return(errors.New("webhook returned status 500"))

		d := NewDeliverer(map[domain.Channel]Channel{domain.ChannelEmail: email, domain.ChannelChat: chat}, nil)
		res := d.Deliver(ctx, req)

		assert.Equal(t, domain.DeliveryPartial, res.Status)
		assert.Equal(t, 1, res.RecipientsNotified)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, chatTo, res.Errors[0].Recipient)
	})

	t.Run("unconfigured channel fails", func(t *testing.T) {
		d := NewDeliverer(map[domain.Channel]Channel{}, nil)
		res := d.Deliver(ctx, newRequest(emailTo))

		assert.Equal(t, domain.DeliveryFailed, res.Status)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0].Error, "not configured")
	})

	t.Run("publishes event when asked", func(t *testing.T) {
		email, pub := new(mockChannel), new(mockPublisher)
		req := newRequest(emailTo)
		req.Options.PublishEvent = true
		email.On("Send", ctx, emailTo, req).Return(nil)
		pub.On("Publish", ctx, mock.MatchedBy(func(e Event) bool {
			return e.Type == "report.delivered" && e.ScheduleID == 7 &&
				e.Status == domain.DeliverySuccess && e.PeriodStart == "2024-01-01"
		})).Return(errors.New("broker down"))

		d := NewDeliverer(map[domain.Channel]Channel{domain.ChannelEmail: email}, pub)
		res := d.Deliver(ctx, req)

		assert.Equal(t, domain.DeliverySuccess, res.Status)
		pub.AssertExpectations(t)
	})
}

func TestEmailChannel_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches file", func(t *testing.T) {
		client := new(mockMailClient)
		ch := &EmailChannel{client: client, settings: EmailSettings{FromEmail: "reports@msp.example.com", FromName: "MSP"}}
		client.On("SendWithContext", ctx, mock.MatchedBy(func(m *mail.SGMailV3) bool {
			if m.Subject != "Revenue Report (2024-01-01 to 2024-01-31)" || len(m.Attachments) != 1 {
				return false
			}
			a := m.Attachments[0]
			return a.Filename == "revenue.pdf" && a.Content == base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
		})).Return(&rest.Response{StatusCode: 202}, nil)

		require.NoError(t, ch.Send(ctx, emailTo, newRequest(emailTo)))
		client.AssertExpectations(t)
	})

	t.Run("api error", func(t *testing.T) {
		client := new(mockMailClient)
		ch := &EmailChannel{client: client, settings: EmailSettings{FromEmail: "reports@msp.example.com"}}
		client.On("SendWithContext", ctx, mock.Anything).Return(&rest.Response{StatusCode: 401, Body: "unauthorized"}, nil)

		err := ch.Send(ctx, emailTo, newRequest(emailTo))
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("transport error", func(t *testing.T) {
		client := new(mockMailClient)
		ch := &EmailChannel{client: client, settings: EmailSettings{FromEmail: "reports@msp.example.com"}}
		client.On("SendWithContext", ctx, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

		assert.ErrorContains(t, ch.Send(ctx, emailTo, newRequest(emailTo)), "dial tcp")
	})

	t.Run("settings are required", func(t *testing.T) {
		_, err := NewEmailChannel(EmailSettings{FromEmail: "a@b.c"})
		assert.Error(t, err)
		_, err = NewEmailChannel(EmailSettings{APIKey: "key"})
		assert.Error(t, err)
	})
}

func TestChatChannel_Send(t *testing.T) {
	var got chatMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("nope"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewChatChannel(time.Second)
	ctx := context.Background()

	to := domain.Recipient{Channel: domain.ChannelChat, Address: srv.URL + "/hook"}
	require.NoError(t, ch.Send(ctx, to, newRequest(to)))
	assert.Contains(t, got.Text, "*Revenue Report (2024-01-01 to 2024-01-31)*")
	assert.Contains(t, got.Text, "https://files.example.com/revenue.pdf")

	broken := domain.Recipient{Channel: domain.ChannelChat, Address: srv.URL + "/broken"}
	err := ch.Send(ctx, broken, newRequest(broken))
	assert.ErrorContains(t, err, "status 500: nope")
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	w := new(mockWriter)
	p := &KafkaPublisher{writer: w}

	event := Event{Type: "report.delivered", TenantID: 3, ScheduleID: 9, Status: domain.DeliveryPartial}
	w.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "3" {
			return false
		}
		var decoded Event
		return json.Unmarshal(msgs[0].Value, &decoded) == nil && decoded.ScheduleID == 9
	})).Return(nil).Once()
	w.On("WriteMessages", ctx, mock.Anything).Return(errors.New("leader not available")).Once()
	w.On("Close").Return(nil)

	require.NoError(t, p.Publish(ctx, event))
	assert.ErrorContains(t, p.Publish(ctx, event), "leader not available")
	assert.NoError(t, p.Close())
	w.AssertExpectations(t)

	_, err := NewKafkaPublisher(KafkaSettings{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaSettings{Topic: "reports"})
	assert.Error(t, err)
}
