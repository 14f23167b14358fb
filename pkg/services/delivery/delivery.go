package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Request is one report to hand to a set of recipients.
type Request struct {
	TenantID   domain.TenantID
	ScheduleID int64
	Title      string
	Period     domain.DateRange
	File       domain.ExportedFile
	Recipients []domain.Recipient
	Options    domain.DeliveryOptions
}

// Subject is the configured subject or one derived from the title and period.
func (r Request) Subject() string {
	if r.Options.Subject != "" {
		return r.Options.Subject
	}
	return fmt.Sprintf("%s (%s)", r.Title, r.Period)
}

// Body is the plain-text message sent with the report.
func (r Request) Body() string {
	var b strings.Builder
	if r.Options.Message != "" {
		b.WriteString(r.Options.Message)
	} else {
		fmt.Fprintf(&b, "Your %s report for %s to %s is ready.",
			r.Title, r.Period.StartDate(), r.Period.EndDate())
	}
	if r.Options.IncludeLink && r.File.URL != "" {
		b.WriteString("\n\nDownload: " + r.File.URL)
	}
	return b.String()
}

// Channel sends a report to one recipient.
type Channel interface {
	Send(ctx context.Context, to domain.Recipient, req Request) error
}

// Publisher announces finished deliveries to other systems.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Event struct {
	Type               string                `json:"type"`
	TenantID           domain.TenantID       `json:"tenant_id"`
	ScheduleID         int64                 `json:"schedule_id"`
	Title              string                `json:"title"`
	PeriodStart        string                `json:"period_start"`
	PeriodEnd          string                `json:"period_end"`
	Status             domain.DeliveryStatus `json:"status"`
	RecipientsNotified int                   `json:"recipients_notified"`
	FileURL            string                `json:"file_url,omitempty"`
	OccurredAt         time.Time             `json:"occurred_at"`
}

type Deliverer interface {
	Deliver(ctx context.Context, req Request) domain.DeliveryResult
}

type deliverer struct {
	channels  map[domain.Channel]Channel
	publisher Publisher
	now       func() time.Time
}

// NewDeliverer routes each recipient to the channel registered for it. The
// publisher is optional.
func NewDeliverer(channels map[domain.Channel]Channel, publisher Publisher) Deliverer {
	return &deliverer{channels: channels, publisher: publisher, now: time.Now}
}

func (d *deliverer) Deliver(ctx context.Context, req Request) domain.DeliveryResult {
	logger := zerolog.Ctx(ctx).With().
		Int64("tenant", int64(req.TenantID)).
		Int64("schedule", req.ScheduleID).
		Logger()

	notified := 0
	var errs []domain.RecipientError
	for _, to := range req.Recipients {
		ch, ok := d.channels[to.Channel]
		if !ok {
			errs = append(errs, domain.RecipientError{Recipient: to, Error: fmt.Sprintf("channel %q is not configured", to.Channel)})
			continue
		}
		if err := ch.Send(ctx, to, req); err != nil {
			logger.Warn().Err(err).Str("recipient", to.String()).Msg("delivery to recipient failed")
			errs = append(errs, domain.RecipientError{Recipient: to, Error: err.Error()})
			continue
		}
		notified++
	}
	res := domain.NewDeliveryResult(notified, errs)

	if req.Options.PublishEvent && d.publisher != nil {
		event := Event{
			Type:               "report.delivered",
			TenantID:           req.TenantID,
			ScheduleID:         req.ScheduleID,
			Title:              req.Title,
			PeriodStart:        req.Period.StartDate(),
			PeriodEnd:          req.Period.EndDate(),
			Status:             res.Status,
			RecipientsNotified: res.RecipientsNotified,
			FileURL:            req.File.URL,
			OccurredAt:         d.now().UTC(),
		}
		if err := d.publisher.Publish(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("publish delivery event failed")
		}
	}

	logger.Info().
		Str("status", string(res.Status)).
		Int("notified", res.RecipientsNotified).
		Int("failed", len(res.Errors)).
		Msg("report delivered")
	return res
}
