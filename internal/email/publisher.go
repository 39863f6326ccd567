package email

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

const eventTypeReminder = "email.reminder"

// Publisher hands rendered emails to the mailer service over Pub/Sub.
type Publisher struct {
	pub             pubsub.MessagePublisher
	unsubscribeBase string
	timeout         time.Duration
	logg            *logger.Logger
}

func NewPublisher(pub pubsub.MessagePublisher, unsubscribeBaseURL string, logg *logger.Logger) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("email publisher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Publisher{
		pub:             pub,
		unsubscribeBase: strings.TrimRight(unsubscribeBaseURL, "/"),
		timeout:         pubsub.DefaultPublishTimeout,
		logg:            logg,
	}, nil
}

// UnsubscribeLink returns the per-user email opt-out URL.
func (p *Publisher) UnsubscribeLink(userID string) string {
	return p.unsubscribeBase + "?user=" + url.QueryEscape(userID)
}

// SendReminder renders r and publishes it. An empty UnsubscribeURL is filled in.
func (p *Publisher) SendReminder(ctx context.Context, r Reminder) error {
	if strings.TrimSpace(r.To) == "" {
		return errors.New("recipient address is required")
	}
	if r.UnsubscribeURL == "" {
		r.UnsubscribeURL = p.UnsubscribeLink(r.UserID)
	}
	msg, err := RenderReminder(r)
	if err != nil {
		return err
	}
	serverID, err := pubsub.PublishJSON(ctx, p.pub, msg, map[string]string{
		"event_type": eventTypeReminder,
		"user_id":    r.UserID,
	}, p.timeout)
	if err != nil {
		return err
	}
	p.logg.Debug(p.logg.WithFields(ctx, map[string]any{
		"user_id":   r.UserID,
		"server_id": serverID,
	}), "reminder email published")
	return nil
}
