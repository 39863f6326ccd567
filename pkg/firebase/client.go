package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/multierr"
	"google.golang.org/api/option"

	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/push"
)

const (
	// MaxMulticastTokens is the FCM limit for a single multicast request.
	MaxMulticastTokens = 500
	// MaxTopicTokens is the FCM limit for a single topic management request.
	MaxTopicTokens = 1000

	defaultSendTimeout = 10 * time.Second
)

type messagingAPI interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Client is the FCM implementation of push.Provider.
type Client struct {
	api      messagingAPI
	timeout  time.Duration
	classify func(error) string
	logg     *logger.Logger
}

var _ push.Provider = (*Client)(nil)

// NewClient initializes a Firebase app and its messaging client. Credentials
// fall back to the GCP service account when no Firebase specific JSON is set.
func NewClient(ctx context.Context, cfg config.FirebaseConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(gcp.ProjectID)
	}
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: projectID}, clientOptions(cfg, gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating firebase app: %w", err)
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating firebase messaging client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "firebase_project", projectID), "firebase messaging initialized")
	}
	return newClient(msgClient, cfg.SendTimeout, logg), nil
}

func newClient(api messagingAPI, timeout time.Duration, logg *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Client{
		api:      api,
		timeout:  timeout,
		classify: classifyError,
		logg:     logg,
	}
}

func clientOptions(cfg config.FirebaseConfig, gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// SendMulticast sends msg to every token and returns one result per token in
// request order. Requests above the FCM limit are split into chunks. When a
// chunk fails, the results of the chunks already sent are returned with the
// error.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, msg push.Message) ([]push.SendResult, error) {
	results := make([]push.SendResult, 0, len(tokens))
	for _, chunk := range chunk(tokens, MaxMulticastTokens) {
		resp, err := c.sendChunk(ctx, chunk, msg)
		if err != nil {
			return results, err
		}
		if resp == nil || len(resp.Responses) != len(chunk) {
			return results, fmt.Errorf("%w: fcm returned unexpected response count", push.ErrMisaligned)
		}
		for i, r := range resp.Responses {
			res := push.SendResult{Token: chunk[i]}
			switch {
			case r == nil:
				res.ErrorCode = "messaging/unknown-error"
			case r.Success:
				res.Success = true
			default:
				res.ErrorCode = c.classify(r.Error)
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (c *Client) sendChunk(ctx context.Context, tokens []string, msg push.Message) (*messaging.BatchResponse, error) {
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.api.SendEachForMulticast(sendCtx, toMulticast(tokens, msg))
	if err != nil {
		return nil, fmt.Errorf("fcm multicast: %w", err)
	}
	return resp, nil
}

func (c *Client) SubscribeTopic(ctx context.Context, tokens []string, topic string) error {
	return c.manageTopic(ctx, tokens, topic, c.api.SubscribeToTopic, "subscribe")
}

func (c *Client) UnsubscribeTopic(ctx context.Context, tokens []string, topic string) error {
	return c.manageTopic(ctx, tokens, topic, c.api.UnsubscribeFromTopic, "unsubscribe")
}

type topicCall func(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)

func (c *Client) manageTopic(ctx context.Context, tokens []string, topic string, call topicCall, action string) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("topic is required")
	}
	var errs error
	for _, part := range chunk(tokens, MaxTopicTokens) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := call(callCtx, part, topic)
		cancel()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fcm %s %s: %w", action, topic, err))
			continue
		}
		if resp == nil || resp.FailureCount == 0 {
			continue
		}
		for _, info := range resp.Errors {
			if info == nil {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("fcm %s %s token %d: %s", action, topic, info.Index, info.Reason))
		}
	}
	return errs
}

func toMulticast(tokens []string, msg push.Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return push.ErrorCodeNotRegistered
	case messaging.IsInvalidArgument(err):
		return push.ErrorCodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return push.ErrorCodeMismatchedCredential
	case messaging.IsQuotaExceeded(err):
		return "messaging/quota-exceeded"
	case messaging.IsUnavailable(err):
		return "messaging/server-unavailable"
	default:
		return "messaging/internal-error"
	}
}

func chunk(tokens []string, size int) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
	}
	return out
}
