// Package push defines the narrow capability the notification core needs from a
// mobile push gateway.
package push

import (
	"context"
	"errors"
	"fmt"
)

// Provider error codes that mean a device token can never be used again.
const (
	ErrorCodeMismatchedCredential = "messaging/mismatched-credential"
	ErrorCodeInvalidArgument      = "messaging/invalid-argument"
	ErrorCodeNotRegistered        = "messaging/registration-token-not-registered"
)

// ErrMisaligned is returned when provider results cannot be matched to the
// request tokens one to one.
var ErrMisaligned = errors.New("push results misaligned with request tokens")

// Message is the provider-ready content of a single notification.
type Message struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	ImageURL string            `json:"imageUrl,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// SendResult is the outcome for one token of a multicast send. Results are
// returned in the same order as the request tokens.
type SendResult struct {
	Token     string
	Success   bool
	ErrorCode string
}

// Provider sends multicast messages and manages topic membership.
//
// SendMulticast may return results together with an error when only part of
// the request reached the gateway. Those results cover a prefix of tokens.
type Provider interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error)
	SubscribeTopic(ctx context.Context, tokens []string, topic string) error
	UnsubscribeTopic(ctx context.Context, tokens []string, topic string) error
}

// IsPermanentTokenError reports whether code marks the token as dead.
func IsPermanentTokenError(code string) bool {
	switch code {
	case ErrorCodeMismatchedCredential, ErrorCodeInvalidArgument, ErrorCodeNotRegistered:
		return true
	default:
		return false
	}
}

// InvalidTokens returns the tokens whose results carry a permanent error code.
// It fails with ErrMisaligned when results do not line up with tokens by index.
func InvalidTokens(tokens []string, results []SendResult) ([]string, error) {
	if len(tokens) != len(results) {
		return nil, fmt.Errorf("%w: %d tokens, %d results", ErrMisaligned, len(tokens), len(results))
	}
	var invalid []string
	for i, res := range results {
		if res.Token != "" && res.Token != tokens[i] {
			return nil, fmt.Errorf("%w: index %d", ErrMisaligned, i)
		}
		if !res.Success && IsPermanentTokenError(res.ErrorCode) {
			invalid = append(invalid, tokens[i])
		}
	}
	return invalid, nil
}

// CountFailures returns how many results were not successful.
func CountFailures(results []SendResult) int {
	n := 0
	for _, res := range results {
		if !res.Success {
			n++
		}
	}
	return n
}
