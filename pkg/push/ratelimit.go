package push

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider so every call first waits on a shared limiter.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited bounds calls to next at perSecond with the given burst. A
// non-positive rate disables limiting and returns next unchanged.
func NewRateLimited(next Provider, perSecond float64, burst int) Provider {
	if next == nil || perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimited) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.SendMulticast(ctx, tokens, msg)
}

func (r *RateLimited) SubscribeTopic(ctx context.Context, tokens []string, topic string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.SubscribeTopic(ctx, tokens, topic)
}

func (r *RateLimited) UnsubscribeTopic(ctx context.Context, tokens []string, topic string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.UnsubscribeTopic(ctx, tokens, topic)
}
