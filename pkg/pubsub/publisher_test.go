package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

type stubPublisher struct {
	msgs   []*pubsub.Message
	result PublishResult
}

func (s *stubPublisher) Publish(ctx context.Context, msg *pubsub.Message) PublishResult {
	s.msgs = append(s.msgs, msg)
	return s.result
}

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) {
	return r.id, r.err
}

func TestPublishJSON(t *testing.T) {
	pub := &stubPublisher{result: stubResult{id: "srv-1"}}
	id, err := PublishJSON(context.Background(), pub, map[string]string{"hello": "world"}, map[string]string{"job_type": "x"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "srv-1" {
		t.Fatalf("expected server id srv-1, got %q", id)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.msgs))
	}
	var body map[string]string
	if err := json.Unmarshal(pub.msgs[0].Data, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["hello"] != "world" || pub.msgs[0].Attributes["job_type"] != "x" {
		t.Fatalf("unexpected message %+v", pub.msgs[0])
	}
}

func TestPublishJSONErrors(t *testing.T) {
	if _, err := PublishJSON(context.Background(), nil, "x", nil, 0); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	if _, err := PublishJSON(context.Background(), &stubPublisher{}, "x", nil, 0); err == nil {
		t.Fatal("expected error for nil result")
	}
	failing := &stubPublisher{result: stubResult{err: errors.New("boom")}}
	if _, err := PublishJSON(context.Background(), failing, "x", nil, 0); err == nil {
		t.Fatal("expected publish error")
	}
	if _, err := PublishJSON(context.Background(), &stubPublisher{}, make(chan int), nil, 0); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestNewMessagePublisherNil(t *testing.T) {
	if NewMessagePublisher(nil) != nil {
		t.Fatal("expected nil adapter for nil publisher")
	}
}
