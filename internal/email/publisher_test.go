package email

import (
	"context"
	"encoding/json"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/pubsub"
)

type stubPublisher struct {
	msgs []*gcppubsub.Message
}

func (s *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) pubsub.PublishResult {
	s.msgs = append(s.msgs, msg)
	return stubResult{id: "srv-1"}
}

type stubResult struct {
	id string
}

func (r stubResult) Get(context.Context) (string, error) {
	return r.id, nil
}

func TestRenderReminderTips(t *testing.T) {
	base := Reminder{SpeakerName: "Ada <3", CommunityName: "Night Owls", Time: "6 hours from now", UnsubscribeURL: "https://x/unsub"}

	msg, err := RenderReminder(base)
	require.NoError(t, err)
	assert.Equal(t, "Your time on stage in Night Owls is running out", msg.Subject)
	assert.Contains(t, msg.PlainText, "ends 6 hours from now")
	assert.NotContains(t, msg.PlainText, "league")
	assert.Contains(t, msg.HTML, "Ada &lt;3")

	base.IncludeTips = true
	msg, err = RenderReminder(base)
	require.NoError(t, err)
	assert.Contains(t, msg.PlainText, "A league is running in Night Owls")
	assert.Contains(t, msg.HTML, "A league is running")
}

func TestSendReminderPublishesRenderedEmail(t *testing.T) {
	stub := &stubPublisher{}
	p, err := NewPublisher(stub, "https://app.stagecall.io/settings/email/", logger.Nop())
	require.NoError(t, err)

	require.NoError(t, p.SendReminder(context.Background(), Reminder{
		UserID:        "user-1",
		To:            "ada@example.com",
		SpeakerName:   "Ada",
		CommunityName: "Night Owls",
		Time:          "an hour from now",
	}))
	require.Len(t, stub.msgs, 1)
	assert.Equal(t, "email.reminder", stub.msgs[0].Attributes["event_type"])

	var got Message
	require.NoError(t, json.Unmarshal(stub.msgs[0].Data, &got))
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "post-reminder", got.Template)
	assert.Contains(t, got.PlainText, "https://app.stagecall.io/settings/email?user=user-1")
}

func TestSendReminderRequiresRecipient(t *testing.T) {
	stub := &stubPublisher{}
	p, err := NewPublisher(stub, "https://x", logger.Nop())
	require.NoError(t, err)
	require.Error(t, p.SendReminder(context.Background(), Reminder{UserID: "u"}))
	assert.Empty(t, stub.msgs)
}
