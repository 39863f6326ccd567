package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/pkg/enums"
)

// Message attributes set on every job.
const (
	AttrJobType = "job_type"
	AttrJobID   = "job_id"
)

// Envelope wraps every job published on the notification topic.
type Envelope struct {
	JobID     uuid.UUID       `json:"jobId" validate:"required"`
	Type      enums.JobType   `json:"type" validate:"required"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data" validate:"required"`
}

// DeliverNotificationJob fans one notification kind out to a list of users.
type DeliverNotificationJob struct {
	UserIDs []uuid.UUID              `json:"userIds" validate:"required,min=1,dive,required"`
	Kind    enums.NotificationKind   `json:"kind" validate:"required"`
	Context notifications.JobContext `json:"context"`
}

// TopicChangeJob subscribes or unsubscribes one user from a community topic.
type TopicChangeJob struct {
	UserID      uuid.UUID         `json:"userId" validate:"required"`
	CommunityID uuid.UUID         `json:"chatRoomId" validate:"required"`
	Action      enums.TopicAction `json:"action" validate:"required,oneof=add remove"`
}

type TopicSyncJob struct {
	UserIDs []uuid.UUID `json:"userIds" validate:"required,min=1,dive,required"`
}

type PurgeTokensJob struct {
	Tokens []string `json:"tokens" validate:"required,min=1,dive,required"`
}

type ReminderAdjustJob struct {
	CommunityID uuid.UUID `json:"chatRoomId" validate:"required"`
}
