package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/enums"
)

// PushNotificationLog is the audit trail of every payload handed to the push provider.
type PushNotificationLog struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Payload   string                 `gorm:"column:payload;type:text;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
