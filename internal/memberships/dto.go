package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/enums"
)

// Membership is a user's participation in one community.
type Membership struct {
	CommunityID uuid.UUID      `json:"community_id"`
	UserID      uuid.UUID      `json:"user_id"`
	MicLevel    enums.MicLevel `json:"mic_level"`
}

// Speaker is the member currently holding the speaking slot.
type Speaker struct {
	UserID   uuid.UUID `json:"user_id"`
	EndingAt time.Time `json:"ending_at"`
}
