package preferences

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
)

// DefaultAllowed is the policy applied when a member has no stored record.
// Every kind is allowed until the member opts out.
func DefaultAllowed(kind enums.NotificationKind) bool {
	return true
}

// Default returns the record created lazily for a member on first read.
func Default(userID, communityID uuid.UUID) models.NotificationPreference {
	return models.NotificationPreference{
		ID:                     uuid.New(),
		UserID:                 userID,
		CommunityID:            communityID,
		TaggedInPost:           true,
		TaggedInComment:        true,
		PostCreated:            true,
		SelectedAsSpeaker:      true,
		SelectedAsNextSpeaker:  true,
		AllComments:            true,
		ShowInViewedBy:         true,
		ReactionNotification:   true,
		CommunityAnnouncements: true,
	}
}
