package preferences

import "github.com/angelmondragon/stagecall/pkg/db/models"

// Toggle binds a stored preference column to its in-memory accessor.
type Toggle struct {
	Column string
	Read   func(models.NotificationPreference) bool
}

var (
	TaggedInPost           = Toggle{Column: "tagged_in_post", Read: func(p models.NotificationPreference) bool { return p.TaggedInPost }}
	TaggedInComment        = Toggle{Column: "tagged_in_comment", Read: func(p models.NotificationPreference) bool { return p.TaggedInComment }}
	PostCreated            = Toggle{Column: "post_created", Read: func(p models.NotificationPreference) bool { return p.PostCreated }}
	AllComments            = Toggle{Column: "all_comments", Read: func(p models.NotificationPreference) bool { return p.AllComments }}
	ReactionNotification   = Toggle{Column: "reaction_notification", Read: func(p models.NotificationPreference) bool { return p.ReactionNotification }}
	CommunityAnnouncements = Toggle{Column: "community_announcements", Read: func(p models.NotificationPreference) bool { return p.CommunityAnnouncements }}
)

// Allowed applies the toggle to pref, falling back to the default policy when
// no record exists.
func (t Toggle) Allowed(pref *models.NotificationPreference) bool {
	if pref == nil || t.Read == nil {
		return true
	}
	return t.Read(*pref)
}
