package notifications

import (
	"errors"

	"github.com/angelmondragon/stagecall/internal/preferences"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/push"
)

// Soft outcomes of the single-user pipeline. They are logged and counted, never retried.
var (
	ErrDeniedByPreference = errors.New("denied by notification preference")
	ErrUnsupportedKind    = errors.New("unsupported notification kind")
	ErrMissingContext     = errors.New("missing notification context")
	ErrNoDevices          = errors.New("no active device tokens")
)

type gateScope int

const (
	// scopeAlways kinds are sent regardless of any stored preference.
	scopeAlways gateScope = iota
	// scopeCommunity kinds read a toggle from the per-community record.
	scopeCommunity
	// scopeProfile kinds read the direct messages flag on the user profile.
	scopeProfile
)

type kindHandler struct {
	scope  gateScope
	toggle preferences.Toggle
	build  builder
}

var kindHandlers = map[enums.NotificationKind]kindHandler{
	enums.NotificationKindSelectedAsSpeaker:       {scope: scopeAlways, build: buildSelectedAsSpeaker},
	enums.NotificationKindPostingTips:             {scope: scopeAlways, build: buildPostingTips},
	enums.NotificationKindSelectedAsNextSpeaker:   {scope: scopeAlways, build: buildSelectedAsNextSpeaker},
	enums.NotificationKindReminderForPostCreation: {scope: scopeAlways, build: buildReminder},
	enums.NotificationKindUserRedeemedInviteLink:  {scope: scopeAlways, build: buildInviteRedeemed},
	enums.NotificationKindLeagueWeeklyResults:     {scope: scopeAlways, build: buildLeagueWeeklyResults},
	enums.NotificationKindTaggedInComment:         {scope: scopeCommunity, toggle: preferences.TaggedInComment, build: buildTaggedInComment},
	enums.NotificationKindTaggedInPost:            {scope: scopeCommunity, toggle: preferences.TaggedInPost, build: buildTaggedInPost},
	enums.NotificationKindAllComments:             {scope: scopeCommunity, toggle: preferences.AllComments, build: buildCommentCreated},
	enums.NotificationKindPollVote:                {scope: scopeCommunity, toggle: preferences.AllComments, build: buildPollVote},
	enums.NotificationKindPostCreated:             {scope: scopeCommunity, toggle: preferences.PostCreated, build: buildPostCreated},
	enums.NotificationKindReactionAdded:           {scope: scopeCommunity, toggle: preferences.ReactionNotification, build: buildReactionAdded},
	enums.NotificationKindReactionAddedOthers:     {scope: scopeCommunity, toggle: preferences.ReactionNotification, build: buildReactionAddedOthers},
	enums.NotificationKindCommunityAnnouncement:   {scope: scopeCommunity, toggle: preferences.CommunityAnnouncements, build: buildCommunityAnnouncement},
	enums.NotificationKindDirectMessage:           {scope: scopeProfile, build: buildDirectMessage},
	enums.NotificationKindMessageReactionAdded:    {scope: scopeProfile, build: buildMessageReactionAdded},
}

// Allowed is the preference gate. pref is the member's record for the
// notification's community (nil when absent) and user is the recipient profile,
// only consulted for profile scoped kinds. Poll votes are gated like comments.
// Unknown kinds are allowed.
func Allowed(kind enums.NotificationKind, pref *models.NotificationPreference, user *models.User) bool {
	h, ok := kindHandlers[kind]
	if !ok {
		return true
	}
	switch h.scope {
	case scopeCommunity:
		if pref == nil {
			return preferences.DefaultAllowed(kind)
		}
		return h.toggle.Allowed(pref)
	case scopeProfile:
		return user != nil && user.DirectMessagesNotifications
	default:
		return true
	}
}

// Build maps kind and its resolved entities to a provider message.
func Build(kind enums.NotificationKind, in BuildInput) (push.Message, error) {
	h, ok := kindHandlers[kind]
	if !ok || h.build == nil {
		return push.Message{}, ErrUnsupportedKind
	}
	in.Kind = kind
	return h.build(in)
}

// Supported reports whether kind has a payload builder.
func Supported(kind enums.NotificationKind) bool {
	h, ok := kindHandlers[kind]
	return ok && h.build != nil
}

func needsCommunityPreference(kind enums.NotificationKind) bool {
	h, ok := kindHandlers[kind]
	return ok && h.scope == scopeCommunity
}

func needsProfile(kind enums.NotificationKind) bool {
	h, ok := kindHandlers[kind]
	return ok && h.scope == scopeProfile
}
