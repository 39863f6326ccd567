package enums

import "fmt"

// NotificationKind identifies a push notification intent carried on the work queue.
type NotificationKind string

const (
	NotificationKindSelectedAsSpeaker       NotificationKind = "selected_as_speaker"
	NotificationKindPostingTips             NotificationKind = "posting_tips"
	NotificationKindSelectedAsNextSpeaker   NotificationKind = "selected_as_next_speaker"
	NotificationKindReminderForPostCreation NotificationKind = "reminder_for_post_creation"
	NotificationKindUserRedeemedInviteLink  NotificationKind = "user_redeemed_invite_link"
	NotificationKindLeagueWeeklyResults     NotificationKind = "league_weekly_results"
	NotificationKindTaggedInComment         NotificationKind = "tagged_in_comment"
	NotificationKindTaggedInPost            NotificationKind = "tagged_in_post"
	NotificationKindAllComments             NotificationKind = "all_comments"
	NotificationKindPollVote                NotificationKind = "poll_vote"
	NotificationKindPostCreated             NotificationKind = "post_created"
	NotificationKindReactionAdded           NotificationKind = "reaction_added"
	NotificationKindReactionAddedOthers     NotificationKind = "reaction_added_others"
	NotificationKindCommunityAnnouncement   NotificationKind = "community_announcement"
	NotificationKindDirectMessage           NotificationKind = "direct_message"
	NotificationKindMessageReactionAdded    NotificationKind = "message_reaction_added"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindSelectedAsSpeaker,
	NotificationKindPostingTips,
	NotificationKindSelectedAsNextSpeaker,
	NotificationKindReminderForPostCreation,
	NotificationKindUserRedeemedInviteLink,
	NotificationKindLeagueWeeklyResults,
	NotificationKindTaggedInComment,
	NotificationKindTaggedInPost,
	NotificationKindAllComments,
	NotificationKindPollVote,
	NotificationKindPostCreated,
	NotificationKindReactionAdded,
	NotificationKindReactionAddedOthers,
	NotificationKindCommunityAnnouncement,
	NotificationKindDirectMessage,
	NotificationKindMessageReactionAdded,
}

// NotificationKinds returns every known kind in declaration order.
func NotificationKinds() []NotificationKind {
	out := make([]NotificationKind, len(validNotificationKinds))
	copy(out, validNotificationKinds)
	return out
}

// IsValid checks whether the given kind matches the canonical enum.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func (k NotificationKind) String() string {
	return string(k)
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
