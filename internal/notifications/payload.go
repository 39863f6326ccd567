package notifications

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/push"
)

const snippetLimit = 120

// CommunitySummary is the community data shown on most notifications.
type CommunitySummary struct {
	ID    string
	Name  string
	Image string
}

// BuildInput holds the entities a payload builder may read. Any field may be nil.
type BuildInput struct {
	Kind      enums.NotificationKind
	Community *CommunitySummary
	Actor     *models.User
	Post      *models.Post
	Comment   *models.Comment
	Reaction  *models.UserReaction
	Message   *models.ChatMessage
	Time      string
	Metadata  map[string]any
}

type builder func(in BuildInput) (push.Message, error)

func missing(what string) error {
	return fmt.Errorf("%w: %s", ErrMissingContext, what)
}

func buildSelectedAsSpeaker(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s passed you the mic. You're the speaker now.", actorName(in.Actor))), nil
}

func buildPostingTips(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	return message(in, in.Community.Name,
		"Need a spark? Open the app for tips on writing a post that gets the room talking."), nil
}

func buildSelectedAsNextSpeaker(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	body := fmt.Sprintf("%s picked you as the next speaker.", actorName(in.Actor))
	if in.Time != "" {
		body = fmt.Sprintf("%s picked you as the next speaker. You're up %s.", actorName(in.Actor), in.Time)
	}
	return message(in, in.Community.Name, body), nil
}

func buildReminder(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	body := "Your speaking slot is almost over. Share a post before it ends."
	if in.Time != "" {
		body = fmt.Sprintf("Your speaking slot ends %s. Share a post before it's over.", in.Time)
	}
	return message(in, in.Community.Name, body), nil
}

func buildInviteRedeemed(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s joined with your invite link.", actorName(in.Actor))), nil
}

func buildLeagueWeeklyResults(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	body := "This week's league results are in."
	if rank, ok := in.Metadata["rank"]; ok && rank != nil {
		body = fmt.Sprintf("This week's league results are in. You finished #%v.", rank)
	}
	return message(in, in.Community.Name, body), nil
}

func buildTaggedInComment(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Comment == nil {
		return push.Message{}, missing("comment")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s mentioned you: %s", actorName(in.Actor), snippet(in.Comment.Text))), nil
}

func buildTaggedInPost(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Post == nil {
		return push.Message{}, missing("post")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s mentioned you in a post: %s", actorName(in.Actor), postHeadline(in.Post))), nil
}

func buildCommentCreated(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Comment == nil {
		return push.Message{}, missing("comment")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s commented: %s", actorName(in.Actor), snippet(in.Comment.Text))), nil
}

func buildPollVote(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	if in.Post == nil {
		return push.Message{}, missing("post")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s voted on the poll: %s", actorName(in.Actor), postHeadline(in.Post))), nil
}

func buildPostCreated(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Post == nil {
		return push.Message{}, missing("post")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("New post: %s", postHeadline(in.Post))), nil
}

func buildReactionAdded(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	if in.Reaction == nil {
		return push.Message{}, missing("reaction")
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s reacted %s to your comment", actorName(in.Actor), in.Reaction.Symbol)), nil
}

func buildReactionAddedOthers(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	if in.Reaction == nil {
		return push.Message{}, missing("reaction")
	}
	if in.Comment == nil {
		return push.Message{}, missing("comment")
	}
	symbol := in.Reaction.Symbol
	if in.Reaction.NotificationSymbol != nil && *in.Reaction.NotificationSymbol != "" {
		symbol = *in.Reaction.NotificationSymbol
	}
	return message(in, in.Community.Name,
		fmt.Sprintf("%s %s \"%s\"", actorName(in.Actor), symbol, snippet(in.Comment.Text))), nil
}

func buildCommunityAnnouncement(in BuildInput) (push.Message, error) {
	if in.Community == nil {
		return push.Message{}, missing("community")
	}
	if in.Message == nil {
		return push.Message{}, missing("message")
	}
	return message(in, in.Community.Name+" announcement", snippet(in.Message.Text)), nil
}

func buildDirectMessage(in BuildInput) (push.Message, error) {
	if in.Message == nil {
		return push.Message{}, missing("message")
	}
	return message(in, actorName(in.Actor), snippet(in.Message.Text)), nil
}

func buildMessageReactionAdded(in BuildInput) (push.Message, error) {
	if in.Actor == nil {
		return push.Message{}, missing("actor")
	}
	if in.Message == nil {
		return push.Message{}, missing("message")
	}
	return message(in, actorName(in.Actor),
		fmt.Sprintf("Reacted to your message: %s", snippet(in.Message.Text))), nil
}

// message assembles the provider payload and its routing data attributes.
func message(in BuildInput, title, body string) push.Message {
	msg := push.Message{
		Title: title,
		Body:  body,
		Data:  map[string]string{"type": in.Kind.String()},
	}
	if in.Community != nil {
		msg.ImageURL = in.Community.Image
		msg.Data["chatRoomId"] = in.Community.ID
	}
	if in.Actor != nil {
		msg.Data["userId"] = in.Actor.ID.String()
	}
	if in.Post != nil {
		msg.Data["postId"] = in.Post.ID.String()
	}
	if in.Comment != nil {
		msg.Data["commentId"] = in.Comment.ID.String()
		msg.Data["postId"] = in.Comment.PostID.String()
	}
	if in.Reaction != nil {
		msg.Data["reactionId"] = in.Reaction.ID.String()
	}
	if in.Message != nil {
		msg.Data["messageId"] = in.Message.ID.String()
	}
	return msg
}

func actorName(u *models.User) string {
	if u == nil {
		return "Someone"
	}
	if name := u.DisplayName(); name != "" {
		return name
	}
	return "Someone"
}

func postHeadline(p *models.Post) string {
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		return snippet(*p.Title)
	}
	return snippet(p.Text)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetLimit-1]) + "…"
}
