package notifications

import (
	"github.com/google/uuid"
)

// JobContext is the kind specific bag of references carried with a
// notification intent. Absent fields are nil, never errors.
type JobContext struct {
	CommunityID *uuid.UUID     `json:"chatRoomId,omitempty"`
	PostID      *uuid.UUID     `json:"postId,omitempty"`
	CommentID   *uuid.UUID     `json:"commentId,omitempty"`
	ReactionID  *uuid.UUID     `json:"reactionId,omitempty"`
	MessageID   *uuid.UUID     `json:"messageId,omitempty"`
	ActorID     *uuid.UUID     `json:"userId,omitempty"`
	Time        string         `json:"time,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ForCommunity returns a context scoped to communityID.
func ForCommunity(communityID uuid.UUID) JobContext {
	return JobContext{CommunityID: &communityID}
}

// WithActor sets the user who triggered the notification.
func (c JobContext) WithActor(userID uuid.UUID) JobContext {
	c.ActorID = &userID
	return c
}

// WithPost sets the referenced post.
func (c JobContext) WithPost(postID uuid.UUID) JobContext {
	c.PostID = &postID
	return c
}

// WithComment sets the referenced comment.
func (c JobContext) WithComment(commentID uuid.UUID) JobContext {
	c.CommentID = &commentID
	return c
}

// WithReaction sets the referenced reaction.
func (c JobContext) WithReaction(reactionID uuid.UUID) JobContext {
	c.ReactionID = &reactionID
	return c
}

// WithMessage sets the referenced chat message.
func (c JobContext) WithMessage(messageID uuid.UUID) JobContext {
	c.MessageID = &messageID
	return c
}

// WithTime sets the human readable timing string.
func (c JobContext) WithTime(value string) JobContext {
	c.Time = value
	return c
}
