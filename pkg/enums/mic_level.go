package enums

import "fmt"

// MicLevel is a member's participation level inside a community room.
type MicLevel string

const (
	MicLevelNone        MicLevel = "none"
	MicLevelRequested   MicLevel = "requested"
	MicLevelViewer      MicLevel = "viewer"
	MicLevelCommentator MicLevel = "commentator"
	MicLevelSpeaker     MicLevel = "speaker"
	MicLevelBanned      MicLevel = "banned"
)

var validMicLevels = []MicLevel{
	MicLevelNone,
	MicLevelRequested,
	MicLevelViewer,
	MicLevelCommentator,
	MicLevelSpeaker,
	MicLevelBanned,
}

// IsValid checks whether the given level matches the canonical enum.
func (m MicLevel) IsValid() bool {
	for _, candidate := range validMicLevels {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsOnTopic reports whether members at this level receive community topic broadcasts.
func (m MicLevel) IsOnTopic() bool {
	switch m {
	case MicLevelViewer, MicLevelCommentator, MicLevelSpeaker:
		return true
	default:
		return false
	}
}

// ParseMicLevel converts raw strings into MicLevel.
func ParseMicLevel(value string) (MicLevel, error) {
	for _, candidate := range validMicLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mic level %q", value)
}
