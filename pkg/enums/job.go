package enums

import "fmt"

// JobType is carried as the job_type attribute on notification queue messages.
type JobType string

const (
	JobTypeSendNotification  JobType = "send-notification"
	JobTypeAddToTopic        JobType = "add-to-topic"
	JobTypeRemoveFromTopic   JobType = "remove-from-topic"
	JobTypeSyncTopics        JobType = "sync-topics"
	JobTypePurgeDeviceTokens JobType = "purge-device-tokens"
	JobTypeAdjustReminder    JobType = "adjust-reminder"
)

var validJobTypes = []JobType{
	JobTypeSendNotification,
	JobTypeAddToTopic,
	JobTypeRemoveFromTopic,
	JobTypeSyncTopics,
	JobTypePurgeDeviceTokens,
	JobTypeAdjustReminder,
}

// IsValid checks whether the given job type is known.
func (j JobType) IsValid() bool {
	for _, candidate := range validJobTypes {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJobType converts raw strings into JobType.
func ParseJobType(value string) (JobType, error) {
	for _, candidate := range validJobTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job type %q", value)
}

// TopicAction is the direction of a topic membership change.
type TopicAction string

const (
	TopicActionAdd    TopicAction = "add"
	TopicActionRemove TopicAction = "remove"
)

// IsValid checks whether the action is add or remove.
func (a TopicAction) IsValid() bool {
	return a == TopicActionAdd || a == TopicActionRemove
}

// JobType returns the queue job type that carries this action.
func (a TopicAction) JobType() JobType {
	if a == TopicActionRemove {
		return JobTypeRemoveFromTopic
	}
	return JobTypeAddToTopic
}
