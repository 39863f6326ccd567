package enums

import "testing"

func TestParseNotificationKind(t *testing.T) {
	for _, kind := range NotificationKinds() {
		got, err := ParseNotificationKind(string(kind))
		if err != nil {
			t.Fatalf("parse %q: %v", kind, err)
		}
		if got != kind {
			t.Fatalf("expected %q, got %q", kind, got)
		}
	}
	if _, err := ParseNotificationKind("carrier_pigeon"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if NotificationKind("carrier_pigeon").IsValid() {
		t.Fatal("unknown kind should not be valid")
	}
}

func TestMicLevelIsOnTopic(t *testing.T) {
	onTopic := map[MicLevel]bool{
		MicLevelNone:        false,
		MicLevelRequested:   false,
		MicLevelViewer:      true,
		MicLevelCommentator: true,
		MicLevelSpeaker:     true,
		MicLevelBanned:      false,
	}
	for level, want := range onTopic {
		if got := level.IsOnTopic(); got != want {
			t.Fatalf("%s: expected on-topic %v, got %v", level, want, got)
		}
	}
}

func TestTopicActionJobType(t *testing.T) {
	if TopicActionAdd.JobType() != JobTypeAddToTopic {
		t.Fatalf("add should map to %s", JobTypeAddToTopic)
	}
	if TopicActionRemove.JobType() != JobTypeRemoveFromTopic {
		t.Fatalf("remove should map to %s", JobTypeRemoveFromTopic)
	}
	if TopicAction("toggle").IsValid() {
		t.Fatal("toggle is not a valid action")
	}
	if _, err := ParseJobType("send-notification"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
