package core

import (
	"errors"
	"testing"
)

func TestTopicsCanonical(t *testing.T) {
	topics := NewTopics("https://ntfy.sh")

	tests := []struct {
		in   string
		want string
	}{
		{"veb", "veb"},
		{"ntfy.sh/veb", "veb"},
		{"https://ntfy.sh/veb", "veb"},
		{"  https://ntfy.sh/veb/  ", "veb"},
		{"ntfy.sh/veb?_=123", "veb"},
		{"/veb/", "veb"},
		{"ntfy.sh", ""},
	}
	for _, tt := range tests {
		if got := topics.Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if !topics.Equal("X", "ntfy.sh/X") {
		t.Fatal("prefixed and bare topic should be equal")
	}
}

func TestTopicsValidate(t *testing.T) {
	topics := NewTopics("https://ntfy.sh")

	if got, err := topics.Validate("ntfy.sh/room_1"); err != nil || got != "room_1" {
		t.Fatalf("Validate valid topic = %q, %v", got, err)
	}
	if _, err := topics.Validate("   "); !errors.Is(err, Errorf(ErrCodeEmptyInput, "")) {
		t.Fatalf("expected empty_input, got %v", err)
	}
	if _, err := topics.Validate("other.host/room"); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("expected invalid_topic, got %v", err)
	}
	if _, err := topics.Validate("has space"); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("expected invalid_topic, got %v", err)
	}
}
