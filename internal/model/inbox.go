package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message is a contact-form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessagePatch is a partial update of a Message.
type MessagePatch struct {
	Read *bool `json:"read,omitempty"`
}

// MeetingStatus is the state of a meeting request.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingConfirmed MeetingStatus = "confirmed"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// ParseMeetingStatus accepts any casing and returns the canonical status.
func ParseMeetingStatus(s string) (MeetingStatus, error) {
	status := MeetingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: meeting %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsValid reports whether s is a known meeting status.
func (s MeetingStatus) IsValid() bool {
	switch s {
	case MeetingPending, MeetingConfirmed, MeetingCompleted, MeetingCancelled:
		return true
	}
	return false
}

// MarshalJSON writes the canonical form; the zero value is written empty.
func (s MeetingStatus) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	parsed, err := ParseMeetingStatus(string(s))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(parsed))
}

// UnmarshalJSON normalises casing; an empty string stays empty.
func (s *MeetingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseMeetingStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Meeting is a request to schedule a call.
type Meeting struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Topic       string        `json:"topic"`
	RequestedAt time.Time     `json:"requestedAt"`
	Status      MeetingStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// MeetingPatch is a partial update of a Meeting.
type MeetingPatch struct {
	Topic       *string        `json:"topic,omitempty"`
	RequestedAt *time.Time     `json:"requestedAt,omitempty"`
	Status      *MeetingStatus `json:"status,omitempty"`
}

// Validate rejects a status key that is present but empty or unknown.
func (p MeetingPatch) Validate() error {
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: meeting %q", ErrInvalidStatus, *p.Status)
	}
	return nil
}
