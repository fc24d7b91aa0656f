// Package model defines the records managed by gofolio.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidStatus is returned for a status outside the known set.
var ErrInvalidStatus = errors.New("invalid status")

// Status is the publication state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus accepts any casing and returns the canonical lower-case status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusPublished
}

// MarshalJSON writes the canonical form. The zero value is written as an
// empty string; any other unknown value is an error.
func (s Status) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	parsed, err := ParseStatus(string(s))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(parsed))
}

// UnmarshalJSON normalises casing. An empty string is kept empty so that
// callers can apply their own default.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ContentItem is the shared shape of projects, blog posts, other works and
// videos.
type ContentItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Image       string    `json:"image"`
	Link        string    `json:"link"`
	Status      Status    `json:"status"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsPublished reports whether the item is visible on the public site.
func (c ContentItem) IsPublished() bool {
	return c.Status == StatusPublished
}

// ContentPatch is a partial update of a ContentItem. Nil fields are left
// unchanged.
type ContentPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Body        *string   `json:"body,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Image       *string   `json:"image,omitempty"`
	Link        *string   `json:"link,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Featured    *bool     `json:"featured,omitempty"`
}

// Validate rejects a status key that is present but empty or unknown.
func (p ContentPatch) Validate() error {
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	return nil
}
