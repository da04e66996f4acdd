package domain

import (
	"strings"
	"time"
)

// Item represents the comparable attributes of a lost or found report
type Item struct {
	ID          string  `json:"id" binding:"required"`
	Category    string  `json:"category"`
	ItemName    string  `json:"itemName"`
	Location    string  `json:"location"`
	Date        string  `json:"date"`                  // calendar date, e.g. "2024-03-18"
	Description *string `json:"description,omitempty"` // optional
}

// HasDescription reports whether the item carries a non-blank description
func (i Item) HasDescription() bool {
	return i.Description != nil && strings.TrimSpace(*i.Description) != ""
}

// DescriptionText returns the description or "" when absent
func (i Item) DescriptionText() string {
	if i.Description == nil {
		return ""
	}
	return *i.Description
}

// dateLayouts are tried in order when parsing an item date
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// ParseDate parses a calendar date and returns midnight UTC of that day.
// Only the calendar day written in the value is kept; offsets are not applied.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
