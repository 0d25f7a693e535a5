package util

import (
	"strings"
	"time"

	"github.com/harrisonrobin/tasksheet/pkg/model"
)

// Layouts accepted when reading dates from cells. Anything carrying a time
// component is truncated to its calendar date.
var dateLayouts = []string{
	model.DateLayout,
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a cell value into a calendar date. Empty or unparseable
// input yields an absent date.
func ParseDate(raw string) model.Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DateOf(t)
		}
	}
	return model.Date{}
}

// FormatDate renders a date as YYYY-MM-DD, or "" when absent.
func FormatDate(d model.Date) string {
	return d.String()
}

// ParseBoolFlag matches the literal TRUE, case-insensitively.
func ParseBoolFlag(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "TRUE")
}

func FormatBoolFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// ParsePriority maps a cell value onto the priority enum. Unknown values become Medium.
func ParsePriority(raw string) model.Priority {
	s := strings.TrimSpace(raw)
	for _, p := range model.Priorities {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	return model.Medium
}

// ParseStatus maps a cell value onto the status enum. Unknown values become Unstarted.
func ParseStatus(raw string) model.Status {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	for _, st := range model.Statuses {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return model.Unstarted
}

// Normalize re-derives the fields whose validity depends on other fields.
func Normalize(t model.Task) model.Task {
	t.Due = ParseDate(FormatDate(t.Due))
	t.Completed = ParseDate(FormatDate(t.Completed))
	if t.Priority == "" {
		t.Priority = model.Medium
	}
	if t.Status == "" {
		t.Status = model.Unstarted
	}
	if t.Status != model.Done {
		t.Completed = model.Date{}
	}
	return t
}

// NormalizeAll normalizes every task in place.
func NormalizeAll(tasks []model.Task) {
	for i := range tasks {
		tasks[i] = Normalize(tasks[i])
	}
}
