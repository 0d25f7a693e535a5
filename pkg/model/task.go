package model

import (
	"strings"
	"time"
)

type Priority string

const (
	High   Priority = "High"
	Medium Priority = "Medium"
	Low    Priority = "Low"
)

type Status string

const (
	Unstarted  Status = "Unstarted"
	InProgress Status = "InProgress"
	Done       Status = "Done"
)

// Priorities and Statuses list the values accepted by the store's validation rules.
var (
	Priorities = []Priority{High, Medium, Low}
	Statuses   = []Status{Unstarted, InProgress, Done}
)

// Task represents one row of the shared ledger.
type Task struct {
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	Requester string    `json:"requester"`
	Assignees [3]string `json:"assignees"`
	Priority  Priority  `json:"priority"`
	Status    Status    `json:"status"`
	Due       Date      `json:"due_date"`
	Completed Date      `json:"completion_date"`
	Remarks   string    `json:"remarks"`
	// UI intent only, never written to the store.
	Delete bool `json:"-"`
	Notify bool `json:"-"`
}

// IsDone reports whether the task is finished.
func (t Task) IsDone() bool {
	return t.Status == Done
}

// AssignedTo reports whether name exactly matches one of the assignee slots.
func (t Task) AssignedTo(name string) bool {
	if name == "" {
		return false
	}
	for _, a := range t.Assignees {
		if a == name {
			return true
		}
	}
	return false
}

// AssigneeList returns the non-empty assignee slots joined for display.
func (t Task) AssigneeList() string {
	var names []string
	for _, a := range t.Assignees {
		if a != "" {
			names = append(names, a)
		}
	}
	return strings.Join(names, ", ")
}

// ClearFlags resets the transient UI fields.
func (t *Task) ClearFlags() {
	t.Delete = false
	t.Notify = false
}

// DateOf truncates a timestamp to its calendar date in the timestamp's own location.
func DateOf(ts time.Time) Date {
	if ts.IsZero() {
		return Date{}
	}
	y, m, d := ts.Date()
	return NewDate(y, m, d)
}
