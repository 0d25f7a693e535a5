package alert

import (
	"github.com/harrisonrobin/tasksheet/pkg/model"
)

// IsAlertable reports whether an unfinished task is overdue or high priority.
// A high priority task alerts regardless of its due date.
func IsAlertable(t model.Task, today model.Date) bool {
	if t.IsDone() {
		return false
	}
	return IsOverdue(t, today) || t.Priority == model.High
}

// IsOverdue reports whether the due date is strictly before today. A task
// without a due date is never overdue.
func IsOverdue(t model.Task, today model.Date) bool {
	return t.Due.Present() && t.Due.Before(today)
}

// Alert is an alertable task and its ledger position.
type Alert struct {
	Position int        `json:"position"`
	Task     model.Task `json:"task"`
	Overdue  bool       `json:"overdue"`
}

// Alertable returns the alertable tasks in ledger order.
func Alertable(tasks []model.Task, today model.Date) []Alert {
	alerts := []Alert{}
	for i, t := range tasks {
		if IsAlertable(t, today) {
			alerts = append(alerts, Alert{Position: i, Task: t, Overdue: IsOverdue(t, today)})
		}
	}
	return alerts
}
