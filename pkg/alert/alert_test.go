package alert

import (
	"testing"
	"time"

	"github.com/harrisonrobin/tasksheet/pkg/model"
)

func TestIsAlertable(t *testing.T) {
	today := model.NewDate(2024, time.June, 1)
	cases := []struct {
		name string
		task model.Task
		want bool
	}{
		{"done high overdue", model.Task{Status: model.Done, Priority: model.High, Due: model.NewDate(2024, time.January, 1)}, false},
		{"high without due date", model.Task{Status: model.Unstarted, Priority: model.High}, true},
		{"high with future due date", model.Task{Status: model.InProgress, Priority: model.High, Due: model.NewDate(2025, time.January, 1)}, true},
		{"low overdue", model.Task{Status: model.InProgress, Priority: model.Low, Due: model.NewDate(2024, time.May, 31)}, true},
		{"medium due today", model.Task{Status: model.Unstarted, Priority: model.Medium, Due: today}, false},
		{"medium without due date", model.Task{Status: model.Unstarted, Priority: model.Medium}, false},
	}
	for _, tc := range cases {
		if got := IsAlertable(tc.task, today); got != tc.want {
			t.Errorf("%s: IsAlertable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOverdueThenDone(t *testing.T) {
	task := model.Task{Title: "A", Status: model.Unstarted, Due: model.NewDate(2024, time.January, 1), Priority: model.Low}
	today := model.NewDate(2024, time.June, 1)
	if !IsAlertable(task, today) {
		t.Fatalf("expected overdue task to alert")
	}
	task.Status = model.Done
	if IsAlertable(task, today) {
		t.Errorf("expected Done task not to alert")
	}
}

func TestAlertableKeepsOrder(t *testing.T) {
	today := model.NewDate(2024, time.June, 1)
	tasks := []model.Task{
		{Title: "a", Priority: model.High},
		{Title: "b", Priority: model.Low},
		{Title: "c", Priority: model.Low, Due: model.NewDate(2024, time.February, 1)},
	}
	alerts := Alertable(tasks, today)
	if len(alerts) != 2 || alerts[0].Position != 0 || alerts[1].Position != 2 {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
	if alerts[0].Overdue || !alerts[1].Overdue {
		t.Errorf("overdue markers wrong: %+v", alerts)
	}
}
