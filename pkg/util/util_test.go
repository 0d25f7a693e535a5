package util

import (
	"testing"
	"time"

	"github.com/harrisonrobin/tasksheet/pkg/model"
)

func TestParseDateMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n", "garbage", "2024-13-01", "2024-02-30", "01/02/2024x", "TRUE"} {
		if d := ParseDate(raw); d.Present() {
			t.Errorf("ParseDate(%q) = %v, want absent", raw, d)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := model.NewDate(2024, time.March, 5)
	for _, raw := range []string{"2024-03-05", " 2024-03-05 ", "2024/03/05", "2024/3/5", "2024-03-05 17:45:00", "2024-03-05T09:00:00Z"} {
		if got := ParseDate(raw); !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	dates := []model.Date{
		model.NewDate(2024, time.January, 1),
		model.NewDate(1999, time.December, 31),
		model.NewDate(2028, time.February, 29),
	}
	for _, d := range dates {
		if got := ParseDate(FormatDate(d)); !got.Equal(d) {
			t.Errorf("round trip of %v gave %v", d, got)
		}
	}
	if got := FormatDate(ParseDate("")); got != "" {
		t.Errorf("FormatDate(ParseDate(\"\")) = %q, want empty", got)
	}
}

func TestParseBoolFlag(t *testing.T) {
	cases := map[string]bool{
		"TRUE":  true,
		"true":  true,
		" True": true,
		"FALSE": false,
		"":      false,
		"yes":   false,
		"1":     false,
	}
	for raw, want := range cases {
		if got := ParseBoolFlag(raw); got != want {
			t.Errorf("ParseBoolFlag(%q) = %v, want %v", raw, got, want)
		}
	}
	if FormatBoolFlag(true) != "TRUE" || FormatBoolFlag(false) != "FALSE" {
		t.Errorf("FormatBoolFlag produced unexpected tokens")
	}
}

func TestParseEnums(t *testing.T) {
	if got := ParsePriority("high"); got != model.High {
		t.Errorf("ParsePriority(high) = %s", got)
	}
	if got := ParsePriority("urgent"); got != model.Medium {
		t.Errorf("ParsePriority(urgent) = %s, want Medium", got)
	}
	if got := ParseStatus("In Progress"); got != model.InProgress {
		t.Errorf("ParseStatus(In Progress) = %s", got)
	}
	if got := ParseStatus(""); got != model.Unstarted {
		t.Errorf("ParseStatus(\"\") = %s, want Unstarted", got)
	}
}

func TestNormalizeClearsCompletion(t *testing.T) {
	task := model.Task{
		Title:     "A",
		Status:    model.InProgress,
		Completed: model.NewDate(2024, time.May, 1),
	}
	if got := Normalize(task); got.Completed.Present() {
		t.Errorf("expected completion date cleared for %s task, got %v", got.Status, got.Completed)
	}

	task.Status = model.Done
	if got := Normalize(task); !got.Completed.Present() {
		t.Errorf("expected completion date kept for Done task")
	}
}

func TestRowRoundTrip(t *testing.T) {
	task := model.Task{
		Title:     "Ship release",
		Details:   "tag and publish",
		Requester: "Sato",
		Assignees: [3]string{"Kim", "", "Lee"},
		Priority:  model.High,
		Status:    model.Done,
		Due:       model.NewDate(2024, time.June, 1),
		Completed: model.NewDate(2024, time.June, 2),
		Remarks:   "late",
		Delete:    true,
		Notify:    true,
	}
	row := TaskToRow(task)
	if len(row) != len(model.Columns) {
		t.Fatalf("row has %d cells, want %d", len(row), len(model.Columns))
	}
	got := TaskFromRow(row)
	task.ClearFlags()
	if got != task {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, task)
	}
}

func TestTaskFromShortRow(t *testing.T) {
	got := TaskFromRow([]string{"Only title"})
	if got.Title != "Only title" || got.Priority != model.Medium || got.Status != model.Unstarted || got.Due.Present() {
		t.Errorf("unexpected task from short row: %+v", got)
	}
}

func TestSetField(t *testing.T) {
	var task model.Task
	if err := SetField(&task, model.ColDueDate, "2024-01-01"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if err := SetField(&task, model.ColNotify, "true"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if !task.Due.Equal(model.NewDate(2024, time.January, 1)) || !task.Notify {
		t.Errorf("unexpected task after SetField: %+v", task)
	}
	if err := SetField(&task, "owner", "x"); err == nil {
		t.Errorf("expected error for unknown column")
	}
}
