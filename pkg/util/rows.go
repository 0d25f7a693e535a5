package util

import (
	"fmt"

	"github.com/harrisonrobin/tasksheet/pkg/model"
)

// TaskFromRow converts a canonical-order row into a task. Short rows are
// padded with empty cells; transient flags always come back false.
func TaskFromRow(row []string) model.Task {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	t := model.Task{
		Title:     cell(0),
		Details:   cell(1),
		Requester: cell(2),
		Assignees: [3]string{cell(3), cell(4), cell(5)},
		Priority:  ParsePriority(cell(6)),
		Status:    ParseStatus(cell(7)),
		Due:       ParseDate(cell(8)),
		Completed: ParseDate(cell(9)),
		Remarks:   cell(10),
	}
	return Normalize(t)
}

// TaskToRow converts a task into a canonical-order row without transient columns.
func TaskToRow(t model.Task) []string {
	t = Normalize(t)
	return []string{
		t.Title,
		t.Details,
		t.Requester,
		t.Assignees[0],
		t.Assignees[1],
		t.Assignees[2],
		string(t.Priority),
		string(t.Status),
		FormatDate(t.Due),
		FormatDate(t.Completed),
		t.Remarks,
	}
}

// SetField writes a raw cell value into the named column of t, including the
// transient delete/notify columns.
func SetField(t *model.Task, column, value string) error {
	switch column {
	case model.ColTitle:
		t.Title = value
	case model.ColDetails:
		t.Details = value
	case model.ColRequester:
		t.Requester = value
	case model.ColAssignee1:
		t.Assignees[0] = value
	case model.ColAssignee2:
		t.Assignees[1] = value
	case model.ColAssignee3:
		t.Assignees[2] = value
	case model.ColPriority:
		t.Priority = ParsePriority(value)
	case model.ColStatus:
		t.Status = ParseStatus(value)
	case model.ColDueDate:
		t.Due = ParseDate(value)
	case model.ColCompletion:
		t.Completed = ParseDate(value)
	case model.ColRemarks:
		t.Remarks = value
	case model.ColDelete:
		t.Delete = ParseBoolFlag(value)
	case model.ColNotify:
		t.Notify = ParseBoolFlag(value)
	default:
		return fmt.Errorf("unknown column %q", column)
	}
	return nil
}

// IsKnownColumn reports whether SetField accepts column.
func IsKnownColumn(column string) bool {
	return model.ColumnIndex(column) >= 0 || model.IsTransient(column)
}
