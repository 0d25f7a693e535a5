package model

// Column keys in canonical store order. The store range is keyed by position, so
// the order of Columns is the wire format.
const (
	ColTitle      = "title"
	ColDetails    = "details"
	ColRequester  = "requester"
	ColAssignee1  = "assignee1"
	ColAssignee2  = "assignee2"
	ColAssignee3  = "assignee3"
	ColPriority   = "priority"
	ColStatus     = "status"
	ColDueDate    = "due_date"
	ColCompletion = "completion_date"
	ColRemarks    = "remarks"

	ColDelete = "delete"
	ColNotify = "notify"
)

var Columns = []string{
	ColTitle, ColDetails, ColRequester,
	ColAssignee1, ColAssignee2, ColAssignee3,
	ColPriority, ColStatus, ColDueDate, ColCompletion, ColRemarks,
}

// TransientColumns exist only in the interactive table.
var TransientColumns = []string{ColDelete, ColNotify}

// Headers are the labels written to the store's header row and the CSV export.
var Headers = map[string]string{
	ColTitle:      "Title",
	ColDetails:    "Details",
	ColRequester:  "Requester",
	ColAssignee1:  "Assignee 1",
	ColAssignee2:  "Assignee 2",
	ColAssignee3:  "Assignee 3",
	ColPriority:   "Priority",
	ColStatus:     "Status",
	ColDueDate:    "Due Date",
	ColCompletion: "Completion Date",
	ColRemarks:    "Remarks",
	ColDelete:     "Delete",
	ColNotify:     "Notify",
}

// HeaderRow returns the canonical header labels in column order.
func HeaderRow() []string {
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = Headers[c]
	}
	return row
}

// ColumnIndex returns the canonical position of a column key, or -1.
func ColumnIndex(key string) int {
	for i, c := range Columns {
		if c == key {
			return i
		}
	}
	return -1
}

// IsTransient reports whether key names a UI-only column.
func IsTransient(key string) bool {
	return key == ColDelete || key == ColNotify
}
