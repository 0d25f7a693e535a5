package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

// View is a filtered partition of the ledger shown as one table.
type View string

const (
	ViewAll  View = "all"
	ViewOpen View = "open"
	ViewDone View = "done"
)

// ParseView resolves a view name, defaulting to ViewAll.
func ParseView(name string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(name))) {
	case "", ViewAll:
		return ViewAll, nil
	case ViewOpen:
		return ViewOpen, nil
	case ViewDone:
		return ViewDone, nil
	}
	return "", fmt.Errorf("unknown view %q", name)
}

func (v View) includes(t model.Task) bool {
	switch v {
	case ViewOpen:
		return !t.IsDone()
	case ViewDone:
		return t.IsDone()
	}
	return true
}

// Row is one displayed table row and the ledger position it came from.
type Row struct {
	Index    int        `json:"index"`
	Position int        `json:"position"`
	Task     model.Task `json:"task"`
	Delete   bool       `json:"delete"`
	Notify   bool       `json:"notify"`
}

// Render returns the rows of a view and remembers which ledger position each
// display index was sourced from, for translating later edit deltas.
func (s *Session) Render(v View) []Row {
	rows := []Row{}
	var positions []int
	for pos, t := range s.tasks {
		if !v.includes(t) {
			continue
		}
		rows = append(rows, Row{
			Index:    len(rows),
			Position: pos,
			Task:     t,
			Delete:   t.Delete,
			Notify:   t.Notify,
		})
		positions = append(positions, pos)
	}
	s.views[v] = positions
	return rows
}

// CellEdit is one column write against a display row.
type CellEdit struct {
	Row    int
	Column string
	Value  string
}

// DeltaFromMap flattens a table widget's {row: {column: value}} edits into a
// deterministic sequence: ascending row, then canonical column order.
func DeltaFromMap(edited map[int]map[string]string) []CellEdit {
	rows := make([]int, 0, len(edited))
	for r := range edited {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	order := append(append([]string(nil), model.Columns...), model.TransientColumns...)
	var delta []CellEdit
	for _, r := range rows {
		cols := edited[r]
		seen := make(map[string]bool, len(cols))
		for _, c := range order {
			if v, ok := cols[c]; ok {
				delta = append(delta, CellEdit{Row: r, Column: c, Value: v})
				seen[c] = true
			}
		}
		// unknown columns are kept so ApplyDelta can reject the batch
		var rest []string
		for c := range cols {
			if !seen[c] {
				rest = append(rest, c)
			}
		}
		sort.Strings(rest)
		for _, c := range rest {
			delta = append(delta, CellEdit{Row: r, Column: c, Value: cols[c]})
		}
	}
	return delta
}

// ApplyDelta applies cell edits made against a rendered view, then saves.
// Edits are applied in order, so a later write to the same cell wins. The
// whole batch is rejected if any edit is invalid.
func (s *Session) ApplyDelta(ctx context.Context, v View, delta []CellEdit) error {
	positions, ok := s.views[v]
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotRendered, v)
	}
	if len(delta) == 0 {
		return nil
	}

	next := s.Tasks()
	for _, e := range delta {
		if e.Row < 0 || e.Row >= len(positions) {
			return fmt.Errorf("%w: %d", ErrRowOutOfRange, e.Row)
		}
		if !util.IsKnownColumn(e.Column) {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
		}
		pos := positions[e.Row]
		if err := util.SetField(&next[pos], e.Column, e.Value); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
		}
	}
	for _, e := range delta {
		if e.Column == model.ColTitle && strings.TrimSpace(next[positions[e.Row]].Title) == "" {
			return ErrEmptyTitle
		}
	}
	return s.commit(ctx, next)
}
