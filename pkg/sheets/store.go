package sheets

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

// DefaultMaxRows is the height of the data range cleared and validated on every save.
const DefaultMaxRows = 1000

// Store is the ledger repository over a spreadsheet grid. Every save is a
// full-range overwrite.
type Store struct {
	grid    Grid
	maxRows int
}

// NewStore creates a Store. maxRows <= 0 selects DefaultMaxRows.
func NewStore(grid Grid, maxRows int) *Store {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Store{grid: grid, maxRows: maxRows}
}

// Load reads the ledger. On failure the returned snapshot is an empty ledger
// so callers stay usable.
func (s *Store) Load(ctx context.Context) (repo.Snapshot, error) {
	tasks, err := s.read(ctx)
	if err != nil {
		return repo.Snapshot{Tasks: []model.Task{}}, err
	}
	return repo.Snapshot{Tasks: tasks, Version: repo.Fingerprint(tasks)}, nil
}

func (s *Store) read(ctx context.Context) ([]model.Task, error) {
	values, err := s.grid.Values(ctx)
	if err != nil {
		return nil, err
	}
	return decode(values), nil
}

// ReplaceAll overwrites the data range with tasks if the sheet is still at expected.
func (s *Store) ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error) {
	current, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	if err := repo.CheckVersion(current, expected); err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(tasks)+1)
	rows = append(rows, model.HeaderRow())
	for _, t := range tasks {
		rows = append(rows, util.TaskToRow(t))
	}

	lastRow := s.maxRows
	if n := len(tasks); n > lastRow {
		lastRow = n
	}
	if m := len(current); m > lastRow {
		lastRow = m
	}
	if err := s.grid.Clear(ctx, 1, lastRow, len(model.Columns)); err != nil {
		return "", err
	}
	if err := s.grid.Write(ctx, 0, rows); err != nil {
		return "", err
	}

	s.applyValidation(ctx, lastRow)
	return repo.Fingerprint(tasks), nil
}

// applyValidation restricts priority and status to their enumerations.
// Failures are logged only.
func (s *Store) applyValidation(ctx context.Context, lastRow int) {
	priorities := make([]string, len(model.Priorities))
	for i, p := range model.Priorities {
		priorities[i] = string(p)
	}
	statuses := make([]string, len(model.Statuses))
	for i, st := range model.Statuses {
		statuses[i] = string(st)
	}
	rules := []struct {
		col     string
		allowed []string
	}{
		{model.ColPriority, priorities},
		{model.ColStatus, statuses},
	}
	for _, r := range rules {
		col := model.ColumnIndex(r.col)
		if err := s.grid.SetValidation(ctx, col, 1, lastRow, r.allowed); err != nil {
			log.Warnf("could not apply %s validation: %v", r.col, err)
		}
	}
}

// Ping reads cell A1 to confirm the spreadsheet is reachable.
func (s *Store) Ping(ctx context.Context) (string, error) {
	return s.grid.Cell(ctx, 0, 0)
}

// decode turns raw sheet values into tasks, repairing schema drift: the
// header is mapped onto canonical columns by label, missing columns read as
// empty, and unknown or transient columns are dropped.
func decode(values [][]string) []model.Task {
	tasks := []model.Task{}
	if len(values) == 0 {
		return tasks
	}

	index, ok := headerIndex(values[0])
	body := values[1:]
	if !ok {
		log.Debugf("no recognizable header, reading columns by position")
		index = make([]int, len(model.Columns))
		for i := range index {
			index[i] = i
		}
		if !looksLikeHeader(values[0]) {
			body = values
		}
	}

	for _, raw := range body {
		if blank(raw) {
			continue
		}
		row := make([]string, len(model.Columns))
		for i, src := range index {
			if src >= 0 && src < len(raw) {
				row[i] = raw[src]
			}
		}
		tasks = append(tasks, util.TaskFromRow(row))
	}
	return tasks
}

// headerIndex maps each canonical column to its position in header, -1 when
// missing. ok is false when no canonical column is recognized.
func headerIndex(header []string) ([]int, bool) {
	positions := make(map[string]int, len(header))
	for i, label := range header {
		key := columnKey(label)
		if key == "" || model.IsTransient(key) {
			continue
		}
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}
	index := make([]int, len(model.Columns))
	found := false
	for i, c := range model.Columns {
		pos, ok := positions[c]
		if !ok {
			index[i] = -1
			continue
		}
		index[i] = pos
		found = true
	}
	if found {
		for i, c := range model.Columns {
			if index[i] < 0 {
				log.Debugf("column %s missing from sheet, synthesizing empty values", c)
			}
		}
	}
	return index, found
}

// columnKey resolves a header label to a column key, accepting the canonical
// labels and keys in any case or spacing.
func columnKey(label string) string {
	norm := squash(label)
	if norm == "" {
		return ""
	}
	for key, h := range model.Headers {
		if norm == squash(key) || norm == squash(h) {
			return key
		}
	}
	return ""
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// looksLikeHeader reports whether an unrecognized first row still names a
// known column label, as a header holding only the transient columns does.
// Anything else is kept as data so a save never writes over it.
func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		if columnKey(cell) != "" {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var _ repo.Repository = (*Store)(nil)
