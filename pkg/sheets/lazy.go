package sheets

import (
	"context"
	"sync"
)

// OpenFunc resolves the Grid a LazyGrid forwards to.
type OpenFunc func(ctx context.Context) (Grid, error)

// LazyGrid defers opening the spreadsheet until the first call that needs
// it. A failed open is returned to that caller and retried on the next one,
// so an unreachable spreadsheet at startup only fails reads and writes.
type LazyGrid struct {
	open OpenFunc

	mu   sync.Mutex
	grid Grid
}

// NewLazyGrid returns a Grid that calls open on first use.
func NewLazyGrid(open OpenFunc) *LazyGrid {
	return &LazyGrid{open: open}
}

func (l *LazyGrid) resolve(ctx context.Context) (Grid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.grid != nil {
		return l.grid, nil
	}
	g, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.grid = g
	return g, nil
}

func (l *LazyGrid) Values(ctx context.Context) ([][]string, error) {
	g, err := l.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return g.Values(ctx)
}

func (l *LazyGrid) Cell(ctx context.Context, row, col int) (string, error) {
	g, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	return g.Cell(ctx, row, col)
}

func (l *LazyGrid) Clear(ctx context.Context, firstRow, lastRow, cols int) error {
	g, err := l.resolve(ctx)
	if err != nil {
		return err
	}
	return g.Clear(ctx, firstRow, lastRow, cols)
}

func (l *LazyGrid) Write(ctx context.Context, firstRow int, rows [][]string) error {
	g, err := l.resolve(ctx)
	if err != nil {
		return err
	}
	return g.Write(ctx, firstRow, rows)
}

func (l *LazyGrid) SetValidation(ctx context.Context, col, firstRow, lastRow int, allowed []string) error {
	g, err := l.resolve(ctx)
	if err != nil {
		return err
	}
	return g.SetValidation(ctx, col, firstRow, lastRow, allowed)
}
