// Package ledger reconciles interactive edits into the task ledger. A Session
// owns the in-memory ledger for one interactive session; every accepted
// mutation ends in a full save through the session's repository.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

var (
	ErrEmptyTitle      = errors.New("title is required")
	ErrInvalidPosition = errors.New("no task at that position")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrRowOutOfRange   = errors.New("row is not part of the rendered view")
	ErrViewNotRendered = errors.New("view has not been rendered")
)

// IsValidation reports whether err is a user input error rather than a store failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrRowOutOfRange) ||
		errors.Is(err, ErrViewNotRendered)
}

// Session is the per-session context: the ledger, the version it was loaded
// at, the form's edit target, and the row positions captured by each render.
// A Session is not safe for concurrent use.
type Session struct {
	repo    repo.Repository
	tasks   []model.Task
	version string
	target  int
	views   map[View][]int
	now     func() time.Time
}

type Option func(*Session)

// WithClock overrides the session clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Open loads the ledger from r. When loading fails the session still comes
// back usable, holding an empty ledger, together with the load error.
func Open(ctx context.Context, r repo.Repository, opts ...Option) (*Session, error) {
	s := &Session{
		repo:   r,
		tasks:  []model.Task{},
		target: -1,
		views:  make(map[View][]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, s.Reload(ctx)
}

// Reload replaces the in-memory ledger with the store's copy.
func (s *Session) Reload(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		log.Warnf("could not load ledger: %v", err)
		return fmt.Errorf("load ledger: %w", err)
	}
	tasks := snap.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	for i := range tasks {
		tasks[i] = util.Normalize(tasks[i])
		tasks[i].ClearFlags()
	}
	s.tasks = tasks
	s.version = snap.Version
	s.target = -1
	s.views = make(map[View][]int)
	return nil
}

// Tasks returns a copy of the ledger in canonical order.
func (s *Session) Tasks() []model.Task {
	return append([]model.Task(nil), s.tasks...)
}

func (s *Session) Len() int {
	return len(s.tasks)
}

// Version is the store version the ledger was last loaded or saved at.
func (s *Session) Version() string {
	return s.version
}

// Today returns the session's current calendar date.
func (s *Session) Today() model.Date {
	return model.DateOf(s.now())
}

// SetEditTarget designates the record the next form submit replaces.
func (s *Session) SetEditTarget(pos int) error {
	if pos < 0 || pos >= len(s.tasks) {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	s.target = pos
	return nil
}

func (s *Session) ClearEditTarget() {
	s.target = -1
}

// EditTarget returns the designated position, if any.
func (s *Session) EditTarget() (int, bool) {
	return s.target, s.target >= 0
}

// Submit validates a form and either replaces the edit target or appends.
func (s *Session) Submit(ctx context.Context, form model.Task) error {
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		return ErrEmptyTitle
	}
	form.ClearFlags()

	next := s.Tasks()
	if s.target >= 0 && s.target < len(next) {
		next[s.target] = form
	} else {
		next = append(next, form)
	}
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.target = -1
	return nil
}

// BulkDelete removes every task flagged for deletion and returns how many
// were removed. Nothing is saved when no task is flagged.
func (s *Session) BulkDelete(ctx context.Context) (int, error) {
	next := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.Delete {
			continue
		}
		t.ClearFlags()
		next = append(next, t)
	}
	removed := len(s.tasks) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	s.target = -1
	return removed, nil
}

// FlagForNotify sets the notify flag on the given positions without saving.
func (s *Session) FlagForNotify(positions []int) error {
	for _, p := range positions {
		if p < 0 || p >= len(s.tasks) {
			return fmt.Errorf("%w: %d", ErrInvalidPosition, p)
		}
	}
	for _, p := range positions {
		s.tasks[p].Notify = true
	}
	return nil
}

// ClearNotifyFlags resets the notify flag on the given positions. Flags are
// transient, so nothing is saved.
func (s *Session) ClearNotifyFlags(positions []int) {
	for _, p := range positions {
		if p >= 0 && p < len(s.tasks) {
			s.tasks[p].Notify = false
		}
	}
}

// commit normalizes next, saves it, and only then makes it the session's
// ledger. On failure the session is left untouched.
func (s *Session) commit(ctx context.Context, next []model.Task) error {
	util.NormalizeAll(next)
	version, err := s.repo.ReplaceAll(ctx, next, s.version)
	if err != nil {
		log.Warnf("could not save ledger: %v", err)
		return fmt.Errorf("save ledger: %w", err)
	}
	s.tasks = next
	s.version = version
	s.views = make(map[View][]int)
	log.Debugf("saved ledger with %d tasks", len(next))
	return nil
}
