// Package server exposes one ledger session over a small JSON API.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/alert"
	"github.com/harrisonrobin/tasksheet/pkg/export"
	"github.com/harrisonrobin/tasksheet/pkg/ledger"
	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/notify"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
	"github.com/harrisonrobin/tasksheet/pkg/util"
)

// Pinger checks the store connection and names what it reached.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Server serializes every request through the single session it owns.
type Server struct {
	mu         sync.Mutex
	session    *ledger.Session
	dispatcher *notify.Dispatcher
	pinger     Pinger
	timeout    time.Duration
}

// New creates a server for session. dispatcher and pinger may be nil, which
// disables the endpoints that need them.
func New(session *ledger.Session, dispatcher *notify.Dispatcher, pinger Pinger, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{session: session, dispatcher: dispatcher, pinger: pinger, timeout: timeout}
}

// Register wires up all API routes on the provided Echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/api/tasks", s.getTasks)
	e.POST("/api/tasks", s.postTask)
	e.POST("/api/tasks/bulk-delete", s.bulkDelete)
	e.PUT("/api/edit-target", s.putEditTarget)
	e.DELETE("/api/edit-target", s.deleteEditTarget)
	e.PATCH("/api/views/:view", s.patchView)
	e.POST("/api/reload", s.reload)
	e.GET("/api/alerts", s.getAlerts)
	e.POST("/api/notify", s.postNotify)
	e.GET("/api/export.csv", s.exportCSV)
	e.GET("/api/health/store", s.healthStore)
}

type errorResponse struct {
	Error string `json:"error"`
}

type viewResponse struct {
	View       ledger.View  `json:"view"`
	Version    string       `json:"version"`
	EditTarget *int         `json:"editTarget,omitempty"`
	Rows       []ledger.Row `json:"rows"`
}

// taskForm is the submit body. Dates arrive as free text and go through the
// field normalizer, so an unreadable date becomes absent instead of an error.
type taskForm struct {
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	Requester string    `json:"requester"`
	Assignees [3]string `json:"assignees"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	Due       string    `json:"due_date"`
	Completed string    `json:"completion_date"`
	Remarks   string    `json:"remarks"`
}

func (f taskForm) task() model.Task {
	return model.Task{
		Title:     f.Title,
		Details:   f.Details,
		Requester: f.Requester,
		Assignees: f.Assignees,
		Priority:  util.ParsePriority(f.Priority),
		Status:    util.ParseStatus(f.Status),
		Due:       util.ParseDate(f.Due),
		Completed: util.ParseDate(f.Completed),
		Remarks:   f.Remarks,
	}
}

type editTargetRequest struct {
	Position *int `json:"position"`
}

type notifyRequest struct {
	Addressee string `json:"addressee"`
}

type bulkDeleteResponse struct {
	Removed int    `json:"removed"`
	Version string `json:"version"`
}

type alertsResponse struct {
	Today  model.Date    `json:"today"`
	Alerts []alert.Alert `json:"alerts"`
}

func (s *Server) withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.timeout)
}

// fail maps err onto a status: bad input 400, a lost race with another
// writer 409, and store or transport failures 502.
func fail(c echo.Context, err error) error {
	status := http.StatusBadGateway
	switch {
	case ledger.IsValidation(err), errors.Is(err, notify.ErrUnknownRecipient):
		status = http.StatusBadRequest
	case errors.Is(err, repo.ErrStaleWrite):
		status = http.StatusConflict
	case errors.Is(err, notify.ErrNothingToSend):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusBadGateway {
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func decode(c echo.Context, v any) error {
	return c.Echo().JSONSerializer.Deserialize(c, v)
}

// render must be called with s.mu held.
func (s *Server) render(v ledger.View) viewResponse {
	resp := viewResponse{View: v, Version: s.session.Version(), Rows: s.session.Render(v)}
	if pos, ok := s.session.EditTarget(); ok {
		resp.EditTarget = &pos
	}
	return resp
}

func (s *Server) getTasks(c echo.Context) error {
	v, err := ledger.ParseView(c.QueryParam("view"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.render(v))
}

func (s *Server) postTask(c echo.Context) error {
	var body taskForm
	if err := decode(c, &body); err != nil {
		return badRequest(c, "invalid task")
	}
	form := body.task()

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	if err := s.session.Submit(ctx, form); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.render(ledger.ViewAll))
}

func (s *Server) putEditTarget(c echo.Context) error {
	var req editTargetRequest
	if err := decode(c, &req); err != nil || req.Position == nil {
		return badRequest(c, "position is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.SetEditTarget(*req.Position); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteEditTarget(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.ClearEditTarget()
	return c.NoContent(http.StatusNoContent)
}

// patchView applies an edit delta keyed by display row index, e.g.
// {"0": {"status": "Done"}}, against the last render of the view.
func (s *Server) patchView(c echo.Context) error {
	v, err := ledger.ParseView(c.Param("view"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	var body map[string]map[string]string
	if err := decode(c, &body); err != nil {
		return badRequest(c, "invalid delta")
	}
	edited := make(map[int]map[string]string, len(body))
	for key, cells := range body {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return badRequest(c, "invalid row index "+strconv.Quote(key))
		}
		edited[idx] = cells
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	if err := s.session.ApplyDelta(ctx, v, ledger.DeltaFromMap(edited)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.render(v))
}

func (s *Server) bulkDelete(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	removed, err := s.session.BulkDelete(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bulkDeleteResponse{Removed: removed, Version: s.session.Version()})
}

func (s *Server) reload(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	if err := s.session.Reload(ctx); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.render(ledger.ViewAll))
}

func (s *Server) getAlerts(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := s.session.Today()
	return c.JSON(http.StatusOK, alertsResponse{Today: today, Alerts: alert.Alertable(s.session.Tasks(), today)})
}

func (s *Server) postNotify(c echo.Context) error {
	if s.dispatcher == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "notifications are not configured"})
	}
	var req notifyRequest
	if err := decode(c, &req); err != nil || req.Addressee == "" {
		return badRequest(c, "addressee is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	res, err := s.dispatcher.Dispatch(ctx, s.session, req.Addressee)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) exportCSV(c echo.Context) error {
	s.mu.Lock()
	tasks := s.session.Tasks()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, tasks); err != nil {
		log.Errorf("export csv: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) healthStore(c echo.Context) error {
	if s.pinger == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "store check unavailable"})
	}
	ctx, cancel := s.withTimeout(c)
	defer cancel()
	name, err := s.pinger.Ping(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "store": name})
}
