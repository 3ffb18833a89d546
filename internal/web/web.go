package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"calgrid/internal/config"
	"calgrid/internal/days"
	"calgrid/internal/drag"
	"calgrid/internal/i18n"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/store"
	"calgrid/internal/ticker"
)

// Server exposes the event store and its computed layout as JSON so an
// external renderer can draw the calendar.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	nowLine *ticker.NowLine
	tr      *i18n.Translator
	mux     *http.ServeMux

	// ctrl applies drops and clicks with the configured gating. A Controller
	// is single-owner, so every request takes ctrlMu.
	ctrlMu sync.Mutex
	ctrl   *drag.Controller

	// now is swapped in tests.
	now func() time.Time
}

// NewServer constructs a Server. nowLine may be nil, in which case /api/now
// computes the marker on demand.
func NewServer(cfg *config.Config, st *store.Store, nowLine *ticker.NowLine) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		nowLine: nowLine,
		tr:      i18n.New(cfg.Locale),
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	dc := cfg.DragConfig()
	dc.Translator = s.tr
	dc.Now = func() time.Time { return s.now() }
	s.ctrl = drag.New(st, dc, drag.Callbacks{
		OnDateChange: func(c drag.DateChange) {
			appLog.Info("event moved", "id", c.ID, "start", c.Start, "end", c.End, "all_day", c.AllDay)
		},
		OnCreated: func(ev model.Event) {
			appLog.Info("event created", "id", ev.ID, "start", ev.Start)
		},
	})
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("PUT /api/events/{id}/dates", s.handleChangeDates)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/days/{date}/click", s.handleClick)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/now", s.handleNow)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type eventsResponse struct {
	Events   []model.Event `json:"events"`
	From     string        `json:"from"`
	Days     int           `json:"days"`
	TimeZone string        `json:"timezone"`
}

// handleEvents lists events touching a range of days.
//
// GET /api/events?from=2025-06-02&days=7
//   - from: first day (default today)
//   - days: number of days (default 7, max 366)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.store.Location()

	from, err := s.parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	n := parseIntDefault(q.Get("days"), 7)
	if n <= 0 || n > 366 {
		n = 7
	}

	seen := make(map[string]bool)
	out := make([]model.Event, 0)
	for d := 0; d < n; d++ {
		for _, ev := range s.store.EventsOn(from.AddDate(0, 0, d)) {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:   out,
		From:     days.Key(from),
		Days:     n,
		TimeZone: loc.String(),
	})
}

type datesRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

// handleChangeDates commits a move computed by an external drag surface. It
// goes through the drag controller so the drag toggle and the business-hours
// block apply exactly as they do for an in-process drop.
func (s *Server) handleChangeDates(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req datesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.ctrlMu.Lock()
	_, err := s.ctrl.Commit(drag.DateChange{ID: id, Start: req.Start, End: req.End, AllDay: req.AllDay})
	s.ctrlMu.Unlock()

	switch {
	case errors.Is(err, store.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, drag.ErrDraggingDisabled):
		writeError(w, http.StatusForbidden, "dragging is disabled for this event")
	case errors.Is(err, drag.ErrBlocked):
		writeError(w, http.StatusConflict, "placement is outside business hours")
	case errors.Is(err, store.ErrInvalidEvent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		appLog.Error("api change dates failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to change dates")
	default:
		ev, _ := s.store.Get(id)
		writeJSON(w, http.StatusOK, ev)
	}
}

// handleClick creates an event at a clicked position of a day cell.
//
// POST /api/days/2025-06-02/click?offset=240
//   - offset: pixel offset from the top of the day cell
//
// Responds 201 with the created event, or 204 when click-to-create is off.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	day, err := s.parseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	offset, err := strconv.ParseFloat(r.URL.Query().Get("offset"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	s.ctrlMu.Lock()
	ev, ok := s.ctrl.Click(day, offset)
	s.ctrlMu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Remove(id); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLayout renders the layout of the view containing date.
//
// GET /api/layout?date=2025-06-02&view=week&mode=overlapping
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := s.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	req := LayoutRequest{Date: date}
	if v := q.Get("view"); v != "" {
		req.View = model.ParseViewKind(v)
		req.ViewSet = true
	}
	if v := q.Get("mode"); v != "" {
		req.Mode = model.ParseDisplayMode(v)
		req.ModeSet = true
	}
	writeJSON(w, http.StatusOK, BuildLayout(s.cfg, s.store, s.tr, req, s.now()))
}

type nowResponse struct {
	Time   time.Time `json:"time"`
	Today  string    `json:"today"`
	Top    float64   `json:"top"`
	Hidden bool      `json:"hidden"`
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	loc := s.store.Location()
	if s.nowLine != nil {
		if m, at := s.nowLine.Current(); !at.IsZero() {
			at = at.In(loc)
			writeJSON(w, http.StatusOK, nowResponse{Time: at, Today: days.Key(at), Top: m.Top, Hidden: !m.Visible})
			return
		}
	}
	now := s.now().In(loc)
	m := ticker.NewNowLine(s.cfg.Grid()).Update(now)
	writeJSON(w, http.StatusOK, nowResponse{Time: now, Today: days.Key(now), Top: m.Top, Hidden: !m.Visible})
}

// parseDate reads a YYYY-MM-DD day in the store's zone; empty means today.
func (s *Server) parseDate(v string) (time.Time, error) {
	loc := s.store.Location()
	if v == "" {
		return days.Start(s.now().In(loc)), nil
	}
	return days.ParseKey(v, loc)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
