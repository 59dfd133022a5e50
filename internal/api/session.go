package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/surprise-core/internal/history"
	"github.com/nerrad567/surprise-core/internal/notify"
	"github.com/nerrad567/surprise-core/internal/session"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Session session.Summary   `json:"session"`
	Timer   string            `json:"timer"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ActionResponse is the body of POST /api/v1/actions/{action}.
type ActionResponse struct {
	Action session.Action `json:"action"`
	State  session.State  `json:"state"`
}

// handleStatus returns the session summary and latest status fields.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	summary := s.controller.Summary()
	resp := StatusResponse{
		Session: summary,
		Timer:   summary.TimerLine(),
	}
	if s.status != nil {
		resp.Fields = s.status.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAction dispatches one operator action to the controller.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	a, err := session.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	state := s.controller.Dispatch(a)
	s.logger.Debug("action dispatched",
		"action", string(a),
		"state", string(state),
		"client", r.Context().Value(ctxKeyClient),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusOK, ActionResponse{Action: a, State: state})
}

// handleListSessions returns a page of finished sessions, most recent first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "session history is disabled")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing sessions failed", "error", err)
		writeInternalError(w, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetSession returns one session with its interval log.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "session history is disabled")
		return
	}

	sess, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeNotFound(w, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("reading session failed", "error", err)
		writeInternalError(w, "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func parseFilter(r *http.Request) (history.Filter, error) {
	var f history.Filter
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("offset must be an integer")
		}
		f.Offset = n
	}
	return f, nil
}

// statusReplay renders the latest status fields as status channel events,
// in field order.
func (s *Server) statusReplay() []any {
	snap := s.status.Snapshot()
	fields := make([]string, 0, len(snap))
	for f := range snap {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	events := make([]any, 0, len(fields))
	for _, f := range fields {
		events = append(events, notify.StatusEvent{Field: f, Value: snap[f]})
	}
	return events
}
