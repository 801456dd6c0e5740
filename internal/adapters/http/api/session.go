package api

import (
	"errors"
	"net/http"

	"github.com/okian/stillcap/internal/domain/model"
	"github.com/okian/stillcap/internal/domain/session"
	"github.com/okian/stillcap/internal/domain/startup"
	"github.com/okian/stillcap/pkg/logger"
)

type startupFailure struct {
	Reason  startup.Reason `json:"reason"`
	Message string         `json:"message"`
}

type sessionStatus struct {
	SessionID string             `json:"session_id,omitempty"`
	State     model.SessionState `json:"state"`
	Stats     model.SessionStats `json:"stats"`
	Settings  model.Settings     `json:"settings"`
	Scorer    string             `json:"scorer,omitempty"`
	LastError *startupFailure    `json:"last_error,omitempty"`
}

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	session SessionController
	scorer  string
	logger  logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(s SessionController, scorerVersion string, l logger.Logger) *SessionHandler {
	return &SessionHandler{session: s, scorer: scorerVersion, logger: l}
}

// HandleStatus handles GET /session requests.
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// HandleStart handles POST /session/start. It returns once the startup
// checks finished; a client disconnect cancels the pending start.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	err := h.session.Start(r.Context())
	var serr *startup.Error
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.status())
	case errors.Is(err, session.ErrSessionActive):
		writeError(w, http.StatusConflict, codeSessionActive, err)
	case errors.As(err, &serr):
		writeError(w, http.StatusServiceUnavailable, string(serr.Reason), serr.Err)
	default:
		h.logger.Error(r.Context(), "session start failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, err)
	}
}

// HandleStop handles POST /session/stop.
func (h *SessionHandler) HandleStop(w http.ResponseWriter, _ *http.Request) {
	if err := h.session.Stop(); err != nil {
		if errors.Is(err, session.ErrNotCapturing) {
			writeError(w, http.StatusConflict, codeNotCapturing, err)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

func (h *SessionHandler) status() sessionStatus {
	st := sessionStatus{
		SessionID: h.session.SessionID(),
		State:     h.session.State(),
		Stats:     h.session.Stats(),
		Settings:  h.session.Settings(),
		Scorer:    h.scorer,
	}
	if err := h.session.LastError(); err != nil {
		se := startup.AsError(err)
		st.LastError = &startupFailure{Reason: se.Reason, Message: se.Err.Error()}
	}
	return st
}
