package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/stillcap/internal/adapters/repository"
	"github.com/okian/stillcap/internal/domain/model"
)

type captureList struct {
	Count  int           `json:"count"`
	Frames []model.Frame `json:"frames"`
}

// CapturesHandler serves the frames captured in the current session.
type CapturesHandler struct {
	frames FrameStore
}

// NewCapturesHandler creates a new captures handler.
func NewCapturesHandler(frames FrameStore) *CapturesHandler {
	return &CapturesHandler{frames: frames}
}

// HandleList handles GET /captures.
func (h *CapturesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	frames := h.frames.List(r.Context())
	writeJSON(w, http.StatusOK, captureList{Count: len(frames), Frames: frames})
}

// HandleGet handles GET /captures/{id} and returns the raw frame bytes.
func (h *CapturesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, ErrBadRequest)
		return
	}
	f, err := h.frames.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
