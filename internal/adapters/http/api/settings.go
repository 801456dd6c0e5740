package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/stillcap/internal/domain/model"
)

const maxSettingsBody = 4 << 10

// settingsPatch is a partial update; absent fields keep their value.
type settingsPatch struct {
	Threshold   *float64 `json:"threshold"`
	CooldownMs  *int64   `json:"cooldown_ms"`
	TargetCount *int     `json:"target_count"`
}

func (p settingsPatch) apply(s *model.Settings) {
	if p.Threshold != nil {
		s.Threshold = *p.Threshold
	}
	if p.CooldownMs != nil {
		s.CooldownMs = *p.CooldownMs
	}
	if p.TargetCount != nil {
		s.TargetCount = *p.TargetCount
	}
}

// SettingsHandler reads and updates the gate settings at runtime.
type SettingsHandler struct {
	session SessionController
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(s SessionController) *SettingsHandler {
	return &SettingsHandler{session: s}
}

// HandleGet handles GET /settings.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Settings())
}

// HandlePut handles PUT /settings. Changes apply from the next frame.
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var p settingsPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	var applied model.Settings
	err := h.session.Patch(func(s *model.Settings) {
		p.apply(s)
		applied = *s
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, codeInvalidSettings, err)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}
