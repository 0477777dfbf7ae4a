package handlers

import (
	"net/http"
)

type HealthHandler struct {
	Store Pinger
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
