package handlers

import (
	"net/http"

	"github.com/alextreichler/coursehub/internal/service"
)

type AdminHandler struct {
	Summary *service.SummaryService
	Orders  *service.OrderService
}

// Dashboard reports catalog and sales totals, recomputed on every request.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Summary.GetSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
