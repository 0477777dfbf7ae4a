package handlers

import (
	"net/http"
	"strconv"

	"github.com/alextreichler/coursehub/internal/service"
)

// ListOrders pages through the sales ledger. Invalid page and limit values fall back
// to the defaults instead of failing the request.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = service.DefaultOrderPageSize
	}

	result, err := h.Orders.ListOrders(r.Context(), service.OrderFilter{
		BuyerEmail: q.Get("buyer_email"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
