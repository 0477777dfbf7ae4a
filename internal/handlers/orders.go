package handlers

import (
	"net/http"

	"github.com/alextreichler/coursehub/internal/service"
)

type OrderHandler struct {
	Orders *service.OrderService
}

// SubmitOrder places a purchase. Buyer details come from the body; price and title
// are always taken from the stored course.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var in service.OrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := h.Orders.PlaceOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) ViewOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
