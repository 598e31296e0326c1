package product

import (
	"net/http"

	"barboeuf-be/internal/utils"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// List serves GET /products?lang=fr|en.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListAvailable(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		utils.WriteJSONError(w, "failed to load products", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, products)
}
