package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP answers POST /checkout with {url}. A body that is not valid JSON
// is treated as an empty cart.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		utils.MethodNotAllowed(w)
		return
	}

	var req Request
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		if jsonErr := json.Unmarshal(body, &req); jsonErr != nil {
			logger.FromCtx(r.Context()).Debug("unparseable checkout body", zap.Error(jsonErr))
			req = Request{}
		}
	}
	req.Referer = r.Header.Get("Referer")

	res, err := h.svc.CreateSession(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			utils.WriteJSONError(w, "Server misconfigured", http.StatusInternalServerError)
			return
		}
		utils.WriteJSONError(w, clientMessage(err), http.StatusBadRequest)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": res.URL})
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoItems):
		return "No items"
	case errors.Is(err, ErrNoPurchasableItems):
		return "No purchasable items"
	default:
		return err.Error()
	}
}
