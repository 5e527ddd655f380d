package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fathy2028/marketco/internal/httpx"
)

// Handler exposes the order coordinator over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register mounts the order routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/orders", h.ordersHandler)
	mux.HandleFunc("/orders/", h.orderByIDHandler)
}

// POST /orders (create); GET /orders (list, ?user_id= & ?status=)
func (h *Handler) ordersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "bad request", err.Error(), "order-service")
			return
		}
		o, err := h.svc.Create(r.Context(), req)
		if err != nil {
			h.writeError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, o)
	case http.MethodGet:
		var f Filter
		if v := r.URL.Query().Get("user_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, "bad request", "user_id must be an integer", "order-service")
				return
			}
			f.UserID = id
		}
		if v := r.URL.Query().Get("status"); v != "" {
			st, err := ParseStatus(v)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, "bad request", err.Error(), "order-service")
				return
			}
			f.Status = st
		}
		list, err := h.svc.List(r.Context(), f)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if list == nil {
			list = []*Order{}
		}
		httpx.JSON(w, http.StatusOK, list)
	default:
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed", "", "order-service")
	}
}

// GET /orders/count ; GET /orders/{id} ; PUT /orders/{id}/status ;
// POST /orders/{id}/cancel
func (h *Handler) orderByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/orders/")

	if rest == "count" && r.Method == http.MethodGet {
		h.countHandler(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/status"); ok && r.Method == http.MethodPut {
		h.statusHandler(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/cancel"); ok && r.Method == http.MethodPost {
		h.cancelHandler(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed", "", "order-service")
		return
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "order not found", "", "order-service")
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) countHandler(w http.ResponseWriter, r *http.Request) {
	st, err := ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "bad request", err.Error(), "order-service")
		return
	}
	n, err := h.svc.CountByStatus(r.Context(), st)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": st, "count": n})
}

func (h *Handler) statusHandler(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "order not found", "", "order-service")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.Error(w, http.StatusBadRequest, "bad request", err.Error(), "order-service")
		return
	}
	st, err := ParseStatus(body.Status)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "bad request", err.Error(), "order-service")
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), id, st)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) cancelHandler(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "order not found", "", "order-service")
		return
	}
	o, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.Error(w, http.StatusBadRequest, "invalid request", err.Error(), "order-service")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Error(w, http.StatusBadRequest, "invalid transition", err.Error(), "order-service")
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "order not found", "", "order-service")
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error", "", "order-service")
	}
}
