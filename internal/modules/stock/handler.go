package stock

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookpress/backend/internal/apperr"
)

// Handler exposes stock ledger HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{book_id}", h.get)
		r.Post("/{book_id}/restock", h.restock)
		r.Post("/{book_id}/reserve", h.reserve)
		r.Post("/{book_id}/release", h.release)
		r.Delete("/{book_id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, records)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "book_id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.service.Restock(r.Context(), bookID, req.Quantity); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "stock added"})
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.service.Reserve(r.Context(), bookID, req.Quantity); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "stock reserved"})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.service.Release(r.Context(), bookID, req.Quantity); err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "stock released"})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveRecord(r.Context(), chi.URLParam(r, "book_id")); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondErr(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
