package bulk

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookpress/backend/internal/apperr"
	"github.com/bookpress/backend/internal/auth"
)

// maxUploadBytes caps the size of an uploaded sheet.
const maxUploadBytes = 10 << 20

// Handler exposes the bulk order import endpoint.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/orders/bulk", h.ingest)
}

// ingest accepts a multipart upload with the sheet in the "file" field.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "missing file upload"})
		return
	}
	defer file.Close()

	rows, err := ParseCSV(file)
	if err != nil {
		respondErr(w, err)
		return
	}

	result, err := h.service.Ingest(r.Context(), rows, auth.ActorID(r.Context()))
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]interface{}{
			"success": false,
			"result":  result,
			"error":   err.Error(),
			"message": "Import failed, all created orders were rolled back",
		})
		return
	}

	switch {
	case len(result.Created) == 0:
		respond(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"result":  result,
			"message": "No orders could be created from the sheet",
		})
	case len(result.Failed) > 0:
		respond(w, http.StatusMultiStatus, map[string]interface{}{
			"success": true,
			"result":  result,
			"message": "Import completed with some rejected rows",
		})
	default:
		respond(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"result":  result,
			"message": "All orders created successfully",
		})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondErr(w http.ResponseWriter, err error) {
	respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
