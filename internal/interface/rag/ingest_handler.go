package rag

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const maxUploadMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// UploadDocument handles a multipart file upload and enqueues processing.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to parse multipart form", err))
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "file is required", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
		return
	}
	doc, err := h.ingest.UploadDocument(r.Context(), workspaceID, actorFromContext(r.Context()), rag.UploadRequest{
		FileName: fileHeader.Filename,
		Title:    r.FormValue("title"),
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  data,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, doc)
}

type ingestTextPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// IngestText ingests submitted text synchronously, without the
// storage/queue hop UploadDocument uses.
func (h *Handler) IngestText(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	var payload ingestTextPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	doc, err := h.ingest.IngestText(r.Context(), workspaceID, actorFromContext(r.Context()), payload.Title, payload.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, doc)
}

// ReprocessDocument resets a failed or ready document back to PENDING and
// re-enqueues it.
func (h *Handler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	workspaceID, docID, ok := parseWorkspaceAndDocument(w, h, r)
	if !ok {
		return
	}
	if err := h.ingest.ReprocessDocument(r.Context(), workspaceID, docID, actorFromContext(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, nil)
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

// CancelDocument aborts a document stuck in PROCESSING.
func (h *Handler) CancelDocument(w http.ResponseWriter, r *http.Request) {
	workspaceID, docID, ok := parseWorkspaceAndDocument(w, h, r)
	if !ok {
		return
	}
	var payload cancelPayload
	_ = decodeJSON(r, &payload)
	if err := h.ingest.CancelDocument(r.Context(), workspaceID, docID, actorFromContext(r.Context()), payload.Reason); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusNoContent, nil)
}

func parseWorkspaceAndDocument(w http.ResponseWriter, h *Handler, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return uuid.Nil, uuid.Nil, false
	}
	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid document id", err))
		return uuid.Nil, uuid.Nil, false
	}
	return workspaceID, docID, true
}
