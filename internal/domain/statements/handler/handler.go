// Package handler exposes the statement-processing pipeline over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/officekit/mailroom/internal/domain/statements"
)

// Upload field names expected in the multipart form.
const (
	pdfField   = "pdf_file"
	excelField = "excel_file"
)

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// StatementsHandler serves the processing endpoints.
type StatementsHandler struct {
	svc    *statements.Service
	logger *slog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(svc *statements.Service, logger *slog.Logger) *StatementsHandler {
	return &StatementsHandler{svc: svc, logger: logger}
}

// Register mounts the statement routes on r.
func (h *StatementsHandler) Register(r *mux.Router) {
	r.HandleFunc("/process", h.Process).Methods(http.MethodPost)
	r.HandleFunc("/status/{sessionID}", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/questions/{sessionID}", h.Question).Methods(http.MethodGet)
	r.HandleFunc("/questions/{sessionID}/answer", h.Answer).Methods(http.MethodPost)
	r.HandleFunc("/results/{sessionID}", h.Results).Methods(http.MethodGet)
	r.HandleFunc("/download/{sessionID}", h.Download).Methods(http.MethodGet)
}

// Process accepts the statement PDF and reference spreadsheet and starts a
// session.
func (h *StatementsHandler) Process(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	pdfFile, pdfHeader, err := r.FormFile(pdfField)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "pdf_file is required", err)
		return
	}
	defer pdfFile.Close()

	excelFile, excelHeader, err := r.FormFile(excelField)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "excel_file is required", err)
		return
	}
	defer excelFile.Close()

	if !strings.EqualFold(filepath.Ext(pdfHeader.Filename), ".pdf") {
		h.writeError(w, http.StatusBadRequest, "pdf_file must be a PDF", nil)
		return
	}
	if !spreadsheetExts[strings.ToLower(filepath.Ext(excelHeader.Filename))] {
		h.writeError(w, http.StatusBadRequest, "excel_file must be a spreadsheet (.xlsx, .xls, .csv)", nil)
		return
	}

	sessionID, err := h.svc.Submit(r.Context(), pdfHeader.Filename, pdfFile, excelHeader.Filename, excelFile)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not process the uploaded files", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// Status reports the phase and progress of a session.
func (h *StatementsHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(sessionID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// Question returns the pending disambiguation question, if any.
func (h *StatementsHandler) Question(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Question(sessionID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// Answer applies one operator command to the review queue.
func (h *StatementsHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	state, err := h.svc.AnswerQuestion(r.Context(), sessionID(r), req.Answer)
	if err != nil {
		if errors.Is(err, statements.ErrNoPrevious) {
			// Recoverable; the operator just has nothing to undo.
			h.writeJSON(w, http.StatusOK, map[string]any{
				"message":  "nothing to undo",
				"question": state,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// Results returns the artifact listing and statistics of a completed
// session.
func (h *StatementsHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Results(sessionID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Download streams all result artifacts as a zip archive.
func (h *StatementsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.svc.Results(id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_results.zip"`, id))
	if err := h.svc.WriteResultsZip(r.Context(), id, w); err != nil {
		// Headers are gone; all we can do is log.
		h.logger.Error("stream results zip", slog.String("session", id), slog.Any("error", err))
	}
}

func sessionID(r *http.Request) string {
	return mux.Vars(r)["sessionID"]
}

func (h *StatementsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, statements.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "session not found", nil)
	case errors.Is(err, statements.ErrNotReady):
		h.writeError(w, http.StatusConflict, "results are not ready", nil)
	case errors.Is(err, statements.ErrNoQuestions):
		h.writeError(w, http.StatusConflict, "no questions awaiting answers", nil)
	case errors.Is(err, statements.ErrInvalidCommand):
		h.writeError(w, http.StatusBadRequest, "answer must be yes, no, skip, or undo", nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func (h *StatementsHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

// writeError sends a generic message to the caller; the detail stays in
// the server log.
func (h *StatementsHandler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error("request failed", slog.Int("status", status), slog.String("message", msg), slog.Any("error", err))
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
