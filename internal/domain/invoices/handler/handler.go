// Package handler exposes the invoice batch splitter over HTTP.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/officekit/mailroom/internal/domain/invoices"
)

// InvoicesHandler serves the invoice splitting endpoint.
type InvoicesHandler struct {
	svc    *invoices.Service
	logger *slog.Logger
}

// NewInvoicesHandler creates a new invoices handler.
func NewInvoicesHandler(svc *invoices.Service, logger *slog.Logger) *InvoicesHandler {
	return &InvoicesHandler{svc: svc, logger: logger}
}

// Register mounts the invoice routes on r.
func (h *InvoicesHandler) Register(r *mux.Router) {
	r.HandleFunc("/invoices/split", h.Split).Methods(http.MethodPost)
}

// Split accepts an invoice batch PDF and responds with a zip of per-invoice
// PDFs.
func (h *InvoicesHandler) Split(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "pdf_file is required", err)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(w, http.StatusBadRequest, "pdf_file must be a PDF", nil)
		return
	}

	// The splitter needs a path; spool the upload to a temp file.
	tmp, err := os.CreateTemp("", "invoice-batch-*.pdf")
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		h.writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	tmp.Close()

	// Buffer the archive so failures can still produce a JSON error.
	var buf bytes.Buffer
	if _, err := h.svc.SplitBatch(r.Context(), tmp.Name(), &buf); err != nil {
		if errors.Is(err, invoices.ErrNoInvoices) {
			h.writeError(w, http.StatusUnprocessableEntity, "no invoice numbers found", nil)
			return
		}
		h.writeError(w, http.StatusBadRequest, "could not process the uploaded file", err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := io.Copy(w, &buf); err != nil {
		h.logger.Error("stream invoices zip", slog.Any("error", err))
	}
}

func (h *InvoicesHandler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error("request failed", slog.Int("status", status), slog.String("message", msg), slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
