package report

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotedoc/internal/platform/httpx"
)

const maxUploadBytes = 32 << 20

// Handler manages report endpoints.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Post("/convert", h.convert)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// convert turns an uploaded DOCX into PDF, for documents rendered earlier
// as DOCX and edited by hand.
func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: multipart field \"file\" is required", httpx.ErrValidation))
		return
	}
	defer func() {
		_ = file.Close()
	}()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".docx") {
		httpx.RespondError(w, fmt.Errorf("%w: only .docx files can be converted", httpx.ErrValidation))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: read upload: %v", httpx.ErrValidation, err))
		return
	}
	pdf, err := h.client.ConvertOffice(r.Context(), header.Filename, data)
	if err != nil {
		h.logger.Error("convert document", slog.String("filename", header.Filename), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
		return
	}
	name := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename)) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
