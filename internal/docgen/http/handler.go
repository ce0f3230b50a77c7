package docgenhttp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/quotedoc/internal/docgen"
	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
	"github.com/odyssey-erp/quotedoc/internal/docgen/docx"
	"github.com/odyssey-erp/quotedoc/internal/exports"
	"github.com/odyssey-erp/quotedoc/internal/platform/httpx"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
	"github.com/odyssey-erp/quotedoc/internal/quotation/export"
)

// Generator renders quotation documents.
type Generator interface {
	Generate(ctx context.Context, req docgen.Request) (docgen.Document, error)
}

// ExportService queues and tracks background exports.
type ExportService interface {
	Request(ctx context.Context, req exports.Request) (exports.Record, error)
	Get(ctx context.Context, id string) (exports.Record, error)
	File(ctx context.Context, id string) (exports.Record, error)
}

// Handler wires HTTP endpoints for quotation documents.
type Handler struct {
	logger    *slog.Logger
	source    quotation.Source
	generator Generator
	exports   ExportService
	validate  *validator.Validate
	inflight  singleflight.Group
}

// NewHandler constructs a Handler value. exportsSvc may be nil when no
// worker is deployed; the export routes are then not mounted.
func NewHandler(logger *slog.Logger, source quotation.Source, generator Generator, exportsSvc ExportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		source:    source,
		generator: generator,
		exports:   exportsSvc,
		validate:  validator.New(),
	}
}

// sharedRenderTimeout bounds a collapsed render once it is detached from the
// request that started it.
const sharedRenderTimeout = 2 * time.Minute

// MountRoutes registers HTTP routes. Every route requires a bearer token,
// which is forwarded to the backend and asset server.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requireBearer)
		r.Route("/quotations/{id}", func(r chi.Router) {
			r.Post("/document", h.document)
			r.Get("/offers.xlsx", h.offersSheet)
			if h.exports != nil {
				r.Post("/exports", h.createExport)
			}
		})
		if h.exports != nil {
			r.Get("/exports/{id}", h.exportStatus)
			r.Get("/exports/{id}/download", h.download)
		}
	})
}

// requireBearer rejects requests without a bearer token and makes the token
// available to the asset and backend clients.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quotedoc"`)
			httpx.RespondError(w, fmt.Errorf("%w: bearer token required", httpx.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(assets.ContextWithToken(r.Context(), token)))
	})
}

type documentRequest struct {
	OfferID       string `json:"offer_id" validate:"omitempty,max=64"`
	SelectedNotes []int  `json:"selected_notes" validate:"max=6,dive,min=0,max=5"`
	Format        string `json:"format" validate:"omitempty,oneof=docx pdf"`
}

func (h *Handler) decodeRequest(r *http.Request) (documentRequest, error) {
	var req documentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return documentRequest{}, err
	}
	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return documentRequest{}, fmt.Errorf("%w: %s failed %s", httpx.ErrValidation, fe.Namespace(), fe.Tag())
		}
		return documentRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.Format == "" {
		req.Format = string(docgen.FormatDOCX)
	}
	return req, nil
}

// document renders and streams a quotation document.
func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.decodeRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := requestKey(id, assets.TokenFromContext(r.Context()), req)
	result, err, _ := h.singleflight(r.Context(), key, func(ctx context.Context) (any, error) {
		q, err := h.source.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return h.generator.Generate(ctx, docgen.Request{
			Quotation:     q,
			OfferID:       req.OfferID,
			SelectedNotes: req.SelectedNotes,
			Format:        docgen.Format(req.Format),
		})
	})
	if err != nil {
		h.respondError(w, "generate document", id, err)
		return
	}
	doc := result.(docgen.Document)
	if err := (docgen.HTTPDelivery{W: w}).Deliver(r.Context(), doc); err != nil {
		h.logger.Warn("stream document", slog.String("quotation_id", id), slog.Any("error", err))
	}
}

// singleflight collapses identical concurrent document requests. The shared
// call runs detached from the caller that started it, so that caller going
// away does not fail the others; each caller still stops waiting on its own
// cancellation.
func (h *Handler) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := h.inflight.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRenderTimeout)
		defer cancel()
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

// requestKey identifies a render by its inputs and the caller's credentials;
// callers holding different tokens never share a result.
func requestKey(id, token string, req documentRequest) string {
	notes := make([]string, len(req.SelectedNotes))
	for i, n := range req.SelectedNotes {
		notes[i] = strconv.Itoa(n)
	}
	digest := sha256.Sum256([]byte(token))
	return strings.Join([]string{
		hex.EncodeToString(digest[:]), id, req.OfferID, strings.Join(notes, ","), req.Format,
	}, "|")
}

// offersSheet streams every offer and revision as a spreadsheet.
func (h *Handler) offersSheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := h.source.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "load quotation", id, err)
		return
	}
	data, err := export.OffersXLSX(q)
	if err != nil {
		h.respondError(w, "build offers sheet", id, err)
		return
	}
	doc := docgen.Document{
		Filename:    strings.TrimSuffix(docgen.Filename(q.Number, nil, docgen.FormatDOCX), ".docx") + "_Offers.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}
	if err := (docgen.HTTPDelivery{W: w}).Deliver(r.Context(), doc); err != nil {
		h.logger.Warn("stream offers sheet", slog.String("quotation_id", id), slog.Any("error", err))
	}
}

type exportResponse struct {
	ID          string         `json:"id"`
	Status      exports.Status `json:"status"`
	Filename    string         `json:"filename,omitempty"`
	Error       string         `json:"error,omitempty"`
	DownloadURL string         `json:"download_url,omitempty"`
}

func toExportResponse(rec exports.Record) exportResponse {
	resp := exportResponse{ID: rec.ID, Status: rec.Status, Filename: rec.Filename, Error: rec.Error}
	if rec.Status == exports.StatusReady {
		resp.DownloadURL = "/exports/" + rec.ID + "/download"
	}
	return resp
}

// createExport queues a background export.
func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.decodeRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// The worker renders with the service token, so the caller's own access
	// is checked before anything is queued.
	if _, err := h.source.Get(r.Context(), id); err != nil {
		h.respondError(w, "queue export", id, err)
		return
	}
	rec, err := h.exports.Request(r.Context(), exports.Request{
		QuotationID:   id,
		OfferID:       req.OfferID,
		SelectedNotes: req.SelectedNotes,
		Format:        req.Format,
	})
	if err != nil {
		h.respondError(w, "queue export", id, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, toExportResponse(rec))
}

// exportStatus returns a single export record.
func (h *Handler) exportStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.exports.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get export", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExportResponse(rec))
}

// download streams the stored export file.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.exports.File(r.Context(), id)
	if err != nil {
		h.respondError(w, "download export", id, err)
		return
	}
	file, err := os.Open(rec.Path)
	if err != nil {
		h.logger.Error("open export", slog.String("export_id", id), slog.String("path", rec.Path), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: export file missing", httpx.ErrNotFound))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		h.logger.Error("stat export", slog.String("export_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	// Content-Type follows the extension registry; Range requests are served.
	http.ServeContent(w, r, rec.Filename, info.ModTime(), file)
}

// respondError classifies pipeline failures into problem responses.
func (h *Handler) respondError(w http.ResponseWriter, op, id string, err error) {
	var (
		noOffer   *docgen.NoOfferError
		fetchErr  *docgen.FetchError
		tplErr    *docx.TemplateLoadError
		renderErr *docgen.RenderError
	)
	switch {
	case errors.Is(err, quotation.ErrNotFound), errors.Is(err, exports.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, quotation.ErrForbidden):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrForbidden, err))
	case errors.Is(err, exports.ErrNotReady):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.As(err, &noOffer), errors.Is(err, quotation.ErrInvalidStatus):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnprocessable, err))
	case errors.As(err, &tplErr), errors.As(err, &fetchErr):
		h.logger.Error(op, slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUpstream, err))
	case errors.As(err, &renderErr):
		h.logger.Error(op, slog.String("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Render Failed", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op, slog.String("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Request Cancelled", "")
	default:
		h.logger.Error(op, slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
