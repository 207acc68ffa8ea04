package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/invoice"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/infrastructure/storage"
	"github.com/aavi4012-cmd/invoice-fraud-backend/internal/service/invoicing"
)

// InvoiceService is the orchestration surface the handlers call.
// *invoicing.Service satisfies it.
type InvoiceService interface {
	UploadInvoices(ctx context.Context, uploads []invoicing.Upload) ([]*invoice.Invoice, error)
	List(ctx context.Context, filter invoicing.ListFilter) ([]*invoice.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	ExportCSV(ctx context.Context, w io.Writer, filter invoicing.ListFilter) error
	DeleteAll(ctx context.Context) (int64, error)
	Override(ctx context.Context, id uuid.UUID, corrections invoice.ExtractedFields) (*invoice.Invoice, error)
}

// Handler exposes the invoice API.
type Handler struct {
	svc       InvoiceService
	validator *validator.Validate
	version   string
	logger    *zap.Logger
}

func NewHandler(svc InvoiceService, version string, logger *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		validator: validator.New(),
		version:   version,
		logger:    logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthEnvelope{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(storage.MaxFileSize); err != nil {
		h.writeError(w, apperrors.NewValidationError("INVALID_MULTIPART", "Request is not valid multipart form data."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeError(w, apperrors.NewValidationError("NO_FILES", "No files uploaded."))
		return
	}
	if len(files) > storage.MaxFiles {
		h.writeError(w, apperrors.NewValidationError("TOO_MANY_FILES",
			fmt.Sprintf("At most %d files per upload.", storage.MaxFiles)))
		return
	}

	uploads := make([]invoicing.Upload, 0, len(files))
	var opened []io.Closer
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	// Reject the whole request before any file is ingested; a failure after
	// the first invoice persists would leave the batch half-applied.
	for _, header := range files {
		if header.Size > storage.MaxFileSize {
			h.writeError(w, apperrors.NewValidationError("FILE_TOO_LARGE",
				fmt.Sprintf("%s exceeds the %d byte limit.", header.Filename, storage.MaxFileSize)))
			return
		}
		if !storage.IsAllowedType(header.Header.Get("Content-Type")) {
			h.writeError(w, apperrors.NewValidationError("UNSUPPORTED_FILE_TYPE",
				"Unsupported file type. Only PDF/JPG/PNG are allowed."))
			return
		}
	}

	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			h.writeError(w, apperrors.NewInternalError("failed to read uploaded file").WithCause(err))
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, invoicing.Upload{
			FileName: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  f,
		})
	}

	saved, err := h.svc.UploadInvoices(r.Context(), uploads)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, invoiceListEnvelope{Invoices: toInvoiceResponses(r, saved)})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	invoices, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceListEnvelope{Invoices: toInvoiceResponses(r, invoices)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("INVALID_ID", "Invoice ID must be a UUID."))
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceEnvelope{Invoice: toInvoiceResponse(r, inv)})
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-risk-report.csv"`)
	if err := h.svc.ExportCSV(r.Context(), w, filter); err != nil {
		// Headers are out; all that is left is the log line.
		h.logger.Error("csv export failed", zap.Error(err))
	}
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.DeleteAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deleteEnvelope{Deleted: deleted})
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, apperrors.NewValidationError("INVALID_ID", "Invoice ID must be a UUID."))
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.NewValidationError("INVALID_BODY", "Request body must be valid JSON."))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, apperrors.NewValidationError("INVALID_FIELDS", validationMessage(err)))
		return
	}

	inv, err := h.svc.Override(r.Context(), id, req.Extracted.ToDomain())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceEnvelope{Invoice: toInvoiceResponse(r, inv)})
}

func listFilterFromQuery(r *http.Request) (invoicing.ListFilter, error) {
	levels, err := invoicing.ParseRiskFilter(r.URL.Query().Get("risk"))
	if err != nil {
		return invoicing.ListFilter{}, err
	}
	return invoicing.ListFilter{
		RiskLevels: levels,
		Search:     r.URL.Query().Get("search"),
	}, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed validation (%s)", verrs[0].Field(), verrs[0].Tag())
	}
	return "request validation failed"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.GetStatusCode(err)
	code := "INTERNAL_ERROR"
	message := "An internal error occurred."

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}
	if status >= 500 {
		h.logger.Error("request failed", zap.Error(err))
	}

	h.writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}
