package httpx

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
	"github.com/ariefcatur/go-image-orders/internal/ingest"
	"github.com/ariefcatur/go-image-orders/internal/orders"
)

type Ingester interface {
	Ingest(ctx context.Context, form *multipart.Form) (ingest.Result, error)
}

type Submitter interface {
	Submit(ctx context.Context, drafts []orders.SKUDraft, webhookURL string) (string, error)
}

type StatusQuerier interface {
	Status(ctx context.Context, orderID string) (orders.StatusView, error)
}

const (
	msgSKUsNotSaved  = "Error saving SKUs to the database"
	msgOrderNotFound = "No order found"
	msgInternal      = "Internal server error"
)

type SKUHandler struct {
	Ingest         Ingester
	Submit         Submitter
	Query          StatusQuerier
	MaxUploadBytes int64
	Log            logrus.FieldLogger
}

type uploadResp struct {
	OrderID string `json:"orderId"`
}

func (h *SKUHandler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload-sku", h.uploadSKU)
		r.Get("/get-sku", h.getSKU)
		r.Get("/orders/{id}", h.getOrder)
	})
}

func (h *SKUHandler) uploadSKU(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		if r.ContentLength > h.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, http.StatusBadRequest, apperr.CodeNoFiles, "No files were uploaded")
		default:
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	res, err := h.Ingest.Ingest(r.Context(), r.MultipartForm)
	if err != nil {
		h.fail(w, err, msgInternal)
		return
	}

	orderID, err := h.Submit.Submit(r.Context(), res.Drafts, r.FormValue("webhookUrl"))
	if err != nil {
		h.fail(w, err, msgSKUsNotSaved)
		return
	}
	writeOK(w, uploadResp{OrderID: orderID})
}

func (h *SKUHandler) getSKU(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, r.URL.Query().Get("orderId"))
}

func (h *SKUHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, chi.URLParam(r, "id"))
}

func (h *SKUHandler) status(w http.ResponseWriter, r *http.Request, orderID string) {
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ORDER_ID", "orderId is required")
		return
	}
	v, err := h.Query.Status(r.Context(), orderID)
	if err != nil {
		h.fail(w, err, msgInternal)
		return
	}
	writeOK(w, v)
}

// fail maps domain errors onto the response envelope. Anything else is a 500 carrying
// internalMsg.
func (h *SKUHandler) fail(w http.ResponseWriter, err error, internalMsg string) {
	if ve, ok := apperr.AsValidation(err); ok {
		writeError(w, http.StatusBadRequest, ve.Code, ve.Message)
		return
	}
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", msgOrderNotFound)
		return
	}
	h.Log.WithError(err).Error("request failed")
	if errors.Is(err, orders.ErrSKUsNotSaved) {
		writeError(w, http.StatusInternalServerError, "SKUS_NOT_SAVED", msgSKUsNotSaved)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", internalMsg)
}
