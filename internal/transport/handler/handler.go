package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/trunov/imagegate/internal/config"
	"github.com/trunov/imagegate/internal/entities"
	"github.com/trunov/imagegate/internal/params"
)

type UseCase interface {
	Derivative(ctx context.Context, ownerID, pictureID string, quality, targetWidth int) ([]byte, error)
	UploadImage(ctx context.Context, file multipart.File, ext string, fileType string, ownerID string) (entities.Image, error)
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
}

func New(useCase UseCase, cfg *config.Config) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
	}
}

// ServeDerivative answers GET /{ownerID}/{pictureID}?quality=&th= with the
// WebP derivative. Responses for failures are plain text; the body of a
// success is the raw derivative with Content-Type image/webp.
func (h *Handler) ServeDerivative(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path)
	if len(segments) != 2 {
		http.Error(w, "invalid URL format, expected /{ownerID}/{pictureID}", http.StatusBadRequest)
		return
	}
	ownerID, pictureID := segments[0], segments[1]

	quality := params.ResolveQuality(r.URL.Query().Get("quality"))
	targetWidth := params.ResolveWidth(r.URL.Query().Get("th"))

	derivative, err := h.useCase.Derivative(r.Context(), ownerID, pictureID, quality, targetWidth)
	if err != nil {
		h.writeDerivativeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	_, _ = w.Write(derivative)
}

// writeDerivativeError maps pipeline errors to status codes. Expected
// conditions get their own status; anything else is logged, reported and
// answered with a generic 500 so no internal detail leaks out.
func (h *Handler) writeDerivativeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entities.ErrUnsupportedFormat):
		http.Error(w, "unsupported image type", http.StatusBadRequest)
	case errors.Is(err, entities.ErrNotFound):
		http.Error(w, "image not found", http.StatusNotFound)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to produce derivative")
		sentry.CaptureException(err)
		http.Error(w, "error processing image", http.StatusInternalServerError)
	}
}

// UploadImage ingests an original via multipart form. The sniffed content
// type decides the stored extension; the owner comes from the form.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	maxMultipartMem := h.cfg.Upload.MaxMultipartMemoryMB
	if err := r.ParseMultipartForm(maxMultipartMem << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if strings.Contains(err.Error(), "no such file") {
			writeJSONError(w, `missing image file: form field key should be "image"`, http.StatusBadRequest)
		} else {
			writeJSONError(w, "an error occurred while uploading the file: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	p := UploadImageParams{
		OwnerID: r.Form.Get("ownerID"),
	}

	if err := h.validator.Struct(p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ext := mime.Extension()
	fileType := mime.String()

	if err := validateMimeType(fileType); err != nil {
		writeJSONError(w, fmt.Sprintf("unsupported file type: %s", fileType), http.StatusBadRequest)
		return
	}

	img, err := h.useCase.UploadImage(r.Context(), file, ext, fileType, p.OwnerID)
	if err != nil {
		log.Error().Err(err).Str("owner", p.OwnerID).Msg("upload failed")
		sentry.CaptureException(err)
		writeJSONError(w, "failed to store image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(img); err != nil {
		log.Error().Err(err).Msg("failed to encode upload response")
	}
}
