package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/imagegate/internal/config"
	"github.com/trunov/imagegate/internal/entities"
)

type mockUseCase struct {
	derivative []byte
	err        error

	ownerID     string
	pictureID   string
	quality     int
	targetWidth int
	calls       int
}

func (m *mockUseCase) Derivative(_ context.Context, ownerID, pictureID string, quality, targetWidth int) ([]byte, error) {
	m.calls++
	m.ownerID = ownerID
	m.pictureID = pictureID
	m.quality = quality
	m.targetWidth = targetWidth
	return m.derivative, m.err
}

func (m *mockUseCase) UploadImage(_ context.Context, _ multipart.File, _ string, _ string, _ string) (entities.Image, error) {
	return entities.Image{}, nil
}

func serve(uc *mockUseCase, target string) *httptest.ResponseRecorder {
	h := New(uc, &config.Config{})

	r := chi.NewRouter()
	r.Get("/*", h.ServeDerivative)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServeDerivativeSuccess(t *testing.T) {
	uc := &mockUseCase{derivative: []byte("webp bytes")}

	rec := serve(uc, "/u1/p1.jpg?quality=2&th=100")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "webp bytes", rec.Body.String())

	assert.Equal(t, "u1", uc.ownerID)
	assert.Equal(t, "p1.jpg", uc.pictureID)
	assert.Equal(t, 50, uc.quality)
	assert.Equal(t, 100, uc.targetWidth)
}

func TestServeDerivativeDefaults(t *testing.T) {
	uc := &mockUseCase{derivative: []byte("webp bytes")}

	rec := serve(uc, "/u1/p2.webp")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 75, uc.quality)
	assert.Equal(t, 0, uc.targetWidth)
}

func TestServeDerivativeMalformedWidthIsIgnored(t *testing.T) {
	uc := &mockUseCase{derivative: []byte("webp bytes")}

	rec := serve(uc, "/u1/p1.jpg?th=abc")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, uc.targetWidth, "an unparseable th is the same as no th")
}

func TestServeDerivativeMalformedPath(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "one segment", target: "/onlyone"},
		{name: "three segments", target: "/a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockUseCase{}
			rec := serve(uc, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, uc.calls)
		})
	}
}

func TestServeDerivativeTrailingSlashStillTwoSegments(t *testing.T) {
	uc := &mockUseCase{derivative: []byte("webp bytes")}

	rec := serve(uc, "/u1/p1.jpg/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1.jpg", uc.pictureID)
}

func TestServeDerivativeUnsupportedFormat(t *testing.T) {
	uc := &mockUseCase{err: entities.ErrUnsupportedFormat}

	rec := serve(uc, "/u1/anim.gif")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported image type")
}

func TestServeDerivativeNotFound(t *testing.T) {
	uc := &mockUseCase{err: entities.ErrNotFound}

	rec := serve(uc, "/u1/missing.png")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "image not found")
}

func TestServeDerivativeInternalErrorIsGeneric(t *testing.T) {
	uc := &mockUseCase{err: errors.New("encoder exploded: buffer at 0xdeadbeef")}

	rec := serve(uc, "/u1/p1.jpg")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error processing image\n", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "0xdeadbeef")
}
