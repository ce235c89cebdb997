package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

const (
	maxUploadBytes = 50 << 20 // 50 MB
	maxMemoryBytes = 8 << 20
)

// ListImages handles GET /api/posts/{id}/images.
//
//	@Summary		List the images attached to a post
//	@Tags			images
//	@Produce		json
//	@Param			id	path		int	true	"Post id"
//	@Success		200	{object}	ImageListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id}/images [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	imgs, err := h.svc.ListImages(r.Context(), userOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if imgs == nil {
		imgs = []*models.Image{}
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: imgs})
}

// UploadImage handles POST /api/posts/{id}/images (multipart/form-data, field "file").
//
//	@Summary		Attach an image to a post
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		int		true	"Post id"
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	models.Image
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id}/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(r, "file too large or invalid multipart"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(r, "missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	img, err := h.svc.UploadImage(r.Context(), userOf(r), id, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// DeleteImage handles DELETE /api/images/{id}.
//
//	@Summary		Remove an image from its post
//	@Tags			images
//	@Produce		json
//	@Param			id	path		int	true	"Image id"
//	@Success		200	{object}	MutationResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{id} [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteImage(r.Context(), userOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Message: h.toast(r, "saved")})
}

// ServeUpload handles GET /api/uploads/{name}. Object names are content
// hashes so responses are cacheable forever.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	f, obj, err := h.svc.OpenUpload(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, obj.Name, obj.ModTime, f)
}
