package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ranchcore/internal/blob"
	"ranchcore/pkg/domain"
)

const maxPhotoBytes = 16 << 20

// handleUploadPhoto stores a multipart photo for an animal and records the
// object key on the animal. Uploads are create-only so two devices syncing
// the same filename cannot silently clobber each other.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "photo storage not configured")
		return
	}
	tag := chi.URLParam(r, "tag")
	if _, ok := s.svc.GetAnimal(tag); !ok {
		s.writeError(w, http.StatusNotFound, domain.NotFoundError{Entity: domain.EntityAnimal, Key: tag}.Error())
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, `missing "photo" form file`)
		return
	}
	defer file.Close()

	filename := path.Base(header.Filename)
	if filename == "" || filename == "." || filename == "/" {
		s.writeError(w, http.StatusBadRequest, "missing filename")
		return
	}
	key := blob.PhotoKey(tag, filename)

	info, err := s.blobs.Put(r.Context(), key, file, blob.PutOptions{
		ContentType: header.Header.Get("Content-Type"),
		Metadata:    map[string]string{"tag_number": tag},
	})
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	updated, _, err := s.svc.UpdateAnimal(r.Context(), tag, func(a *domain.Animal) error {
		a.PhotoKey = &info.Key
		return nil
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("photo uploaded",
		zap.String("tag_number", tag),
		zap.String("key", info.Key),
		zap.Int64("size_bytes", info.Size),
	)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"photo": info,
		"animal": map[string]any{
			"tag_number": updated.TagNumber,
			"photo_key":  updated.PhotoKey,
		},
	})
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "photo storage not configured")
		return
	}
	tag := chi.URLParam(r, "tag")
	filename := chi.URLParam(r, "filename")
	key := blob.PhotoKey(tag, filename)

	info, rc, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "photo not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream photo", zap.String("key", key), zap.Error(err))
	}
}
