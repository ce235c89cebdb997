package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/checksum"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/storage"
)

// UploadsPath is the URL prefix stored images are served under.
const UploadsPath = "/api/uploads/"

// imageTypes maps sniffed content types to stored extensions.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func withURL(img *models.Image) *models.Image {
	img.URL = UploadsPath + img.Name
	return img
}

// UploadImage stores an image for one of owner's editable posts. Identical
// bytes share one stored object.
func (s *Service) UploadImage(ctx context.Context, owner string, postID int64, filename string, r io.Reader) (*models.Image, error) {
	filename = strings.TrimSpace(filepath.Base(filepath.Clean("/" + filename)))
	if filename == "" || filename == "/" || filename == "." {
		return nil, fmt.Errorf("dashboard: image filename is required: %w", apperr.ErrValidation)
	}
	post, err := editable(ctx, s, owner, models.KindPost, postID, s.db.Posts().Find)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxImage+1))
	if err != nil {
		return nil, fmt.Errorf("dashboard: read upload: %w", err)
	}
	if int64(len(data)) > s.maxImage {
		return nil, fmt.Errorf("dashboard: image exceeds %d bytes: %w", s.maxImage, apperr.ErrValidation)
	}
	ext, ok := imageTypes[http.DetectContentType(data)]
	if !ok {
		return nil, fmt.Errorf("dashboard: %s is not a supported image: %w", filename, apperr.ErrValidation)
	}

	name := checksum.ObjectName(data, ext)
	exists, err := s.objects.Exists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.objects.Put(name, data); err != nil {
			return nil, err
		}
	}

	img, err := s.db.AddImage(ctx, &models.Image{PostID: post.ID, Name: name, Filename: filename, Size: int64(len(data))})
	if err != nil {
		if !exists {
			s.releaseObject(ctx, name)
		}
		return nil, err
	}
	s.updated(owner, post)
	return withURL(img), nil
}

// ListImages returns the images of one of owner's posts.
func (s *Service) ListImages(ctx context.Context, owner string, postID int64) ([]*models.Image, error) {
	if err := s.authorize(ctx, owner, models.Ref{Kind: models.KindPost, ID: postID}); err != nil {
		return nil, err
	}
	imgs, err := s.db.ListImages(ctx, postID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Image, len(imgs))
	for i, img := range imgs {
		out[i] = withURL(img)
	}
	return out, nil
}

// DeleteImage removes an image from one of owner's editable posts.
func (s *Service) DeleteImage(ctx context.Context, owner string, id int64) error {
	img, err := s.db.FindImage(ctx, id)
	if err != nil {
		return err
	}
	post, err := editable(ctx, s, owner, models.KindPost, img.PostID, s.db.Posts().Find)
	if err != nil {
		return err
	}
	if err := s.db.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.releaseObject(ctx, img.Name)
	s.updated(owner, post)
	return nil
}

// OpenUpload opens a stored image by object name.
func (s *Service) OpenUpload(name string) (io.ReadSeekCloser, storage.Object, error) {
	return s.objects.Open(name)
}
