package service

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/internal/storage"
	"go-pharmacy-catalog/internal/util"
	"go-pharmacy-catalog/pkg/apierror"
)

const (
	defaultThumbnailSize = 256
	thumbnailDir         = "thumbs"
)

type ImageOptions struct {
	AllowedTypes  []string
	ThumbnailSize int
}

// ImageService stores product images below the upload root and renders a
// JPEG thumbnail next to each one.
type ImageService struct {
	store         *storage.Storage
	allowedTypes  map[string]struct{}
	thumbnailSize int
}

func NewImageService(store *storage.Storage, opts ImageOptions) *ImageService {
	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, mimeType := range opts.AllowedTypes {
		cleaned := strings.ToLower(strings.TrimSpace(mimeType))
		if cleaned != "" {
			allowed[cleaned] = struct{}{}
		}
	}

	size := opts.ThumbnailSize
	if size <= 0 {
		size = defaultThumbnailSize
	}

	return &ImageService{store: store, allowedTypes: allowed, thumbnailSize: size}
}

// Save writes the upload as "<uuid>-<name>". The content type is sniffed from
// the bytes; the client supplied type is ignored.
func (s *ImageService) Save(filename string, content io.Reader) (model.StoredImage, error) {
	name, err := util.SanitizeFilename(filename)
	if err != nil {
		return model.StoredImage{}, err
	}

	mimeType, reader, err := util.SniffMIME(content)
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("read upload: %w", err)
	}
	if !s.isAllowed(mimeType) {
		return model.StoredImage{}, apierror.New("UNSUPPORTED_TYPE", "image must be one of the allowed image types", mimeType, http.StatusUnsupportedMediaType)
	}

	id := uuid.NewString()
	rel := id + "-" + name

	file, err := s.store.Create(rel)
	if err != nil {
		return model.StoredImage{}, fmt.Errorf("create upload: %w", err)
	}

	written, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = s.store.Remove(rel)
		if copyErr != nil {
			return model.StoredImage{}, copyErr
		}
		return model.StoredImage{}, closeErr
	}

	stored := model.StoredImage{
		Path:     storage.PublicPath(rel),
		MimeType: mimeType,
		Size:     written,
	}

	if util.IsThumbnailMIME(mimeType) {
		thumbRel := thumbnailDir + "/" + id + ".jpg"
		if err := s.renderThumbnail(rel, thumbRel); err != nil {
			slog.Warn("thumbnail generation failed", "path", stored.Path, "error", err)
			_ = s.store.Remove(thumbRel)
		} else {
			stored.Thumbnail = storage.PublicPath(thumbRel)
		}
	}

	slog.Debug("image stored", "path", stored.Path, "mime", mimeType, "size", written)
	return stored, nil
}

// Remove deletes a stored upload by its public path. Empty paths and files
// that no longer exist are ignored.
func (s *ImageService) Remove(publicPath string) error {
	if strings.TrimSpace(publicPath) == "" {
		return nil
	}

	rel, ok := storage.RelativePath(publicPath)
	if !ok {
		return apierror.New("INVALID_PATH", "not an upload path", publicPath, http.StatusBadRequest)
	}
	return s.store.Remove(rel)
}

// RemoveStored deletes an image and its thumbnail, logging failures.
func (s *ImageService) RemoveStored(imagePath string, thumbnailPath string) {
	for _, p := range []string{imagePath, thumbnailPath} {
		if err := s.Remove(p); err != nil {
			slog.Warn("stored image cleanup failed", "path", p, "error", err)
		}
	}
}

func (s *ImageService) isAllowed(mimeType string) bool {
	if !util.IsImageMIME(mimeType) {
		return false
	}
	if len(s.allowedTypes) == 0 {
		return true
	}
	_, ok := s.allowedTypes[strings.ToLower(mimeType)]
	return ok
}

func (s *ImageService) renderThumbnail(sourceRel string, thumbRel string) error {
	source, err := s.store.Open(sourceRel)
	if err != nil {
		return err
	}
	defer source.Close()

	src, _, err := image.Decode(source)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return errors.New("invalid image dimensions")
	}

	width, height := thumbnailDimensions(bounds.Dx(), bounds.Dy(), s.thumbnailSize)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha channel: composite onto white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	thumb, err := s.store.Create(thumbRel)
	if err != nil {
		return err
	}

	encodeErr := jpeg.Encode(thumb, dst, &jpeg.Options{Quality: 90})
	closeErr := thumb.Close()
	if encodeErr != nil {
		return encodeErr
	}
	return closeErr
}

// thumbnailDimensions fits width x height into a size x size box, keeping the
// aspect ratio. Images already smaller than the box are not upscaled.
func thumbnailDimensions(width int, height int, size int) (int, int) {
	maxDim := max(width, height)

	scale := float64(size) / float64(maxDim)
	if scale > 1 {
		scale = 1
	}

	targetWidth := max(int(math.Round(float64(width)*scale)), 1)
	targetHeight := max(int(math.Round(float64(height)*scale)), 1)
	return targetWidth, targetHeight
}
