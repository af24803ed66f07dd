package filemgr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageSize = 10 << 20
	thumbSize    = 320
	maxDimension = 6000
)

var (
	allowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	allowedMIMEs      = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidMIME      = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
	ErrNotAnImage       = errors.New("file is not a decodable image")
)

// Saved names the files written for one upload, relative to the upload root.
type Saved struct {
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
}

// Store writes images below Root, grouped by entity ("menu", ...).
type Store struct {
	Root string
}

// SaveImage validates an uploaded image, re-encodes it as JPEG (dropping
// EXIF) and writes it alongside a square thumbnail.
func (s *Store) SaveImage(r io.Reader, filename, entity string) (*Saved, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowedExtensions, ext) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	buf, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(buf) > MaxImageSize {
		return nil, ErrFileTooLarge
	}
	if mime := http.DetectContentType(buf); !slices.Contains(allowedMIMEs, mime) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMIME, mime)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, ErrNotAnImage
	}
	if b := img.Bounds(); b.Dx() > maxDimension || b.Dy() > maxDimension {
		return nil, fmt.Errorf("image dimensions %dx%d exceed max %dx%d", b.Dx(), b.Dy(), maxDimension, maxDimension)
	}

	name := uuid.New().String() + ".jpg"
	photoRel := filepath.Join(entity, "photo", name)
	thumbRel := filepath.Join(entity, "thumb", name)

	if err := s.writeJPEG(photoRel, img, 90); err != nil {
		return nil, err
	}
	thumb := imaging.Fill(img, thumbSize, thumbSize, imaging.Center, imaging.Lanczos)
	if err := s.writeJPEG(thumbRel, thumb, 80); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("thumbnail generation failed")
		thumbRel = ""
	}

	log.Debug().Str("file", photoRel).Int("bytes", len(buf)).
		Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("image saved")
	return &Saved{Image: filepath.ToSlash(photoRel), Thumbnail: filepath.ToSlash(thumbRel)}, nil
}

func (s *Store) writeJPEG(rel string, img image.Image, quality int) error {
	full := filepath.Join(s.Root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	out, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create %s: %w", full, err)
	}
	defer out.Close()
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode %s: %w", full, err)
	}
	return nil
}

// Remove deletes previously saved files. Missing files are ignored.
func (s *Store) Remove(saved Saved) {
	for _, rel := range []string{saved.Image, saved.Thumbnail} {
		if rel == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(rel))); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", rel).Msg("failed to remove file")
		}
	}
}
