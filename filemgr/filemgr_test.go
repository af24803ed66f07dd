package filemgr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSaveImageWritesPhotoAndThumbnail(t *testing.T) {
	s := &Store{Root: t.TempDir()}
	saved, err := s.SaveImage(bytes.NewReader(pngBytes(t, 800, 400)), "Pizza.PNG", "menu")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(saved.Image, "menu/photo/") || !strings.HasSuffix(saved.Image, ".jpg") {
		t.Fatalf("unexpected image path %q", saved.Image)
	}
	thumb, err := imaging.Open(filepath.Join(s.Root, saved.Thumbnail))
	if err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != thumbSize || b.Dy() != thumbSize {
		t.Fatalf("thumbnail is %dx%d", b.Dx(), b.Dy())
	}

	s.Remove(*saved)
	if _, err := os.Stat(filepath.Join(s.Root, saved.Image)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("image not removed")
	}
}

func TestSaveImageRejects(t *testing.T) {
	s := &Store{Root: t.TempDir()}
	tests := []struct {
		name, file string
		body       []byte
		want       error
	}{
		{"extension", "menu.pdf", pngBytes(t, 10, 10), ErrInvalidExtension},
		{"mime", "menu.png", []byte("plain text, not an image at all"), ErrInvalidMIME},
		{"too large", "menu.png", make([]byte, MaxImageSize+10), ErrFileTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.SaveImage(bytes.NewReader(tc.body), tc.file, "menu")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
