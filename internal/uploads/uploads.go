package uploads

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	// MaxImageBytes caps a single uploaded image at 5 MiB.
	MaxImageBytes = 5 << 20

	thumbWidth  = 320
	thumbSuffix = "_thumb.jpg"
)

var (
	ErrTooLarge = errors.New("image exceeds the 5 MiB limit")
	ErrBadType  = errors.New("only JPEG and PNG images are accepted")
)

// extension -> content type the sniffed payload must match
var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Saver writes validated product images under a media root. Files are
// renamed to UUIDs so uploaded names never reach the filesystem.
type Saver struct {
	Root string
}

func New(root string) *Saver { return &Saver{Root: root} }

// SaveProductImage validates one multipart file and stores it together with
// a 320px JPEG thumbnail. It returns the path relative to the media root.
// The declared extension and the sniffed payload type must agree; either
// mismatch rejects the file.
func (s *Saver) SaveProductImage(productID string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxImageBytes {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	want, ok := allowedExt[ext]
	if !ok {
		return "", ErrBadType
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	f.Close()
	if err != nil {
		return "", err
	}
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	if got := http.DetectContentType(data); got != want {
		return "", ErrBadType
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrBadType
	}

	dir := filepath.Join(s.Root, "products", productID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	if err := s.writeThumb(dir, name, img); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join("products", productID, name)), nil
}

func (s *Saver) writeThumb(dir, name string, img image.Image) error {
	if img.Bounds().Dx() > thumbWidth {
		img = resize.Resize(thumbWidth, 0, img, resize.Lanczos3)
	}
	out, err := os.Create(filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+thumbSuffix))
	if err != nil {
		return err
	}
	defer out.Close()
	return jpeg.Encode(out, img, &jpeg.Options{Quality: 80})
}

// RemoveProduct deletes all stored images for a product. Missing directories
// are not an error.
func (s *Saver) RemoveProduct(productID string) error {
	err := os.RemoveAll(filepath.Join(s.Root, "products", productID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
