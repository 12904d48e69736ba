package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/spf13/afero"
)

var _ port.ImageStore = (*ImageStore)(nil)

var (
	ErrInvalidRef = errors.New("invalid image reference")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// An ImageStore writes product images into a flat directory of an afero
// filesystem. A reference is the stored file name.
type ImageStore struct {
	fs afero.Fs
}

// NewImageStore roots the store at dir on the OS filesystem.
func NewImageStore(dir string) (ImageStore, error) {
	const op = "media.NewImageStore"

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return ImageStore{}, fmt.Errorf("%s: %w", op, err)
	}
	return NewImageStoreFs(afero.NewBasePathFs(osFs, dir)), nil
}

func NewImageStoreFs(fs afero.Fs) ImageStore {
	return ImageStore{fs}
}

// SaveImage stores content as "<uuid>_<sanitized name>.png".
func (s ImageStore) SaveImage(
	ctx context.Context, filename string, content io.Reader,
) (string, error) {
	const op = "ImageStore.SaveImage"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ref := uuid.NewString() + "_" + SanitizeFilename(filename) + ".png"

	f, err := s.fs.Create(filePath(ref))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(filePath(ref))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(filePath(ref))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	slog.Debug("image saved", "op", op, "ref", ref)
	return ref, nil
}

// DeleteImage tolerates a file that is already gone.
func (s ImageStore) DeleteImage(ctx context.Context, ref string) error {
	const op = "ImageStore.DeleteImage"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !validRef(ref) {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidRef, ref)
	}

	if err := s.fs.Remove(filePath(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FileSystem serves stored images read-only.
func (s ImageStore) FileSystem() http.FileSystem {
	return afero.NewHttpFs(afero.NewReadOnlyFs(s.fs))
}

// SanitizeFilename keeps the base name of an upload with every character
// outside [A-Za-z0-9._-] replaced.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "image"
	}
	return name
}

func filePath(ref string) string {
	return "/" + ref
}

func validRef(ref string) bool {
	return ref != "" && ref == path.Base(ref) && !strings.HasPrefix(ref, ".")
}
