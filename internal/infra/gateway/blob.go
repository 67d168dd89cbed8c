package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/unioncms/unioncms/internal/domain"
)

// FileBlobStore keeps uploaded media on the local filesystem and serves it
// under baseURL. Uploads get a fresh id-prefixed name so repeated uploads of
// the same filename never collide.
type FileBlobStore struct {
	root    string
	baseURL string
}

func NewFileBlobStore(root string, baseURL string) (*FileBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileBlobStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *FileBlobStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", domain.ValidationError{Field: "name", Reason: "must be a file name"}
	}

	stored := ulid.Make().String() + "-" + base
	path := filepath.Join(s.root, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", domain.TransportError{Op: "blob.upload", Cause: err}
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", domain.TransportError{Op: "blob.upload", Cause: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", domain.TransportError{Op: "blob.upload", Cause: err}
	}

	return fmt.Sprintf("%s/%s", s.baseURL, stored), nil
}

// Delete accepts either the stored name or the full public URL.
func (s *FileBlobStore) Delete(ctx context.Context, path string) error {
	name := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		name = path[idx+1:]
	}
	if name == "" {
		return domain.ValidationError{Field: "path", Reason: "must name a stored file"}
	}

	err := os.Remove(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return domain.NotFoundError{Resource: "file"}
	}
	if err != nil {
		return domain.TransportError{Op: "blob.delete", Cause: err}
	}
	return nil
}

// Root exposes the storage directory for static file serving.
func (s *FileBlobStore) Root() string {
	return s.root
}
