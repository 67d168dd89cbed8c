package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unioncms/unioncms/internal/domain"
)

func TestBlobUploadAndDelete(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), "https://union.example.edu/files/")
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	ctx := context.Background()

	url, err := store.Upload(ctx, "poster.png", strings.NewReader("png bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://union.example.edu/files/") {
		t.Fatalf("url must live under the base, got %s", url)
	}
	if !strings.HasSuffix(url, "-poster.png") {
		t.Fatalf("stored name must keep the original base name, got %s", url)
	}

	stored := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(store.Root(), stored))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(data) != "png bytes" {
		t.Fatalf("stored content mismatch: %q", data)
	}

	// delete accepts the full public URL
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), stored)); !os.IsNotExist(err) {
		t.Fatalf("file must be gone after delete, stat err: %v", err)
	}

	if err := store.Delete(ctx, url); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete must report not found, got %v", err)
	}
}

func TestBlobUploadSameNameNeverCollides(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), "https://union.example.edu/files")
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	ctx := context.Background()

	first, err := store.Upload(ctx, "agenda.pdf", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	second, err := store.Upload(ctx, "agenda.pdf", strings.NewReader("v2"))
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if first == second {
		t.Fatalf("repeated uploads of one filename must get distinct urls: %s", first)
	}
}
