package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"argus/internal/models"
	"argus/internal/ports"
)

func save(t *testing.T, store *LocalFS, externalID string, capturedAt time.Time, data []byte) string {
	t.Helper()
	snap := models.Snapshot{ExternalID: externalID, CapturedAt: capturedAt}
	out, err := store.Save(context.Background(), ports.SaveObjectInput{
		ObjectKey:   snap.ObjectKey(),
		ContentType: "image/jpeg",
		Reader:      bytes.NewReader(data),
		Size:        int64(len(data)),
	})
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	return out.ObjectKey
}

func TestSaveAndOpen(t *testing.T) {
	store := New(t.TempDir())
	data := []byte{0xff, 0xd8, 0xff, 0xd9}

	key := save(t, store, "cam1", time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC), data)

	rc, contentType, size, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read payload differs from saved payload")
	}
	if contentType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", contentType)
	}
	if size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), size)
	}
}

func TestDelete(t *testing.T) {
	store := New(t.TempDir())
	key := save(t, store, "cam1", time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC), []byte("x"))

	if err := store.Delete(context.Background(), key); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, _, _, err := store.Open(context.Background(), key); err == nil {
		t.Error("expected open to fail after delete")
	}
}

func TestPruneBefore(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	cutoff := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	oldKey := save(t, store, "cam1", cutoff.Add(-48*time.Hour), []byte("old"))
	newKey := save(t, store, "cam1", cutoff.Add(48*time.Hour), []byte("new"))
	otherKey := save(t, store, "cam2", cutoff.Add(-48*time.Hour), []byte("other"))

	removed, err := store.PruneBefore(context.Background(), "cam1", cutoff)
	if err != nil {
		t.Fatalf("unexpected prune error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}

	if _, _, _, err := store.Open(context.Background(), oldKey); err == nil {
		t.Error("expected old object removed")
	}
	if _, _, _, err := store.Open(context.Background(), newKey); err != nil {
		t.Errorf("expected recent object kept: %v", err)
	}
	if _, _, _, err := store.Open(context.Background(), otherKey); err != nil {
		t.Errorf("expected other camera untouched: %v", err)
	}

	// The emptied date directories are gone too.
	if _, err := os.Stat(filepath.Join(root, "cam1", "2024", "03", "08")); !os.IsNotExist(err) {
		t.Error("expected emptied date directory removed")
	}
}

func TestPruneBeforeUnknownCamera(t *testing.T) {
	store := New(t.TempDir())

	removed, err := store.PruneBefore(context.Background(), "ghost", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected nothing removed, got %d", removed)
	}
}

func TestPruneBeforeSkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	// A file outside the object key layout never matches the date parse.
	foreign := filepath.Join(root, "cam1", "notes.txt")
	if err := os.MkdirAll(filepath.Dir(foreign), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(foreign, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := store.PruneBefore(context.Background(), "cam1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected foreign file skipped, got %d removals", removed)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("expected foreign file kept: %v", err)
	}
}
