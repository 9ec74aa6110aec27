package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"argus/internal/ports"
)

// LocalFS implements ports.SnapshotStore on the local filesystem. Objects
// live under root at their object key, so a camera's captures form a
// <external_id>/YYYY/MM/DD tree that PruneBefore can walk.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) Save(ctx context.Context, in ports.SaveObjectInput) (ports.SaveObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.SaveObjectOutput{}, fmt.Errorf("object_key is required")
	}

	dst := filepath.Join(l.root, filepath.FromSlash(in.ObjectKey))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.SaveObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.SaveObjectOutput{}, err
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.SaveObjectOutput{}, err
	}

	return ports.SaveObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (l *LocalFS) Open(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	p := filepath.Join(l.root, filepath.FromSlash(objectKey))
	f, err := os.Open(p)
	if err != nil {
		return nil, "", 0, err
	}

	st, statErr := f.Stat()
	if statErr == nil {
		size = st.Size()
	}

	// Prefer extension-based type. If empty, sniff first bytes.
	contentType = mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, 0)
		contentType = http.DetectContentType(buf[:n])
	}

	return f, contentType, size, nil
}

func (l *LocalFS) Delete(ctx context.Context, objectKey string) error {
	p := filepath.Join(l.root, filepath.FromSlash(objectKey))
	return os.Remove(p)
}

// PruneBefore removes the camera's objects captured before cutoff, reading
// the capture time back out of each object key. Files that do not follow
// the key layout are left alone.
func (l *LocalFS) PruneBefore(ctx context.Context, externalID string, cutoff time.Time) (int, error) {
	base := filepath.Join(l.root, filepath.FromSlash(externalID))
	removed := 0

	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return nil
		}
		ts, ok := parseObjectTime(filepath.ToSlash(rel))
		if !ok || !ts.Before(cutoff) {
			return nil
		}

		if err := os.Remove(p); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}

	sweepEmptyDirs(base)
	return removed, nil
}

// parseObjectTime recovers the capture time from "YYYY/MM/DD/HHMMSS.mmm.ext".
func parseObjectTime(rel string) (time.Time, bool) {
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	ts, err := time.Parse("2006/01/02/150405.000", path.Dir(rel)+"/"+name)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// sweepEmptyDirs drops date directories a prune emptied out. os.Remove
// refuses non-empty directories, so a blind deepest-first pass is enough.
func sweepEmptyDirs(base string) {
	var dirs []string
	_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && p != base {
			dirs = append(dirs, p)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}
