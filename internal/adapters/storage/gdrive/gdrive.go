package gdrive

import (
	"context"
	"fmt"
	"io"
	"time"

	"argus/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Client implements ports.SnapshotStore backed by Google Drive.
// Save returns the Drive fileId as the object key, so Open/Delete use it.
// The deterministic capture key becomes the Drive file name.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) Save(ctx context.Context, in ports.SaveObjectInput) (ports.SaveObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.SaveObjectOutput{}, fmt.Errorf("object_key is required")
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.SaveObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	return ports.SaveObjectOutput{ObjectKey: created.Id, Size: in.Size}, nil
}

func (c *Client) Open(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	resp, err := c.srv.Files.Get(objectKey).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, "", 0, err
	}

	contentType = resp.Header.Get("Content-Type")
	size = resp.ContentLength
	return resp.Body, contentType, size, nil
}

func (c *Client) Delete(ctx context.Context, objectKey string) error {
	return c.srv.Files.Delete(objectKey).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

// PruneBefore: v0 no-op. Drive keys are fileIds, not date paths, so the
// retention window would need a Files.List query per camera. Report zero
// until that lands.
func (c *Client) PruneBefore(ctx context.Context, externalID string, cutoff time.Time) (int, error) {
	return 0, nil
}
