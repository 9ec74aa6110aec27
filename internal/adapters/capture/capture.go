// Package capture fetches snapshot frames from camera endpoints.
package capture

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"argus/internal/models"
	"argus/internal/pkg/errors"
	"argus/internal/ports"
)

const (
	requestTimeout = 20 * time.Second
	// maxFrameSize bounds a single capture body. Anything past this is not
	// a snapshot frame.
	maxFrameSize = 32 << 20
)

// HTTPCapturer implements ports.Capturer for cameras exposing a snapshot
// URL over http/https. Basic auth is applied when the resolved config
// carries credentials.
type HTTPCapturer struct {
	client *http.Client
}

func NewHTTPCapturer() *HTTPCapturer {
	return &HTTPCapturer{
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (c *HTTPCapturer) Capture(ctx context.Context, req ports.CaptureRequest) (*models.Snapshot, error) {
	if strings.HasPrefix(req.URL, "rtsp://") {
		return nil, errors.Validationf("rtsp capture is not supported yet, camera %s", req.ExternalID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "capture.request", "building capture request")
	}
	if req.Username != "" {
		httpReq.SetBasicAuth(req.Username, req.Password)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "capture.fetch", "fetching snapshot")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Newf(errors.CodeUnavailable, "capture http %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxFrameSize))
	if err != nil {
		return nil, errors.Wrap(err, "capture.read", "reading snapshot body")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.CodeUnavailable, "empty snapshot body")
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &models.Snapshot{
		CameraID:    req.CameraID,
		ExternalID:  req.ExternalID,
		CapturedAt:  time.Now().UTC(),
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
