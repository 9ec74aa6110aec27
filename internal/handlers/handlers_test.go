package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	eventsv0 "argus/internal/contracts/events/v0"
	"argus/internal/models"
	"argus/internal/pkg/logger"
	"argus/internal/ports"
)

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Config{Level: "debug", Format: "json", Output: buf})
}

func snapshotEvent(externalID string) models.Event {
	ev := models.NewEvent(models.EventSnapshot, "id-"+externalID, externalID)
	ev.Snapshot = &models.Snapshot{
		CameraID:    "id-" + externalID,
		ExternalID:  externalID,
		CapturedAt:  time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC),
		ContentType: "image/jpeg",
		Size:        4,
		Data:        []byte{0xff, 0xd8, 0xff, 0xd9},
	}
	return ev
}

// ---- broadcast ----

type fakeBus struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (b *fakeBus) Provider() string { return "fake" }

func (b *fakeBus) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.subjects = append(b.subjects, subject)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *fakeBus) Ping(ctx context.Context) error { return nil }
func (b *fakeBus) Close() error                   { return nil }

func TestBroadcastPublishesEnvelope(t *testing.T) {
	bus := &fakeBus{}
	h := NewBroadcast(bus, "", testLogger(&bytes.Buffer{}))

	ev := snapshotEvent("cam1")
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bus.subjects) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(bus.subjects))
	}
	if bus.subjects[0] != "argus.snapshots.cam1" {
		t.Errorf("expected default subject, got %q", bus.subjects[0])
	}

	var spec eventsv0.EventSpec
	if err := json.Unmarshal(bus.payloads[0], &spec); err != nil {
		t.Fatalf("payload is not a valid envelope: %v", err)
	}
	if spec.Kind != "snapshot" || spec.ExternalID != "cam1" {
		t.Errorf("unexpected envelope: %+v", spec)
	}
	if spec.ObjectKey != ev.Snapshot.ObjectKey() {
		t.Errorf("expected object key %q, got %q", ev.Snapshot.ObjectKey(), spec.ObjectKey)
	}
	if strings.Contains(string(bus.payloads[0]), `"data"`) {
		t.Error("snapshot payload bytes must not travel on the bus")
	}
}

func TestBroadcastCustomPrefix(t *testing.T) {
	bus := &fakeBus{}
	h := NewBroadcast(bus, "site7.cams", testLogger(&bytes.Buffer{}))

	ev := models.NewEvent(models.EventCameraOffline, "id-cam2", "cam2")
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bus.subjects[0] != "site7.cams.cam2" {
		t.Errorf("expected custom subject, got %q", bus.subjects[0])
	}
}

func TestBroadcastBusFailure(t *testing.T) {
	bus := &fakeBus{err: fmt.Errorf("connection reset")}
	h := NewBroadcast(bus, "", testLogger(&bytes.Buffer{}))

	err := h.HandleEvent(context.Background(), snapshotEvent("cam1"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("expected cause preserved, got %v", err)
	}
}

// ---- persistence ----

type fakeRecorder struct {
	inserted []models.Event
	cutoffs  []time.Time
	err      error
}

func (r *fakeRecorder) Insert(ctx context.Context, ev models.Event) error {
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, ev)
	return nil
}

func (r *fakeRecorder) DeleteBefore(ctx context.Context, externalID string, cutoff time.Time) (int64, error) {
	r.cutoffs = append(r.cutoffs, cutoff)
	return 1, nil
}

func TestPersistenceRecordsSnapshotsOnly(t *testing.T) {
	repo := &fakeRecorder{}
	h := NewPersistence(repo, testLogger(&bytes.Buffer{}))

	if err := h.HandleEvent(context.Background(), models.NewEvent(models.EventCaptureFailed, "id-cam1", "cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("expected non-snapshot events ignored, got %d inserts", len(repo.inserted))
	}

	ev := snapshotEvent("cam1")
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ID != ev.ID {
		t.Errorf("expected snapshot event inserted, got %+v", repo.inserted)
	}
	if len(repo.cutoffs) != 0 {
		t.Errorf("expected no metadata prune without retention, got %v", repo.cutoffs)
	}
}

func TestPersistencePrunesMetadata(t *testing.T) {
	repo := &fakeRecorder{}
	h := NewPersistence(repo, testLogger(&bytes.Buffer{}))

	ev := snapshotEvent("cam1")
	ev.RetentionDays = 30
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.cutoffs) != 1 {
		t.Fatalf("expected one metadata prune, got %d", len(repo.cutoffs))
	}
	want := ev.OccurredAt.AddDate(0, 0, -30)
	if !repo.cutoffs[0].Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, repo.cutoffs[0])
	}
}

func TestPersistenceRepositoryFailure(t *testing.T) {
	repo := &fakeRecorder{err: fmt.Errorf("duplicate key")}
	h := NewPersistence(repo, testLogger(&bytes.Buffer{}))

	err := h.HandleEvent(context.Background(), snapshotEvent("cam1"))
	if err == nil || !strings.Contains(err.Error(), "duplicate key") {
		t.Errorf("expected repository failure surfaced, got %v", err)
	}
}

// ---- poll control ----

type fakeController struct {
	mu      sync.Mutex
	adjusts map[string][]time.Duration
	base    time.Duration
	baseErr error
}

func newFakeController(base time.Duration) *fakeController {
	return &fakeController{adjusts: make(map[string][]time.Duration), base: base}
}

func (c *fakeController) AdjustSleep(externalID string, sleep time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adjusts[externalID] = append(c.adjusts[externalID], sleep)
	return nil
}

func (c *fakeController) BaseSleep(externalID string) (time.Duration, error) {
	if c.baseErr != nil {
		return 0, c.baseErr
	}
	return c.base, nil
}

func failedEvent(externalID string) models.Event {
	ev := models.NewEvent(models.EventCaptureFailed, "id-"+externalID, externalID)
	ev.Error = "capture timeout"
	return ev
}

func TestPollControlSlowsAfterThreshold(t *testing.T) {
	ctrl := newFakeController(5 * time.Second)
	h := NewPollControl(testLogger(&bytes.Buffer{}))
	h.SetController(ctrl)

	for i := 0; i < slowFailureThreshold-1; i++ {
		if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(ctrl.adjusts["cam1"]) != 0 {
		t.Fatalf("expected no adjustment below threshold, got %v", ctrl.adjusts["cam1"])
	}

	if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ctrl.adjusts["cam1"]; len(got) != 1 || got[0] != slowedSleep {
		t.Fatalf("expected one slow adjustment, got %v", got)
	}

	// Further failures do not re-adjust an already slowed camera.
	if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctrl.adjusts["cam1"]) != 1 {
		t.Errorf("expected slow applied once, got %v", ctrl.adjusts["cam1"])
	}
}

func TestPollControlRestoresOnRecovery(t *testing.T) {
	ctrl := newFakeController(5 * time.Second)
	h := NewPollControl(testLogger(&bytes.Buffer{}))
	h.SetController(ctrl)

	for i := 0; i < slowFailureThreshold; i++ {
		if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := h.HandleEvent(context.Background(), snapshotEvent("cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ctrl.adjusts["cam1"]
	if len(got) != 2 || got[1] != 5*time.Second {
		t.Fatalf("expected restore to resolved sleep, got %v", got)
	}

	// A clean camera that recovers again is not re-restored.
	if err := h.HandleEvent(context.Background(), snapshotEvent("cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctrl.adjusts["cam1"]) != 2 {
		t.Errorf("expected no extra adjustments, got %v", ctrl.adjusts["cam1"])
	}

	// The failure streak starts over after recovery.
	for i := 0; i < slowFailureThreshold-1; i++ {
		if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(ctrl.adjusts["cam1"]) != 2 {
		t.Errorf("expected streak reset by recovery, got %v", ctrl.adjusts["cam1"])
	}
}

func TestPollControlTracksCamerasIndependently(t *testing.T) {
	ctrl := newFakeController(5 * time.Second)
	h := NewPollControl(testLogger(&bytes.Buffer{}))
	h.SetController(ctrl)

	for i := 0; i < slowFailureThreshold; i++ {
		if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := h.HandleEvent(context.Background(), failedEvent("cam2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ctrl.adjusts["cam1"]) != 1 {
		t.Errorf("expected cam1 slowed, got %v", ctrl.adjusts["cam1"])
	}
	if len(ctrl.adjusts["cam2"]) != 0 {
		t.Errorf("expected cam2 untouched, got %v", ctrl.adjusts["cam2"])
	}
}

func TestPollControlWithoutController(t *testing.T) {
	h := NewPollControl(testLogger(&bytes.Buffer{}))

	for i := 0; i < slowFailureThreshold+2; i++ {
		if err := h.HandleEvent(context.Background(), failedEvent("cam1")); err != nil {
			t.Fatalf("expected unbound controller to be harmless, got %v", err)
		}
	}
}

// ---- storage ----

type fakeStore struct {
	mu     sync.Mutex
	saved  map[string][]byte
	prunes []time.Time
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (s *fakeStore) Provider() string { return "fake" }

func (s *fakeStore) Save(ctx context.Context, in ports.SaveObjectInput) (ports.SaveObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return ports.SaveObjectOutput{}, s.err
	}
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.SaveObjectOutput{}, err
	}
	s.saved[in.ObjectKey] = data
	return ports.SaveObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (s *fakeStore) Open(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, fmt.Errorf("not implemented")
}

func (s *fakeStore) Delete(ctx context.Context, objectKey string) error { return nil }

func (s *fakeStore) PruneBefore(ctx context.Context, externalID string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.prunes = append(s.prunes, cutoff)
	return 2, nil
}

func TestStorageSavesSnapshot(t *testing.T) {
	store := newFakeStore()
	h := NewStorage(store, testLogger(&bytes.Buffer{}))

	ev := snapshotEvent("cam1")
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok := store.saved[ev.Snapshot.ObjectKey()]
	if !ok {
		t.Fatalf("expected object at %q, saved: %v", ev.Snapshot.ObjectKey(), store.saved)
	}
	if !bytes.Equal(data, ev.Snapshot.Data) {
		t.Error("stored payload differs from capture")
	}
	if len(store.prunes) != 0 {
		t.Errorf("expected no prune without retention, got %v", store.prunes)
	}
}

func TestStorageIgnoresNonSnapshots(t *testing.T) {
	store := newFakeStore()
	h := NewStorage(store, testLogger(&bytes.Buffer{}))

	if err := h.HandleEvent(context.Background(), models.NewEvent(models.EventCameraOnline, "id-cam1", "cam1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("expected nothing saved, got %v", store.saved)
	}
}

func TestStoragePrunesRetentionWindow(t *testing.T) {
	store := newFakeStore()
	h := NewStorage(store, testLogger(&bytes.Buffer{}))

	ev := snapshotEvent("cam1")
	ev.RetentionDays = 7
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.prunes) != 1 {
		t.Fatalf("expected one prune, got %d", len(store.prunes))
	}
	want := ev.OccurredAt.AddDate(0, 0, -7)
	if !store.prunes[0].Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, store.prunes[0])
	}
}

func TestStoragePruneFailureDoesNotFailHandler(t *testing.T) {
	store := newFakeStore()
	buf := &bytes.Buffer{}
	h := NewStorage(store, testLogger(buf))

	ev := snapshotEvent("cam1")
	ev.RetentionDays = 7

	// First save succeeds, then the store starts failing for the prune.
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pruneFail := &pruneFailingStore{fakeStore: newFakeStore()}
	h = NewStorage(pruneFail, testLogger(buf))
	if err := h.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected prune failure swallowed, got %v", err)
	}
	if !strings.Contains(buf.String(), "snapshot prune failed") {
		t.Error("expected prune failure logged")
	}
}

type pruneFailingStore struct {
	*fakeStore
}

func (s *pruneFailingStore) PruneBefore(ctx context.Context, externalID string, cutoff time.Time) (int, error) {
	return 0, fmt.Errorf("disk gone")
}

func TestStorageSaveFailure(t *testing.T) {
	store := newFakeStore()
	store.err = fmt.Errorf("no space left")
	h := NewStorage(store, testLogger(&bytes.Buffer{}))

	err := h.HandleEvent(context.Background(), snapshotEvent("cam1"))
	if err == nil || !strings.Contains(err.Error(), "no space left") {
		t.Errorf("expected save failure surfaced, got %v", err)
	}
}
