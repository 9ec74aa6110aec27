package models

import (
	"strings"
	"time"
)

// RecordingStatus is the state of a camera's cloud recording plan.
type RecordingStatus string

const (
	RecordingOn     RecordingStatus = "on"
	RecordingOff    RecordingStatus = "off"
	RecordingPaused RecordingStatus = "paused"
)

// Camera is a read-only catalog entry for one network capture device.
// The external ID doubles as the worker identity.
type Camera struct {
	ID               string          `json:"id"`
	ExternalID       string          `json:"external_id"`
	Vendor           string          `json:"vendor"`
	VendorExternalID string          `json:"vendor_external_id,omitempty"`
	SnapshotURL      string          `json:"snapshot_url"`
	Username         string          `json:"username,omitempty"`
	Password         string          `json:"-"`
	Timezone         string          `json:"timezone,omitempty"`
	PollSleep        time.Duration   `json:"poll_sleep,omitempty"`
	InitialSleep     time.Duration   `json:"initial_sleep,omitempty"`
	CloudRecording   *CloudRecording `json:"cloud_recording,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CloudRecording describes how a camera records: whether it is enabled, how
// many snapshots per minute, which weekly windows apply, and how many days
// of snapshots to retain.
type CloudRecording struct {
	Status          RecordingStatus `json:"status"`
	Frequency       int             `json:"frequency,omitempty"`
	StorageDuration int             `json:"storage_duration,omitempty"`
	Schedule        Schedule        `json:"schedule,omitempty"`
}

// Schedule maps lowercase weekday names to "HH:MM-HH:MM" windows.
// A nil or empty schedule means always active.
type Schedule map[string][]string

// ActiveAt reports whether t falls inside one of the day's windows. The
// caller converts t into the camera's timezone first. Windows whose end is
// before their start wrap past midnight. Malformed windows are skipped.
func (s Schedule) ActiveAt(t time.Time) bool {
	if len(s) == 0 {
		return true
	}

	day := strings.ToLower(t.Weekday().String())
	windows := s[day]
	if len(windows) == 0 {
		return false
	}

	minute := t.Hour()*60 + t.Minute()
	for _, w := range windows {
		start, end, ok := parseWindow(w)
		if !ok {
			continue
		}
		if start <= end {
			if minute >= start && minute < end {
				return true
			}
		} else {
			// Wraps midnight, e.g. "22:00-06:00"
			if minute >= start || minute < end {
				return true
			}
		}
	}
	return false
}

// parseWindow parses "HH:MM-HH:MM" into minutes since midnight.
func parseWindow(w string) (start, end int, ok bool) {
	parts := strings.SplitN(w, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok = parseMinute(strings.TrimSpace(parts[0]))
	if !ok {
		return 0, 0, false
	}
	end, ok = parseMinute(strings.TrimSpace(parts[1]))
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

func parseMinute(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
