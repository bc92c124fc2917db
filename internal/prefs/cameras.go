package prefs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const MaxCameras = 3

const (
	KeyCamerasCount = "cameras.count"
	KeyDebugDisplay = "system.debug_display"
	KeyAnalyticsID  = "system.analytics_id"
	keyCameraURL    = "cameras.url."
	keyCameraLabel  = "cameras.label."
)

func CameraURLKey(index int) string   { return keyCameraURL + strconv.Itoa(index) }
func CameraLabelKey(index int) string { return keyCameraLabel + strconv.Itoa(index) }

// CameraCount returns cameras.count clamped to 1..MaxCameras. It defaults to
// MaxCameras.
func CameraCount(s Store) int {
	n := Int(s, KeyCamerasCount, MaxCameras)
	if n < 1 {
		return 1
	}
	if n > MaxCameras {
		return MaxCameras
	}
	return n
}

// Cameras returns the URL of every configured camera, keyed by index 1..N.
// Every camera up to cameras.count must have a URL.
func Cameras(s Store) (map[int]string, error) {
	n := CameraCount(s)
	urls := make(map[int]string, n)
	for i := 1; i <= n; i++ {
		url := strings.TrimSpace(String(s, CameraURLKey(i), ""))
		if url == "" {
			return nil, errors.Errorf("camera %d: %s is not set", i, CameraURLKey(i))
		}
		urls[i] = url
	}
	return urls, nil
}

// Label returns the display label of a camera, defaulting to "Camera N".
func Label(s Store, index int) string {
	if l := strings.TrimSpace(String(s, CameraLabelKey(index), "")); l != "" {
		return l
	}
	return "Camera " + strconv.Itoa(index)
}

func DebugDisplay(s Store) bool {
	return Bool(s, KeyDebugDisplay, false)
}

func AnalyticsID(s Store) string {
	return strings.TrimSpace(String(s, KeyAnalyticsID, ""))
}
