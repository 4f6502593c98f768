// Package capture keeps a live video source open and exposes its most recent
// frame to any number of readers.
package capture

import (
	"fmt"
	"net/url"
	"strconv"

	"gocv.io/x/gocv"
)

// Default local camera resolution.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Device is an opened video source. Read blocks until a frame is decoded or
// the source fails.
type Device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens a source descriptor.
type Opener func(descriptor string) (Device, error)

// OpenDevice opens descriptor with OpenCV. A numeric descriptor selects a
// local camera index; anything else is treated as a stream URL and opened
// through FFmpeg with a one-frame decode buffer so reads stay live.
func OpenDevice(descriptor string) (Device, error) {
	if descriptor == "" {
		return nil, fmt.Errorf("empty source descriptor")
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if index, convErr := strconv.Atoi(descriptor); convErr == nil {
		vc, err = gocv.OpenVideoCapture(index)
		if err == nil {
			vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
			vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		}
	} else {
		vc, err = gocv.OpenVideoCaptureWithAPI(descriptor, gocv.VideoCaptureFFmpeg)
		if err == nil {
			vc.Set(gocv.VideoCaptureBufferSize, 1)
		}
	}
	if err != nil {
		return nil, err
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("source did not open")
	}

	return vc, nil
}

// Redact hides the password in a stream URL so descriptors can be logged.
func Redact(descriptor string) string {
	u, err := url.Parse(descriptor)
	if err != nil || u.User == nil {
		return descriptor
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
