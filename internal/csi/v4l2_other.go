//go:build !linux

package csi

// DefaultDevice is the V4L2 node opened when none is configured
const DefaultDevice = "/dev/video0"

// NewV4L2 reports that V4L2 capture is only available on Linux
func NewV4L2(path string) (Controller, error) {
	return nil, ErrUnsupported
}
