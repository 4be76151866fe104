//go:build !windows

package winpipe

import "fmt"

// New always fails on non-Windows platforms, mirroring the teacher's
// pkg/transports/winpipe_factory_stub.go.
func New(pipeName string) (Sink, error) {
	return nil, fmt.Errorf("winpipe sink is not supported on this platform")
}
