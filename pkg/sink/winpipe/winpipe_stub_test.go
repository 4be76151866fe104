//go:build !windows

package winpipe

import "testing"

func TestNewFailsOnNonWindows(t *testing.T) {
	sk, err := New(`\\.\pipe\logmux-test`)
	if err == nil {
		t.Fatalf("expected an error on non-Windows platforms, got sink %v", sk)
	}
	if sk != nil {
		t.Fatalf("expected a nil sink alongside the error")
	}
}
