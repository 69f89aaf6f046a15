// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fsevent

import (
	"os"
	"testing"
)

func TestOpenRegularFile(t *testing.T) {
	f, err := Open(os.DevNull, os.O_RDONLY)
	if err != nil {
		t.Fatalf("Open(%s) error: %v", os.DevNull, err)
	}
	defer f.Close()
}

func TestOpenMissingPath(t *testing.T) {
	if _, err := Open("/nonexistent/path/for/fsevent/tests", os.O_RDONLY); err == nil {
		t.Fatal("expected an error opening a nonexistent path")
	}
}

func TestMakeEventRejectsBadFd(t *testing.T) {
	var e Event
	if err := e.MakeEvent(^uintptr(0)); err == nil {
		t.Fatal("expected MakeEvent to reject an invalid file descriptor")
	}
}

func TestIoctlOnRegularFileFails(t *testing.T) {
	f, err := Open(os.DevNull, os.O_RDONLY)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer f.Close()

	// 0 is not a valid ioctl request for a character device like /dev/null;
	// the call should fail rather than silently succeed.
	if err := f.Ioctl(0, 0); err == nil {
		t.Error("expected Ioctl(0, 0) on /dev/null to fail")
	}
}

// TestInhibitPanicsOnceAFileHasBeenOpened exercises Inhibit's documented
// guard. It must run last (Go runs tests in source order within a file):
// Inhibit has no Uninhibit, so calling it successfully would poison every
// later Open() in this binary. Since the tests above it already opened a
// file, `used` is already set and Inhibit() is expected to panic instead,
// which is itself the behavior the doc comment promises.
func TestInhibitPanicsOnceAFileHasBeenOpened(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Inhibit() should panic once a file has already been opened")
		}
	}()
	Inhibit()
}
