// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package distro

import "testing"

// withFakeFile stubs readFile and clears the cached parse results around fn,
// restoring both afterward so tests don't leak state into each other.
func withFakeFile(t *testing.T, files map[string][]byte, fn func()) {
	t.Helper()
	origRead := readFile
	mu.Lock()
	origCPUInfo, origDTModel := cpuInfo, dtModel
	cpuInfo, dtModel = nil, ""
	mu.Unlock()

	readFile = func(name string) ([]byte, error) {
		if data, ok := files[name]; ok {
			return data, nil
		}
		return nil, &fileNotFoundError{name}
	}
	defer func() {
		readFile = origRead
		mu.Lock()
		cpuInfo, dtModel = origCPUInfo, origDTModel
		mu.Unlock()
	}()

	fn()
}

type fileNotFoundError struct{ name string }

func (e *fileNotFoundError) Error() string { return e.name + ": not found" }

func TestCPUInfoParsesColonSeparatedFields(t *testing.T) {
	withFakeFile(t, map[string][]byte{
		"/proc/cpuinfo": []byte("Hardware\t: BCM2835\nRevision\t: a02082\nSerial\t: 0000\n"),
	}, func() {
		info := CPUInfo()
		if info["Hardware"] != "BCM2835" {
			t.Errorf("Hardware = %q, want BCM2835", info["Hardware"])
		}
		if info["Revision"] != "a02082" {
			t.Errorf("Revision = %q, want a02082", info["Revision"])
		}
	})
}

func TestCPUInfoMissingFileYieldsEmptyMap(t *testing.T) {
	withFakeFile(t, map[string][]byte{}, func() {
		info := CPUInfo()
		if len(info) != 0 {
			t.Errorf("expected empty map, got %v", info)
		}
	})
}

func TestRevisionParsesHex(t *testing.T) {
	withFakeFile(t, map[string][]byte{
		"/proc/cpuinfo": []byte("Revision\t: 000a02082\n"),
	}, func() {
		if got := Revision(); got != 0xa02082 {
			t.Errorf("Revision() = %#x, want %#x", got, 0xa02082)
		}
	})
}

func TestRevisionAbsentIsZero(t *testing.T) {
	withFakeFile(t, map[string][]byte{
		"/proc/cpuinfo": []byte("Hardware\t: BCM2835\n"),
	}, func() {
		if got := Revision(); got != 0 {
			t.Errorf("Revision() = %d, want 0", got)
		}
	})
}

func TestDTModelReadsNullTerminatedString(t *testing.T) {
	withFakeFile(t, map[string][]byte{
		"/proc/device-tree/model": []byte("Raspberry Pi 4 Model B Rev 1.2\x00"),
	}, func() {
		if got := DTModel(); got != "Raspberry Pi 4 Model B Rev 1.2" {
			t.Errorf("DTModel() = %q", got)
		}
	})
}

func TestDTModelMissingFileIsUnknown(t *testing.T) {
	withFakeFile(t, map[string][]byte{}, func() {
		if got := DTModel(); got != "unknown" {
			t.Errorf("DTModel() = %q, want unknown", got)
		}
	})
}

func TestSplitSemiColonIgnoresCommentsAndKeepsFirstValue(t *testing.T) {
	got := splitSemiColon("#hidden: nope\nKey\t: first\nKey\t: second\n")
	if got["Key"] != "first" {
		t.Errorf("Key = %q, want first (first occurrence wins)", got["Key"])
	}
	if _, ok := got["#hidden"]; ok {
		t.Error("a line whose key starts with '#' should be treated as a comment")
	}
}
