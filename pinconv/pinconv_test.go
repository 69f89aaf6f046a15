// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pinconv

import "testing"

// The legacy/rev-1 board branch depends on the real host's /proc/cpuinfo
// (distro.Revision has no injection seam from outside its own package, and
// distro's own tests cover its parsing directly), so these cases only
// exercise the default 40-pin layout a non-Raspberry-Pi test host resolves
// to (distro.Revision() == 0 -> isLegacyBoard() == false).

func TestConvertDefaultAndGPIOPassThrough(t *testing.T) {
	for _, sys := range []System{SystemDefault, SystemGPIO} {
		got, err := Convert(17, sys)
		if err != nil || got != 17 {
			t.Errorf("Convert(17, %v) = (%d, %v), want (17, nil)", sys, got, err)
		}
	}
}

func TestConvertGPIOOutOfRange(t *testing.T) {
	if _, err := Convert(28, SystemGPIO); err == nil {
		t.Error("GPIO 28 should be rejected as out of range")
	}
	if _, err := Convert(-1, SystemGPIO); err == nil {
		t.Error("negative GPIO should be rejected")
	}
}

func TestConvertPhysKnownPins(t *testing.T) {
	cases := map[int]int{7: 4, 12: 18, 40: 21}
	for phys, wantBCM := range cases {
		got, err := Convert(phys, SystemPhys)
		if err != nil {
			t.Fatalf("Convert(%d, SystemPhys) error: %v", phys, err)
		}
		if got != wantBCM {
			t.Errorf("Convert(%d, SystemPhys) = %d, want %d", phys, got, wantBCM)
		}
	}
}

func TestConvertPhysGroundPinIsError(t *testing.T) {
	if _, err := Convert(1, SystemPhys); err == nil {
		t.Error("physical pin 1 (3.3V) should not resolve to a GPIO")
	}
	if _, err := Convert(6, SystemPhys); err == nil {
		t.Error("physical pin 6 (GND) should not resolve to a GPIO")
	}
}

func TestConvertWiringPi(t *testing.T) {
	got, err := Convert(0, SystemWiringPi)
	if err != nil || got != 17 {
		t.Errorf("Convert(0, SystemWiringPi) = (%d, %v), want (17, nil)", got, err)
	}
	if _, err := Convert(99, SystemWiringPi); err == nil {
		t.Error("WiringPi pin 99 should be rejected")
	}
}

func TestConvertUnknownSystem(t *testing.T) {
	if _, err := Convert(0, System(99)); err == nil {
		t.Error("unknown pin system should return an error")
	}
}
