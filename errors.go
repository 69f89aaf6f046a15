// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package signalmonitor

import "errors"

// Fatal-to-Init errors, per spec.md §7 and the typed-error-variant note in
// spec.md §9 (the original source throws C-string literals; this repo
// returns these sentinels instead, wrapped with fmt.Errorf where the
// caller needs extra context).
var (
	ErrInvalidPin     = errors.New("signalmonitor: invalid pin")
	ErrPinBusy        = errors.New("signalmonitor: pin already in use")
	ErrGpioInitFailed = errors.New("signalmonitor: gpio initialization failed")
)
