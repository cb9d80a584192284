/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package driftmode resolves how live configuration that differs from the
// desired bundle is handled: per entry first, then the process default.
package driftmode

import (
	"fmt"
	"strings"
)

// Mode is a drift handling mode.
type Mode string

const (
	// Ignore skips comparing existing entries entirely.
	Ignore Mode = "ignore"

	// Detect reports drift but leaves the live entry untouched.
	Detect Mode = "detect"

	// Correct rewrites drifted entries.
	Correct Mode = "correct"
)

// Default is used when neither the entry nor the process sets a mode.
const Default = Correct

// Parse converts s into a Mode. The empty string parses to "" (unset).
func Parse(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", Ignore, Detect, Correct:
		return m, nil
	default:
		return "", fmt.Errorf("unknown drift mode %q, want ignore, detect or correct", s)
	}
}

// Resolve returns the effective mode: the entry's mode when set, then the
// process-wide mode, then Default.
func Resolve(entry, process Mode) Mode {
	if entry != "" {
		return entry
	}
	if process != "" {
		return process
	}
	return Default
}

// ShouldDetect reports whether existing entries are compared at all.
func (m Mode) ShouldDetect() bool {
	return m == Detect || m == Correct
}

// ShouldCorrect reports whether drifted entries are rewritten.
func (m Mode) ShouldCorrect() bool {
	return m == Correct
}
