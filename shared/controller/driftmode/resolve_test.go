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

package driftmode

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", "", false},
		{"ignore", Ignore, false},
		{"Detect", Detect, false},
		{" correct ", Correct, false},
		{"fix", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		entry   Mode
		process Mode
		want    Mode
	}{
		{"entry wins", Ignore, Detect, Ignore},
		{"process default", "", Detect, Detect},
		{"global default", "", "", Correct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.entry, tt.process); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModePredicates(t *testing.T) {
	tests := []struct {
		mode        Mode
		wantDetect  bool
		wantCorrect bool
	}{
		{Ignore, false, false},
		{Detect, true, false},
		{Correct, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.ShouldDetect(); got != tt.wantDetect {
				t.Errorf("ShouldDetect() = %v, want %v", got, tt.wantDetect)
			}
			if got := tt.mode.ShouldCorrect(); got != tt.wantCorrect {
				t.Errorf("ShouldCorrect() = %v, want %v", got, tt.wantCorrect)
			}
		})
	}
}
