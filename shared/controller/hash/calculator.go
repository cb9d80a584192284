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

// Package hash provides content hashes used to decide whether a rendered
// policy document or a broadcast snapshot changed.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FromBytes returns the hex SHA256 of data, or "" for no data.
func FromBytes(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Document hashes a policy document after normalizing line endings and
// trailing whitespace on every line. A document with no content hashes
// to "".
func Document(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	normalized := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	return FromBytes([]byte(normalized))
}

// Differs reports whether live must be rewritten to match desired. A missing
// live hash always differs.
func Differs(live, desired string) bool {
	return live == "" || live != desired
}
