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

// Package drift compares desired entry fields against what Vault reports.
// Vault echoes values back in different shapes than they were written
// (comma joined strings, []interface{}, TTLs in seconds), so comparisons
// normalize both sides first.
package drift

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Result is the outcome of a comparison.
type Result struct {
	HasDrift bool

	// Fields names the differing fields in comparison order.
	Fields []string

	Summary string
}

// Comparator accumulates differing fields. Methods return the receiver so
// checks can be chained.
type Comparator struct {
	diffs []string
}

// NewComparator creates an empty comparator.
func NewComparator() *Comparator {
	return &Comparator{}
}

// List compares two values as unordered string lists. A comma separated
// string counts as a list and nil equals the empty list.
func (c *Comparator) List(field string, want, got interface{}) *Comparator {
	a, b := toStringSlice(want), toStringSlice(got)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) {
		c.diffs = append(c.diffs, field)
	}
	return c
}

// Scalar compares two values by their printed form, so 1, int64(1) and
// json.Number("1") are equal.
func (c *Comparator) Scalar(field string, want, got interface{}) *Comparator {
	if !valuesEqual(want, got) {
		c.diffs = append(c.diffs, field)
	}
	return c
}

// Duration compares a desired duration ("1h") with the reported value,
// usually seconds. An empty want is not compared.
func (c *Comparator) Duration(field, want string, got interface{}) *Comparator {
	if want == "" {
		return c
	}
	d, err := time.ParseDuration(want)
	if err != nil {
		c.diffs = append(c.diffs, field)
		return c
	}
	if reported, ok := toDuration(got); !ok || reported != d {
		c.diffs = append(c.diffs, field)
	}
	return c
}

// Map compares every key of want as a scalar, in sorted key order. Keys in
// skip are write-only and ignored; keys only present in got are ignored.
func (c *Comparator) Map(want, got map[string]interface{}, skip ...string) *Comparator {
	keys := make([]string, 0, len(want))
	for k := range want {
		if !slices.Contains(skip, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.Scalar(k, want[k], got[k])
	}
	return c
}

// Result returns the accumulated outcome.
func (c *Comparator) Result() Result {
	if len(c.diffs) == 0 {
		return Result{}
	}
	return Result{
		HasDrift: true,
		Fields:   slices.Clone(c.diffs),
		Summary:  "fields differ: " + strings.Join(c.diffs, ", "),
	}
}

// toStringSlice returns a fresh slice for []string, []interface{} and comma
// separated strings. Non-string items are dropped.
func toStringSlice(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return slices.Clone(val)
	case string:
		return SplitCommaList(val)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// SplitCommaList splits "a, b,c" into [a b c], dropping empty items.
func SplitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// toDuration converts a reported TTL (seconds as a number, json.Number or
// numeric string, or a duration string).
func toDuration(v interface{}) (time.Duration, bool) {
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Second, true
	case int64:
		return time.Duration(val) * time.Second, true
	case float64:
		return time.Duration(val) * time.Second, true
	case json.Number:
		n, err := val.Int64()
		return time.Duration(n) * time.Second, err == nil
	case string:
		if n, err := json.Number(val).Int64(); err == nil {
			return time.Duration(n) * time.Second, true
		}
		d, err := time.ParseDuration(val)
		return d, err == nil
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
