// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"orange-yak", "orange-yak", 0},
		{"orange-yak", "orange-yk", 1},
		{"flaw", "lawn", 2},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := levenshtein(test.b, test.a); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestClosestMatch(t *testing.T) {
	live := []string{"orange-yak", "misty-fern", "work"}
	if got := ClosestMatch("orange-yk", live); got != "orange-yak" {
		t.Errorf("ClosestMatch(orange-yk) = %q", got)
	}
	if got := ClosestMatch("wrok", live); got != "work" {
		t.Errorf("ClosestMatch(wrok) = %q", got)
	}
	if got := ClosestMatch("something-else", live); got != "" {
		t.Errorf("ClosestMatch(something-else) = %q, want none", got)
	}
	if got := ClosestMatch("x", nil); got != "" {
		t.Errorf("ClosestMatch over nothing = %q", got)
	}
}
