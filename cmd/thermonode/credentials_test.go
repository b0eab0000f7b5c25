package main

import "testing"

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "****"},
		{"ab", "****"},
		{"secret123", "s****3"},
		{"ñé", "****"},
		{"éclair ü", "é****ü"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
