// internal/util/util_test.go
package util

import "testing"

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "shorter than limit", in: "hello", max: 10, want: "hello"},
		{name: "exactly at limit", in: "hello", max: 5, want: "hello"},
		{name: "truncated", in: "hello world", max: 5, want: "hello…"},
		{name: "multibyte runes", in: "héllo wörld", max: 6, want: "héllo …"},
		{name: "empty", in: "", max: 3, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateRunes(tt.in, tt.max); got != tt.want {
				t.Fatalf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
