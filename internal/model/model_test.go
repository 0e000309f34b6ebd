package model

import "testing"

func TestItemIDAfter(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same length lexicographic", a: "t3_1k9xp2", b: "t3_1k9wm8", want: true},
		{name: "same length reversed", a: "t3_1k9wm8", b: "t3_1k9xp2", want: false},
		{name: "equal ids", a: "t3_1k9xp2", b: "t3_1k9xp2", want: false},
		{name: "longer id is newer", a: "t3_100000", b: "t3_zzzzz", want: true},
		{name: "shorter id is older", a: "t3_zzzzz", b: "t3_100000", want: false},
		{name: "mixed prefixes compare payloads", a: "t1_m4ab9c", b: "m4aa01", want: true},
		{name: "bare ids", a: "z0007", b: "z0003", want: true},
		{name: "empty b", a: "t3_a", b: "", want: true},
		{name: "empty a", a: "", b: "t3_a", want: false},
		{name: "both empty", a: "", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemIDAfter(tt.a, tt.b); got != tt.want {
				t.Errorf("ItemIDAfter(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
