package installer

import "testing"

func TestParseJavaMajorVersion(t *testing.T) {
	tests := []struct {
		output string
		want   int
	}{
		{`openjdk version "1.8.0_382"`, 8},
		{`openjdk version "17.0.8" 2023-07-18`, 17},
		{`openjdk version "21"`, 21},
		{"no quotes here", 0},
	}
	for _, tt := range tests {
		if got := parseJavaMajorVersion(tt.output); got != tt.want {
			t.Errorf("parseJavaMajorVersion(%q) = %d, want %d", tt.output, got, tt.want)
		}
	}
}
