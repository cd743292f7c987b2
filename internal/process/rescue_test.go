package process

import (
	"testing"
	"time"
)

func TestIdentityMatches(t *testing.T) {
	base := Record{
		ExeName:   "java",
		ExePath:   "/usr/bin/java",
		StartTime: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name      string
		exePath   string
		start     time.Time
		wantMatch bool
	}{
		{"exact match", "/usr/bin/java", base.StartTime, true},
		{"within tolerance", "/usr/bin/java", base.StartTime.Add(time.Second), true},
		{"different exe name", "/usr/bin/python3", base.StartTime, false},
		{"different path same name", "/opt/jdk/bin/java", base.StartTime, false},
		{"start time drifted", "/usr/bin/java", base.StartTime.Add(10 * time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := identityMatches(base, tc.exePath, tc.start)
			if got != tc.wantMatch {
				t.Errorf("identityMatches(%q, %v) = %v, want %v", tc.exePath, tc.start, got, tc.wantMatch)
			}
		})
	}
}
