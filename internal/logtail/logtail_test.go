package logtail

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString("line " + strconv.Itoa(i) + "\n")
	}
	path := filepath.Join(t.TempDir(), "latest.log")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestTailMaxLinesZeroReturnsWholeFile(t *testing.T) {
	path := writeLines(t, 5)
	result, err := Tail(path, 0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if result.Truncated {
		t.Error("Tail(path, 0) reported truncated, want false")
	}
	if strings.Count(result.Content, "\n") != 5 {
		t.Errorf("Tail(path, 0) content = %q, want 5 lines", result.Content)
	}
}

func TestTailUpperBound(t *testing.T) {
	path := writeLines(t, 100)
	result, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	lines := strings.Split(strings.TrimRight(result.Content, "\n"), "\n")
	if len(lines) > 10 {
		t.Errorf("Tail(path, 10) returned %d lines, want at most 10", len(lines))
	}
	if !result.Truncated {
		t.Error("Tail(path, 10) on a 100-line file should report truncated")
	}
	if lines[len(lines)-1] != "line 100" {
		t.Errorf("last line = %q, want %q", lines[len(lines)-1], "line 100")
	}
}

func TestTailNotTruncatedWhenFileFitsEntirely(t *testing.T) {
	path := writeLines(t, 3)
	result, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if result.Truncated {
		t.Error("Tail with maxLines above the line count should not report truncated")
	}
}

func TestTailDecodesInvalidUTF8Lossily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.log")
	if err := os.WriteFile(path, []byte("before\xff\xfeafter\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	result, err := Tail(path, 0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !strings.Contains(result.Content, "before") || !strings.Contains(result.Content, "after") {
		t.Errorf("Tail lossy decode dropped valid text: %q", result.Content)
	}
	if !strings.ContainsRune(result.Content, '�') {
		t.Errorf("Tail lossy decode did not substitute invalid bytes: %q", result.Content)
	}
}
