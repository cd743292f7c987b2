// Package logtail is the log tail & censor of spec §4.K: a bounded
// backwards tail of a cluster's latest.log, with secret redaction
// applied to every byte before it reaches a caller. Reads the file in
// 64KiB chunks from the end, seeking backwards, rather than loading
// the whole file.
package logtail

import (
	"bytes"
	"os"
	"unicode/utf8"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// chunkSize is the read granularity spec §4.K specifies: read 64 KiB
// chunks backwards from the end of the file.
const chunkSize = 64 * 1024

// Result is the tail(cluster, max_lines) return shape of spec §4.K.
type Result struct {
	Content   string
	Truncated bool
}

// Tail reads path from its end backwards in chunkSize chunks until
// either the file origin is reached or the newline count exceeds
// maxLines. maxLines == 0 returns the whole file. The result is
// decoded as UTF-8 lossy, since Minecraft on Windows may emit
// non-UTF-8 bytes.
func Tail(path string, maxLines int) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	size := info.Size()

	if maxLines == 0 {
		buf := make([]byte, size)
		if _, err := f.ReadAt(buf, 0); err != nil && size > 0 {
			return Result{}, onelauncher.Wrap(onelauncher.KindIO, err, path)
		}
		return Result{Content: decodeLossy(buf), Truncated: false}, nil
	}

	var (
		collected   [][]byte
		newlines    int
		offset      = size
		hitOrigin   = offset == 0
		skippedByte bool
	)

	for offset > 0 && newlines <= maxLines {
		readSize := int64(chunkSize)
		if readSize > offset {
			readSize = offset
		}
		start := offset - readSize
		buf := make([]byte, readSize)
		if _, err := f.ReadAt(buf, start); err != nil {
			return Result{}, onelauncher.Wrap(onelauncher.KindIO, err, path)
		}
		newlines += bytes.Count(buf, []byte{'\n'})
		collected = append(collected, buf)
		offset = start
		if offset == 0 {
			hitOrigin = true
		}
	}

	// collected is oldest-chunk-last; reverse into file order.
	var whole []byte
	for i := len(collected) - 1; i >= 0; i-- {
		whole = append(whole, collected[i]...)
	}

	lines := bytes.Split(whole, []byte{'\n'})
	// A trailing empty element from a final '\n' shouldn't count as a
	// line when trimming to maxLines.
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > maxLines {
		skippedByte = true
		lines = lines[len(lines)-maxLines:]
	}

	content := bytes.Join(lines, []byte{'\n'})
	truncated := !hitOrigin || skippedByte
	return Result{Content: decodeLossy(content), Truncated: truncated}, nil
}

// decodeLossy mirrors Rust's String::from_utf8_lossy: invalid
// sequences become U+FFFD rather than erroring, since Minecraft on
// Windows can emit non-UTF-8 log bytes.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var out bytes.Buffer
	out.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			out.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		out.WriteRune(r)
		b = b[size:]
	}
	return out.String()
}
