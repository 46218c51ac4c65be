// Package textutil holds byte-level text helpers shared by the project model
// and the built-in analyzers: binary sniffing, line splitting and counting.
package textutil

import (
	"bytes"
	"strings"
)

// BinarySniffLength is how many leading bytes [IsBinary] inspects for a NUL.
const BinarySniffLength = 8000

// IsBinary reports whether data contains a NUL byte within its first
// BinarySniffLength bytes. Empty input is text.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// CountLines returns the number of lines in data. A trailing partial line
// counts; a trailing newline does not start a new line.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}

	return n
}

// Lines splits content into lines without their terminators. "\r\n" endings
// are normalised. The result has CountLines(content) entries.
func Lines(content string) []string {
	if content == "" {
		return nil
	}

	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

// LineStats summarises the physical lines of a text file.
type LineStats struct {
	Total int
	Blank int
}

// Code returns the number of non-blank lines.
func (s LineStats) Code() int {
	return s.Total - s.Blank
}

// CountLineStats counts total and whitespace-only lines in content.
func CountLineStats(content string) LineStats {
	lines := Lines(content)
	stats := LineStats{Total: len(lines)}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			stats.Blank++
		}
	}

	return stats
}
