package model

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/src-d/enry/v2"
)

// ErrMetricExists is returned by [File.Measure] when the key was already set.
var ErrMetricExists = errors.New("metric already measured")

// File is one source file under analysis. Path and content never change;
// comments, line attributes, metrics and the fixed file are safe to mutate
// from concurrent analyzers.
type File struct {
	path    string
	content string

	mu             sync.Mutex
	comments       map[int][]Comment
	lineAttributes map[int]map[string]any
	metrics        map[string]float64
	fixed          *FixedFile
	language       *string
}

// NewFile creates a file record for the project-relative path.
func NewFile(filePath, content string) *File {
	return &File{
		path:           filePath,
		content:        content,
		comments:       make(map[int][]Comment),
		lineAttributes: make(map[int]map[string]any),
		metrics:        make(map[string]float64),
	}
}

// Path returns the project-relative, slash-separated path.
func (f *File) Path() string { return f.path }

// Content returns the original content.
func (f *File) Content() string { return f.content }

// Extension returns the file extension without the dot, or "".
func (f *File) Extension() string {
	return strings.TrimPrefix(path.Ext(f.path), ".")
}

// Language returns the linguist language name, detected on first use.
func (f *File) Language() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.language == nil {
		lang := enry.GetLanguage(path.Base(f.path), []byte(f.content))
		f.language = &lang
	}

	return *f.language
}

// AddComment appends c to the comments of line. Earlier comments on the
// same line keep their position.
func (f *File) AddComment(line int, c Comment) {
	f.mu.Lock()
	f.comments[line] = append(f.comments[line], c)
	f.mu.Unlock()
}

// Comments returns the comments of one line in insertion order.
func (f *File) Comments(line int) []Comment {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.comments[line])
}

// AllComments returns a copy of every line's comments.
func (f *File) AllComments() map[int][]Comment {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[int][]Comment, len(f.comments))
	for line, list := range f.comments {
		out[line] = slices.Clone(list)
	}

	return out
}

// CommentLines returns the lines that carry comments, ascending.
func (f *File) CommentLines() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Sorted(maps.Keys(f.comments))
}

// HasComments reports whether any line has a comment.
func (f *File) HasComments() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.comments) > 0
}

// SetLineAttribute stores value under key for line; the last write wins.
func (f *File) SetLineAttribute(line int, key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attrs, ok := f.lineAttributes[line]
	if !ok {
		attrs = make(map[string]any)
		f.lineAttributes[line] = attrs
	}

	attrs[key] = value
}

// LineAttribute returns one attribute of a line.
func (f *File) LineAttribute(line int, key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.lineAttributes[line][key]

	return v, ok
}

// LineAttributes returns a copy of all attributes of a line.
func (f *File) LineAttributes(line int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.lineAttributes[line])
}

// Measure records a file metric. Each key may be measured once.
func (f *File) Measure(key string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.metrics[key]; ok {
		return fmt.Errorf("%s: %s: %w", f.path, key, ErrMetricExists)
	}

	f.metrics[key] = value

	return nil
}

// Metric returns one file metric.
func (f *File) Metric(key string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.metrics[key]

	return v, ok
}

// Metrics returns a copy of the file metrics.
func (f *File) Metrics() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.metrics)
}

// FixedFile returns the proposed rewrite of this file, creating it from the
// original content on first access.
func (f *File) FixedFile() *FixedFile {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fixed == nil {
		f.fixed = &FixedFile{content: f.content}
	}

	return f.fixed
}

// HasFixedFile reports whether a fixed file was created.
func (f *File) HasFixedFile() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fixed != nil
}

// Patch returns a unified diff from the original to the fixed content.
// It returns false when no fixed file exists or the contents are equal.
func (f *File) Patch() (string, bool) {
	f.mu.Lock()
	fixed := f.fixed
	f.mu.Unlock()

	if fixed == nil {
		return "", false
	}

	after := fixed.Content()
	if after == f.content {
		return "", false
	}

	return UnifiedDiff(f.path, f.content, after), true
}

// Dump renders the comments as "Line N: message" lines, ascending by line and
// in insertion order within a line.
func (f *File) Dump() string {
	comments := f.AllComments()
	lines := slices.Sorted(maps.Keys(comments))

	var sb strings.Builder

	for _, line := range lines {
		for _, c := range comments[line] {
			fmt.Fprintf(&sb, "Line %d: %s\n", line, c)
		}
	}

	return sb.String()
}

// FixedFile holds the proposed content of a file.
type FixedFile struct {
	mu      sync.RWMutex
	content string
}

// Content returns the proposed content.
func (ff *FixedFile) Content() string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	return ff.content
}

// SetContent replaces the proposed content.
func (ff *FixedFile) SetContent(content string) {
	ff.mu.Lock()
	ff.content = content
	ff.mu.Unlock()
}
