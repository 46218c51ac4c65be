package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DocumentNames lists the configuration file names looked up in a project
// root, in order of preference.
var DocumentNames = []string{
	".scrutinizer.yml",
	".scrutinizer.yaml",
	".scrutinizer.json",
	".scrutinizer.toml",
}

// ErrUnknownFormat is returned for documents with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown configuration format")

// FindDocument returns the first configuration document present in dir.
func FindDocument(dir string) (string, bool) {
	for _, name := range DocumentNames {
		candidate := filepath.Join(dir, name)

		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	return "", false
}

// LoadDocument reads and decodes the document at path. The format follows
// the file extension.
func LoadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config document: %w", err)
	}

	doc, err := ParseDocument(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc, nil
}

// ParseDocument decodes data in the given format: yml, yaml, json or toml.
// An empty document decodes to an empty map.
func ParseDocument(data []byte, format string) (map[string]any, error) {
	var (
		doc map[string]any
		err error
	)

	switch strings.ToLower(format) {
	case "yml", "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "json":
		if len(strings.TrimSpace(string(data))) > 0 {
			err = json.Unmarshal(data, &doc)
		}
	case "toml":
		_, err = toml.Decode(string(data), &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("decode %s document: %v", format, err)}
	}

	if doc == nil {
		doc = map[string]any{}
	}

	normalized, _ := Normalize(doc).(map[string]any)

	return normalized, nil
}
