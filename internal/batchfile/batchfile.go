// Package batchfile reads batch requests from JSON, YAML or TOML files.
package batchfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/focusd/internal/batch"
)

// Format names a batch file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// .json, .yaml, .yml and .toml.
	ErrUnsupportedFormat = errors.New("unsupported batch file format")

	// ErrInvalidBatchFile is returned when a file cannot be decoded.
	ErrInvalidBatchFile = errors.New("invalid batch file")
)

// maxFileSize caps how much of a batch file is read.
const maxFileSize = 4 << 20

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads the batch request at path. A path of "-" reads JSON from stdin.
func Load(path string) (*batch.Request, error) {
	if path == "-" {
		return Decode(os.Stdin, FormatJSON)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	req, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// Decode reads one batch request in format from r. Unknown keys are errors.
func Decode(r io.Reader, format Format) (*batch.Request, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidBatchFile, maxFileSize)
	}

	var req batch.Request
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchFile, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: empty document", ErrInvalidBatchFile)
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchFile, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchFile, err)
		}
		if undecoded := undecodedKeys(md); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidBatchFile, strings.Join(undecoded, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &req, nil
}

// undecodedKeys lists keys TOML left unmapped, ignoring anything under a
// payload table since payloads are free-form.
func undecodedKeys(md toml.MetaData) []string {
	var keys []string
	for _, k := range md.Undecoded() {
		if containsPayload(k) {
			continue
		}
		keys = append(keys, k.String())
	}
	return keys
}

func containsPayload(k toml.Key) bool {
	for _, part := range k {
		if part == "payload" {
			return true
		}
	}
	return false
}
