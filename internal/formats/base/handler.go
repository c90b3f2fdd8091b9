// Package base provides common functionality and utilities for format handlers.
// It reduces code duplication by abstracting the scanning and fallback
// patterns shared by the built-in readers and writers.
package base

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
)

// SniffLimit is the number of leading bytes inspected by sniffers.
const SniffLimit = 4096

// SniffConfig contains configuration for content detection.
type SniffConfig struct {
	// Prefixes are magic byte strings; matching any one detects the format.
	Prefixes [][]byte
	// ContentMarkers are strings that must all be present in the first
	// SniffLimit bytes.
	ContentMarkers []string
	// FoldCase compares ContentMarkers case-insensitively.
	FoldCase bool
	// CustomValidator is an optional function for additional validation.
	CustomValidator func(data []byte) bool
}

// Sniffer builds a plugins.Format Sniff function from config.
func Sniffer(config SniffConfig) func([]byte) bool {
	return func(data []byte) bool {
		for _, p := range config.Prefixes {
			if bytes.HasPrefix(data, p) {
				return true
			}
		}

		head := data
		if len(head) > SniffLimit {
			head = head[:SniffLimit]
		}
		if len(config.ContentMarkers) > 0 {
			content := string(head)
			if config.FoldCase {
				content = strings.ToLower(content)
			}
			allMarkersFound := true
			for _, marker := range config.ContentMarkers {
				if config.FoldCase {
					marker = strings.ToLower(marker)
				}
				if !strings.Contains(content, marker) {
					allMarkersFound = false
					break
				}
			}
			if allMarkersFound {
				return true
			}
		}

		return config.CustomValidator != nil && config.CustomValidator(head)
	}
}

// DecodeText converts input to a UTF-8 string. An empty charset means
// UTF-8; a leading byte order mark is dropped. Invalid UTF-8 sequences are
// replaced with U+FFFD and reported through the second result.
func DecodeText(format string, input []byte, charset string) (string, bool, error) {
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil || enc == nil {
			return "", false, &apperrors.ParseError{
				Kind:   apperrors.ParseUnsupportedFormat,
				Format: format,
				Reason: fmt.Sprintf("unknown charset %q", charset),
				Err:    err,
			}
		}
		decoded, err := enc.NewDecoder().Bytes(input)
		if err != nil {
			return "", false, &apperrors.ParseError{
				Kind:   apperrors.ParseInvalid,
				Format: format,
				Reason: "charset decoding failed",
				Err:    err,
			}
		}
		input = decoded
	}

	input = bytes.TrimPrefix(input, []byte("\xef\xbb\xbf"))
	if utf8.Valid(input) {
		return string(input), false, nil
	}
	return strings.ToValidUTF8(string(input), "�"), true, nil
}

// UnsupportedOperationError returns a standard error for unsupported operations.
func UnsupportedOperationError(operation, format string) error {
	return apperrors.NewUnsupported(operation, fmt.Sprintf("%s format does not support %s", format, operation))
}
