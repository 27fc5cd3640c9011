package util

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewMalformedGenerationErrorSnippetCap(t *testing.T) {
	raw := strings.Repeat("x", 1200)
	err := NewMalformedGenerationError(raw)
	if len(err.Snippet) != 500 {
		t.Errorf("snippet length = %d, want 500", len(err.Snippet))
	}

	short := NewMalformedGenerationError("short output")
	if short.Snippet != "short output" {
		t.Errorf("short snippet = %q", short.Snippet)
	}
}

func TestNewMalformedGenerationErrorRuneBoundary(t *testing.T) {
	// 200 three-byte runes: the 500-byte cap lands mid-rune.
	raw := strings.Repeat("€", 200)
	err := NewMalformedGenerationError(raw)

	if len(err.Snippet) > 500 {
		t.Errorf("snippet length = %d, want at most 500", len(err.Snippet))
	}
	if !utf8.ValidString(err.Snippet) {
		t.Error("snippet is not valid UTF-8")
	}
	if !strings.HasPrefix(raw, err.Snippet) {
		t.Error("snippet is not a prefix of the original text")
	}
}

func TestGenerationFailedErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &GenerationFailedError{Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is does not reach the cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}
}
