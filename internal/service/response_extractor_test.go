package service

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"kiwi_quiz_service/internal/util"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tagged fenced block with surrounding noise",
			input: "noise ```json {\"a\":1} ``` trailing",
			want:  `{"a":1}`,
		},
		{
			name:  "untagged fenced block",
			input: "```\n{\"b\": 2}\n```",
			want:  `{"b": 2}`,
		},
		{
			name:  "bare braces inside prose",
			input: "the model says {\"c\": 3} and nothing else",
			want:  `{"c": 3}`,
		},
		{
			name:  "whole input is the object",
			input: "  {\"d\": 4}  ",
			want:  `{"d": 4}`,
		},
		{
			name:  "single quotes repaired",
			input: "{'a': 1}",
			want:  `{"a": 1}`,
		},
		{
			name:  "tagged block preferred over loose braces",
			input: "{broken ```json {\"keep\": true} ```",
			want:  `{"keep": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if err != nil {
				t.Fatalf("ExtractJSONObject(%q) error: %v", tt.input, err)
			}

			var gotVal, wantVal interface{}
			if err := json.Unmarshal(got, &gotVal); err != nil {
				t.Fatalf("result is not valid JSON: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &wantVal); err != nil {
				t.Fatalf("bad want fixture: %v", err)
			}

			gotNorm, _ := json.Marshal(gotVal)
			wantNorm, _ := json.Marshal(wantVal)
			if string(gotNorm) != string(wantNorm) {
				t.Errorf("got %s, want %s", gotNorm, wantNorm)
			}
		})
	}
}

func TestExtractJSONObjectUnparseable(t *testing.T) {
	input := "this is not json at all" + strings.Repeat(" filler", 200)

	_, err := ExtractJSONObject(input)
	if err == nil {
		t.Fatal("expected error for unparseable input")
	}

	var malformed *util.MalformedGenerationError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedGenerationError, got %T", err)
	}
	if len(malformed.Snippet) > 500 {
		t.Errorf("snippet length %d exceeds 500", len(malformed.Snippet))
	}
	if !strings.HasPrefix(input, malformed.Snippet) {
		t.Error("snippet is not a prefix of the original text")
	}
}
