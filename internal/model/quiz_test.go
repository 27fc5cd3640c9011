package model

import (
	"encoding/json"
	"testing"
)

func TestIntListRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   IntList
		want string
	}{
		{"nil list", nil, "[]"},
		{"empty list", IntList{}, "[]"},
		{"values", IntList{3, 1, 2}, "[3,1,2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.in.Value()
			if err != nil {
				t.Fatalf("Value error: %v", err)
			}
			if v.(string) != tt.want {
				t.Errorf("Value() = %q, want %q", v, tt.want)
			}

			var out IntList
			if err := out.Scan([]byte(tt.want)); err != nil {
				t.Fatalf("Scan error: %v", err)
			}
			if len(out) != len(tt.in) {
				t.Errorf("round trip lost elements: %v", out)
			}
			for i := range tt.in {
				if out[i] != tt.in[i] {
					t.Errorf("round trip changed order: %v", out)
				}
			}
		})
	}
}

func TestIntListScanNil(t *testing.T) {
	var l IntList
	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if l == nil || len(l) != 0 {
		t.Errorf("Scan(nil) = %v, want empty list", l)
	}
}

func TestAnswerBaseOptionList(t *testing.T) {
	base := &AnswerBase{
		Type:    AnswerBaseMultipleOption,
		Options: json.RawMessage(`["A","B"]`),
	}
	opts, err := base.OptionList()
	if err != nil {
		t.Fatalf("OptionList error: %v", err)
	}
	if len(opts) != 2 {
		t.Errorf("got %d options, want 2", len(opts))
	}

	text := &AnswerBase{Type: AnswerBaseText}
	if _, err := text.OptionList(); err == nil {
		t.Error("expected error for text variant")
	}
}

func TestAnswerSubmittedText(t *testing.T) {
	option := &AnswerSubmitted{Type: AnswerSubmittedMultipleOption, OptionSelect: "B", AnswerWritten: "ignored"}
	if got := option.Text(); got != "B" {
		t.Errorf("Text() = %q, want B", got)
	}

	written := &AnswerSubmitted{Type: AnswerSubmittedText, AnswerWritten: "respuesta"}
	if got := written.Text(); got != "respuesta" {
		t.Errorf("Text() = %q", got)
	}
}
