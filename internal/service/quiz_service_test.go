package service

import (
	"errors"
	"testing"
	"time"

	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/util"
)

func TestValidateSchedule(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)

	tests := []struct {
		name    string
		start   *time.Time
		end     *time.Time
		wantErr bool
	}{
		{"both absent", nil, nil, false},
		{"only start", &base, nil, false},
		{"only end", nil, &later, false},
		{"valid window", &base, &later, false},
		{"start equals end", &base, &base, true},
		{"start after end", &later, &base, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.start, tt.end)
			if tt.wantErr && !errors.Is(err, util.ErrInvalidSchedule) {
				t.Errorf("got %v, want ErrInvalidSchedule", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildAnswerBase(t *testing.T) {
	t.Run("text variant", func(t *testing.T) {
		base, err := BuildAnswerBase(AnswerBaseSpec{Type: model.AnswerBaseText})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if base.Type != model.AnswerBaseText {
			t.Errorf("type = %q", base.Type)
		}
		if base.Options != nil {
			t.Error("text variant must not carry options")
		}
	})

	t.Run("multiple option variant", func(t *testing.T) {
		base, err := BuildAnswerBase(AnswerBaseSpec{
			Type:    model.AnswerBaseMultipleOption,
			Options: []string{"A", "B", "C"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		opts, err := base.OptionList()
		if err != nil {
			t.Fatalf("OptionList error: %v", err)
		}
		if len(opts) != 3 || opts[1] != "B" {
			t.Errorf("options = %v", opts)
		}
	})

	t.Run("multiple option without options", func(t *testing.T) {
		_, err := BuildAnswerBase(AnswerBaseSpec{Type: model.AnswerBaseMultipleOption})
		if !errors.Is(err, util.ErrInvalidAnswerBase) {
			t.Errorf("got %v, want ErrInvalidAnswerBase", err)
		}
	})

	t.Run("unknown discriminant", func(t *testing.T) {
		_, err := BuildAnswerBase(AnswerBaseSpec{Type: "base_audio"})
		if !errors.Is(err, util.ErrInvalidAnswerBase) {
			t.Errorf("got %v, want ErrInvalidAnswerBase", err)
		}
	})
}
