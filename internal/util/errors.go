package util

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrQuizNotFound          = errors.New("quiz not found")
	ErrQuestionNotInQuiz     = errors.New("question does not belong to the quiz")
	ErrEmptySelection        = errors.New("multiple option answer has no selected options")
	ErrInvalidSchedule       = errors.New("quiz start time must be before end time")
	ErrInvalidAnswerBase     = errors.New("answer base does not match its question type")
	ErrUnscorableQuestion    = errors.New("question has no answer base to score against")
	ErrNoQuestionTypeEnabled = errors.New("at least one question type must be enabled")
	ErrAttemptNotFound       = errors.New("no attempt found for this student and quiz")
)

// MalformedGenerationError reports model output that could not be parsed
// into the expected JSON document. Snippet is capped at 500 characters.
type MalformedGenerationError struct {
	Snippet string
}

func (e *MalformedGenerationError) Error() string {
	return fmt.Sprintf("model output is not valid JSON: %s", e.Snippet)
}

// NewMalformedGenerationError trims the raw output to a loggable snippet,
// cutting on a rune boundary so multi-byte characters stay intact.
func NewMalformedGenerationError(raw string) *MalformedGenerationError {
	if len(raw) > 500 {
		cut := 500
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	return &MalformedGenerationError{Snippet: raw}
}

// GenerationFailedError wraps any cause that prevented quiz generation.
type GenerationFailedError struct {
	Cause error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("quiz generation failed: %v", e.Cause)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Cause
}
