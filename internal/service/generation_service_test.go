package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"kiwi_quiz_service/internal/config"
	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/util"
)

type fakeOracle struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeOracle) Generate(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

var testQuizCfg = config.QuizConfig{
	DefaultNumQuestions: 5,
	MinNumQuestions:     2,
	MaxNumQuestions:     15,
}

func newTestGenerationService(oracle Oracle) *GenerationService {
	return NewGenerationService(oracle, nil, config.AIConfig{}, testQuizCfg)
}

func TestGenerateNoQuestionTypeEnabled(t *testing.T) {
	svc := newTestGenerationService(&fakeOracle{})

	_, err := svc.GenerateFromText(context.Background(), GenerationInput{
		ClassroomID:  1,
		PointMax:     20,
		TypeQuestion: map[string]bool{"conceptual": false, "practico": false},
	})
	if !errors.Is(err, util.ErrNoQuestionTypeEnabled) {
		t.Fatalf("got %v, want ErrNoQuestionTypeEnabled", err)
	}
}

func TestGenerateOracleFailure(t *testing.T) {
	cause := errors.New("upstream unavailable")
	svc := newTestGenerationService(&fakeOracle{err: cause})

	_, err := svc.GenerateFromText(context.Background(), GenerationInput{
		ClassroomID:  1,
		PointMax:     20,
		TypeQuestion: map[string]bool{"conceptual": true},
	})

	var failed *util.GenerationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %T, want GenerationFailedError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("GenerationFailedError does not wrap the oracle error")
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	svc := newTestGenerationService(&fakeOracle{response: "no puedo generar el quiz"})

	_, err := svc.GenerateFromText(context.Background(), GenerationInput{
		ClassroomID:  1,
		PointMax:     20,
		TypeQuestion: map[string]bool{"conceptual": true},
	})

	var failed *util.GenerationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %T, want GenerationFailedError", err)
	}
	var malformed *util.MalformedGenerationError
	if !errors.As(err, &malformed) {
		t.Error("cause is not a MalformedGenerationError")
	}
}

func TestGenerateFromText(t *testing.T) {
	oracle := &fakeOracle{response: "```json\n" + `{
		"title": "Quiz de Fotosíntesis",
		"instruction": "Responde con cuidado.",
		"questions": [
			{
				"statement": "¿Qué es la fotosíntesis?",
				"answer_correct": "El proceso por el que las plantas producen energía.",
				"points": 10,
				"answer_base": {"type": "base_text"},
				"competences_id": [1, 2],
				"difficulty": "alta"
			},
			{
				"statement": "¿Dónde ocurre?",
				"answer_correct": "Cloroplastos",
				"points": 10,
				"answer_base": {"type": "base_multiple_option", "options": ["Cloroplastos", "Mitocondrias", "Núcleo"]},
				"competences_id": [2]
			}
		]
	}` + "\n```"}

	svc := newTestGenerationService(oracle)

	quiz, err := svc.GenerateFromText(context.Background(), GenerationInput{
		ClassroomID:  7,
		NumQuestion:  2,
		PointMax:     20,
		Competences:  []Competence{{ID: 1, Name: "Análisis"}},
		TypeQuestion: map[string]bool{"conceptual": true},
		Text:         "La fotosíntesis es el proceso...",
	})
	if err != nil {
		t.Fatalf("GenerateFromText error: %v", err)
	}

	if quiz.ClassroomID != 7 {
		t.Errorf("classroom id = %d, want 7", quiz.ClassroomID)
	}
	if quiz.Title != "Quiz de Fotosíntesis" {
		t.Errorf("title = %q", quiz.Title)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(quiz.Questions))
	}
	if quiz.Questions[0].AnswerBase.Type != model.AnswerBaseText {
		t.Errorf("first question type = %q", quiz.Questions[0].AnswerBase.Type)
	}
	if len(quiz.Questions[1].AnswerBase.Options) != 3 {
		t.Errorf("second question has %d options, want 3", len(quiz.Questions[1].AnswerBase.Options))
	}

	start, err := time.Parse(time.RFC3339, quiz.StartTime)
	if err != nil {
		t.Fatalf("start time not RFC3339: %v", err)
	}
	end, err := time.Parse(time.RFC3339, quiz.EndTime)
	if err != nil {
		t.Fatalf("end time not RFC3339: %v", err)
	}
	if !end.After(start) {
		t.Error("end time must follow start time")
	}

	if !strings.Contains(oracle.lastPrompt, "La fotosíntesis es el proceso...") {
		t.Error("prompt does not embed the source text")
	}
	if !strings.Contains(oracle.lastPrompt, "conceptual") {
		t.Error("prompt does not list the enabled question types")
	}
}

func draftFromJSON(t *testing.T, raw string) generationDraft {
	t.Helper()
	var draft generationDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		t.Fatalf("bad draft fixture: %v", err)
	}
	return draft
}

func TestRepairQuestionsPadsAndRescales(t *testing.T) {
	draft := draftFromJSON(t, `{"questions": [
		{"statement": "p1", "answer_correct": "r1", "points": 10, "answer_base": {"type": "base_text", "options": ["sobra"]}},
		{"statement": "p2", "answer_correct": "r2", "points": 10, "answer_base": {"type": "base_text"}},
		{"statement": "p3", "answer_correct": "r3", "points": 10, "answer_base": {"type": "base_text"}}
	]}`)

	questions := repairQuestions(draft, 5, 20)

	if len(questions) != 5 {
		t.Fatalf("got %d questions, want 5", len(questions))
	}
	total := 0
	for i, q := range questions {
		if q.Points < 1 {
			t.Errorf("question %d has %d points, want at least 1", i, q.Points)
		}
		if q.CompetencesID == nil {
			t.Errorf("question %d has nil competences", i)
		}
		total += q.Points
	}
	if total > 20 {
		t.Errorf("points sum to %d, want at most 20", total)
	}
	// Options on a text question are an extraneous model field.
	if questions[0].AnswerBase.Options != nil {
		t.Error("text question kept its options")
	}
}

func TestRepairQuestionsTruncates(t *testing.T) {
	draft := draftFromJSON(t, `{"questions": [
		{"statement": "p1", "points": 2, "answer_base": {"type": "base_text"}},
		{"statement": "p2", "points": 2, "answer_base": {"type": "base_text"}},
		{"statement": "p3", "points": 2, "answer_base": {"type": "base_text"}},
		{"statement": "p4", "points": 2, "answer_base": {"type": "base_text"}},
		{"statement": "p5", "points": 2, "answer_base": {"type": "base_text"}},
		{"statement": "p6", "points": 2, "answer_base": {"type": "base_text"}}
	]}`)

	questions := repairQuestions(draft, 4, 20)
	if len(questions) != 4 {
		t.Fatalf("got %d questions, want 4", len(questions))
	}
}

func TestClampQuestionCount(t *testing.T) {
	svc := newTestGenerationService(&fakeOracle{})

	tests := []struct {
		in   int
		want int
	}{
		{0, 5},
		{-3, 5},
		{1, 2},
		{7, 7},
		{20, 15},
	}
	for _, tt := range tests {
		if got := svc.clampQuestionCount(tt.in); got != tt.want {
			t.Errorf("clampQuestionCount(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEnabledQuestionTypes(t *testing.T) {
	enabled := enabledQuestionTypes(map[string]bool{
		"conceptual": true,
		"practico":   false,
		"critico":    true,
	})
	if len(enabled) != 2 {
		t.Fatalf("got %d enabled types, want 2", len(enabled))
	}
	for _, name := range enabled {
		if name != "conceptual" && name != "critico" {
			t.Errorf("unexpected enabled type %q", name)
		}
	}
}
