package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"kiwi_quiz_service/internal/config"
	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/repository"
	"kiwi_quiz_service/internal/util"
	"kiwi_quiz_service/pkg/logger"
	"kiwi_quiz_service/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AnswerSubmittedSpec struct {
	Type          string `json:"type" binding:"required"`
	AnswerWritten string `json:"answer_written,omitempty"`
	OptionSelect  string `json:"option_select,omitempty"`
}

type QuestionSubmission struct {
	QuestionID      uint                `json:"question_id" binding:"required"`
	AnswerSubmitted AnswerSubmittedSpec `json:"answer_submitted" binding:"required"`
}

type SubmissionInput struct {
	QuizID    uint                 `json:"quiz_id" binding:"required"`
	StudentID uint                 `json:"student_id" binding:"required"`
	IsPresent bool                 `json:"is_present"`
	Questions []QuestionSubmission `json:"questions" binding:"required,min=1"`
}

type QuestionScore struct {
	QuestionID     uint `json:"question_id"`
	ObtainedPoints int  `json:"obtained_points"`
}

type SubmissionOutput struct {
	QuizID          uint            `json:"quiz_id"`
	StudentID       uint            `json:"student_id"`
	ObtainedPoints  int             `json:"obtained_points"`
	QuestionStudent []QuestionScore `json:"question_student"`
}

// gradingItem is the compact per-question payload sent to the model and
// reused by the deterministic fallback.
type gradingItem struct {
	QuestionID    uint   `json:"question_id"`
	Statement     string `json:"statement"`
	CorrectAnswer string `json:"correct_answer"`
	QuestionType  string `json:"question_type"`
	StudentAnswer string `json:"student_answer"`
	MaxPoints     int    `json:"max_points"`
}

type evaluation struct {
	QuestionID        uint    `json:"question_id"`
	PercentageCorrect float64 `json:"percentage_correct"`
	Feedback          string  `json:"feedback"`
}

type gradingResult struct {
	Evaluations     []evaluation `json:"evaluations"`
	GeneralFeedback string       `json:"general_feedback"`
}

// gradingResponse mirrors gradingResult with pointers so a structurally
// incomplete model response can be told apart from an empty one.
type gradingResponse struct {
	Evaluations     *[]evaluation `json:"evaluations"`
	GeneralFeedback *string       `json:"general_feedback"`
}

type GradingService struct {
	DB          *gorm.DB
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	Oracle      Oracle
	AIConfig    config.AIConfig
}

func NewGradingService(db *gorm.DB, quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository, oracle Oracle, aiCfg config.AIConfig) *GradingService {
	return &GradingService{
		DB:          db,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Oracle:      oracle,
		AIConfig:    aiCfg,
	}
}

// ProcessSubmission grades one student's submission for a quiz. The model is
// called once for the whole submission; if it is unreachable or returns
// unusable output the deterministic fallback grades instead. Resubmission
// replaces the previous attempt entirely.
func (s *GradingService) ProcessSubmission(ctx context.Context, input SubmissionInput) (*SubmissionOutput, error) {
	quiz, err := s.QuizRepo.FindQuizByID(input.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	items := make([]gradingItem, 0, len(input.Questions))
	questionsByID := make(map[uint]*model.Question, len(input.Questions))

	for _, sub := range input.Questions {
		if sub.AnswerSubmitted.Type == model.AnswerSubmittedMultipleOption && sub.AnswerSubmitted.OptionSelect == "" {
			return nil, util.ErrEmptySelection
		}

		question, err := s.QuizRepo.FindQuestionByID(sub.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrQuestionNotInQuiz
			}
			return nil, err
		}
		if question.QuizID != input.QuizID {
			return nil, util.ErrQuestionNotInQuiz
		}
		if question.AnswerBase == nil || question.AnswerBase.Type == "" {
			return nil, util.ErrUnscorableQuestion
		}
		questionsByID[question.ID] = question

		items = append(items, gradingItem{
			QuestionID:    question.ID,
			Statement:     question.Statement,
			CorrectAnswer: question.AnswerCorrect,
			QuestionType:  answerKind(question.AnswerBase.Type),
			StudentAnswer: studentAnswerText(sub.AnswerSubmitted),
			MaxPoints:     question.Points,
		})
	}

	totalPossible := 0
	for _, item := range items {
		totalPossible += item.MaxPoints
	}

	result := s.gradeWithOracle(ctx, quiz, items, questionsByID, totalPossible)

	evaluationsByID := make(map[uint]evaluation, len(result.Evaluations))
	for _, e := range result.Evaluations {
		evaluationsByID[e.QuestionID] = e
	}

	var out *SubmissionOutput
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		attemptRepo := s.AttemptRepo.WithTx(tx)
		quizRepo := s.QuizRepo.WithTx(tx)

		attempt, err := attemptRepo.FindAttemptForUpdate(input.StudentID, input.QuizID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			attempt = &model.QuizStudent{
				IDStudent:     input.StudentID,
				IDQuiz:        input.QuizID,
				IsPresentQuiz: input.IsPresent,
			}
			if err := attemptRepo.CreateAttempt(attempt); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			attempt.IsPresentQuiz = input.IsPresent
			attempt.PointsObtained = 0
			attempt.FeedbackGeneralTeacher = ""

			questionIDs := make([]uint, 0, len(input.Questions))
			for _, sub := range input.Questions {
				questionIDs = append(questionIDs, sub.QuestionID)
			}
			if err := attemptRepo.DeleteResults(input.StudentID, questionIDs); err != nil {
				return err
			}
		}

		totalObtained := 0
		scores := make([]QuestionScore, 0, len(input.Questions))

		for _, sub := range input.Questions {
			question := questionsByID[sub.QuestionID]

			var points int
			var feedback string
			if e, ok := evaluationsByID[sub.QuestionID]; ok {
				points, feedback = scoreFromEvaluation(e, question.Points)
			} else {
				points, feedback = fallbackScore(question, studentAnswerText(sub.AnswerSubmitted))
			}

			submitted := &model.AnswerSubmitted{
				Type:          sub.AnswerSubmitted.Type,
				AnswerWritten: sub.AnswerSubmitted.AnswerWritten,
				OptionSelect:  sub.AnswerSubmitted.OptionSelect,
			}
			if err := attemptRepo.CreateAnswerSubmitted(submitted); err != nil {
				return err
			}

			qs := &model.QuestionStudent{
				IDStudent:         input.StudentID,
				IDQuestion:        sub.QuestionID,
				IDAnswerSubmitted: submitted.ID,
				PointsObtained:    points,
				FeedbackAutomated: feedback,
			}
			if err := attemptRepo.CreateQuestionStudent(qs); err != nil {
				return err
			}

			totalObtained += points
			scores = append(scores, QuestionScore{QuestionID: sub.QuestionID, ObtainedPoints: points})
		}

		attempt.PointsObtained = totalObtained
		attempt.FeedbackGeneralAutomated = result.GeneralFeedback
		if err := attemptRepo.SaveAttempt(attempt); err != nil {
			return err
		}

		if quiz.TotalPoints == 0 {
			quiz.TotalPoints = totalPossible
			if err := quizRepo.UpdateQuiz(quiz); err != nil {
				return err
			}
		}

		out = &SubmissionOutput{
			QuizID:          input.QuizID,
			StudentID:       input.StudentID,
			ObtainedPoints:  totalObtained,
			QuestionStudent: scores,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// gradeWithOracle runs the single batched model call and validates its
// shape. Any failure falls back to deterministic grading.
func (s *GradingService) gradeWithOracle(ctx context.Context, quiz *model.Quiz, items []gradingItem, questions map[uint]*model.Question, totalPossible int) gradingResult {
	prompt := buildGradingPrompt(quiz, items, totalPossible)

	callCtx, cancel := context.WithTimeout(ctx, s.AIConfig.GradingTimeout())
	defer cancel()

	raw, err := s.Oracle.Generate(callCtx, prompt, nil)
	if err == nil {
		monitoring.AIRequestCounter.WithLabelValues("grading", "success").Inc()
		if result, ok := parseGradingResponse(raw); ok {
			return result
		}
		err = errors.New("grading response has an unexpected shape")
	} else {
		monitoring.AIRequestCounter.WithLabelValues("grading", "failure").Inc()
	}

	logger.Log.Warn("Falling back to deterministic grading",
		zap.Uint("quiz_id", quiz.ID),
		zap.Error(err),
	)
	monitoring.GradingFallbackCounter.Inc()

	return gradeDeterministically(items, questions, totalPossible)
}

func parseGradingResponse(raw string) (gradingResult, bool) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return gradingResult{}, false
	}
	var resp gradingResponse
	if err := json.Unmarshal(obj, &resp); err != nil {
		return gradingResult{}, false
	}
	if resp.Evaluations == nil || resp.GeneralFeedback == nil {
		return gradingResult{}, false
	}
	return gradingResult{
		Evaluations:     *resp.Evaluations,
		GeneralFeedback: *resp.GeneralFeedback,
	}, true
}

// gradeDeterministically is the fallback grader: binary exact match for
// multiple option, case-insensitive exact match for text, with template
// feedback and a tiered general message.
func gradeDeterministically(items []gradingItem, questions map[uint]*model.Question, totalPossible int) gradingResult {
	result := gradingResult{Evaluations: make([]evaluation, 0, len(items))}

	totalObtained := 0
	for _, item := range items {
		question := questions[item.QuestionID]
		points, feedback := fallbackScore(question, item.StudentAnswer)
		percentage := 0.0
		if points == question.Points {
			percentage = 100
		}
		totalObtained += points

		result.Evaluations = append(result.Evaluations, evaluation{
			QuestionID:        item.QuestionID,
			PercentageCorrect: percentage,
			Feedback:          feedback,
		})
	}

	percentage := 0.0
	if totalPossible > 0 {
		percentage = float64(totalObtained) / float64(totalPossible) * 100
	}
	switch {
	case percentage == 100:
		result.GeneralFeedback = "¡Felicidades! Has respondido todas las preguntas correctamente y obtenido la máxima puntuación. ¡Excelente!"
	case percentage >= 75:
		result.GeneralFeedback = "Excelente trabajo, has demostrado un gran conocimiento en general. Sigue así."
	case percentage >= 50:
		result.GeneralFeedback = "Buen esfuerzo en el quiz. Hay áreas de oportunidad para mejorar, sigue practicando."
	default:
		result.GeneralFeedback = "Necesitas repasar algunos conceptos clave. No te desanimes, ¡sigue practicando para mejorar tus habilidades!"
	}
	return result
}

// fallbackScore grades one question deterministically. Multiple option is a
// case-sensitive exact match, text is case-insensitive.
func fallbackScore(question *model.Question, studentAnswer string) (int, string) {
	switch question.AnswerBase.Type {
	case model.AnswerBaseMultipleOption:
		if studentAnswer == question.AnswerCorrect {
			return question.Points, "¡Muy bien! Esa es la opción correcta."
		}
		return 0, fmt.Sprintf("Incorrecto. La opción correcta era: '%s'.", question.AnswerCorrect)
	case model.AnswerBaseText:
		if studentAnswer != "" && strings.EqualFold(studentAnswer, question.AnswerCorrect) {
			return question.Points, "¡Correcto! Tu respuesta es precisa."
		}
		return 0, fmt.Sprintf("Incorrecto. La respuesta esperada era: '%s'.", question.AnswerCorrect)
	default:
		return 0, "Feedback no disponible."
	}
}

// scoreFromEvaluation clamps the reported percentage to [0,100] and converts
// it to points by rounding.
func scoreFromEvaluation(e evaluation, maxPoints int) (int, string) {
	percentage := math.Max(0, math.Min(100, e.PercentageCorrect))
	points := int(math.Round(percentage / 100 * float64(maxPoints)))
	feedback := e.Feedback
	if feedback == "" {
		feedback = "Feedback no disponible."
	}
	return points, feedback
}

func answerKind(baseType string) string {
	return strings.ReplaceAll(strings.TrimPrefix(baseType, "base_"), "_", " ")
}

func studentAnswerText(spec AnswerSubmittedSpec) string {
	if spec.Type == model.AnswerSubmittedMultipleOption {
		return spec.OptionSelect
	}
	return spec.AnswerWritten
}

func buildGradingPrompt(quiz *model.Quiz, items []gradingItem, totalPossible int) string {
	payload, _ := json.MarshalIndent(items, "", "  ")

	instruction := quiz.Instruction
	if instruction == "" {
		instruction = "No se proporcionaron instrucciones."
	}

	return fmt.Sprintf(`Como un evaluador inteligente para un sistema de quizzes, tu tarea es analizar un conjunto de preguntas y las respuestas de un estudiante, y luego proporcionar un feedback general sobre el desempeño del estudiante en todo el quiz.

Para cada pregunta individual, debes proporcionar:
1. Una evaluación del porcentaje de corrección de la respuesta del estudiante (un número entero entre 0 y 100).
2. Un feedback conciso y constructivo para el estudiante (máximo 2-3 oraciones).

Las preguntas de tipo "text" requieren una evaluación más profunda de la coherencia, precisión y exhaustividad de la respuesta del estudiante con respecto a la respuesta correcta esperada.
Las preguntas de tipo "multiple option" son de evaluación binaria: 100%% si la respuesta es idéntica a la correcta, 0%% si no lo es.

Finalmente, genera un **feedback general** para el estudiante sobre todo el quiz. Este feedback general debe ser conciso (máximo 4-5 oraciones), amigable, motivador, y resumir el desempeño general, destacando puntos fuertes y áreas de mejora.

La salida debe ser un objeto JSON que contenga dos campos principales:
- `+"`evaluations`"+`: Una lista de objetos, donde cada objeto representa una pregunta evaluada con los campos:
    - `+"`question_id`"+`: El ID de la pregunta.
    - `+"`percentage_correct`"+`: El porcentaje de corrección de la respuesta del estudiante (0-100).
    - `+"`feedback`"+`: El feedback constructivo para la pregunta.
- `+"`general_feedback`"+`: Una cadena de texto con el feedback general del quiz.

---
Detalles del Quiz:
Título del Quiz: "%s"
Instrucciones del Quiz: "%s"
Puntuación Total Posible (calculada de las preguntas): %d

Lista de Preguntas y Respuestas del Estudiante a Evaluar:
%s
---

Formato de Salida JSON:
{
    "evaluations": [
        {
            "question_id": 1,
            "percentage_correct": 85,
            "feedback": "Tu respuesta es muy completa pero faltó mencionar el punto clave de X. Buen trabajo."
        },
        {
            "question_id": 2,
            "percentage_correct": 100,
            "feedback": "¡Correcto! Excelente selección de la opción."
        }
    ],
    "general_feedback": "¡Buen trabajo en el quiz! Demostraste un buen entendimiento general, especialmente en las preguntas de opción múltiple. Para mejorar aún más, enfócate en desarrollar respuestas más completas para las preguntas de texto."
}`, quiz.Title, instruction, totalPossible, string(payload))
}
