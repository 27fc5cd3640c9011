package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"kiwi_quiz_service/internal/config"
	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/util"
	"kiwi_quiz_service/pkg/logger"
	"kiwi_quiz_service/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Competence struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type GenerationInput struct {
	ClassroomID  uint            `json:"classroom_id" binding:"required"`
	NumQuestion  int             `json:"num_question"`
	PointMax     int             `json:"point_max" binding:"required,gt=0"`
	Competences  []Competence    `json:"competences"`
	TypeQuestion map[string]bool `json:"type_question" binding:"required"`
	Text         string          `json:"text"`
}

type GeneratedQuestion struct {
	Statement     string         `json:"statement"`
	AnswerCorrect string         `json:"answer_correct"`
	Points        int            `json:"points"`
	AnswerBase    AnswerBaseSpec `json:"answer_base"`
	CompetencesID []int          `json:"competences_id"`
}

// GeneratedQuiz is a generation artifact, not a persisted record. The caller
// decides whether to store it through quiz authoring.
type GeneratedQuiz struct {
	ClassroomID uint                `json:"classroom_id"`
	Title       string              `json:"title"`
	Instruction string              `json:"instruction"`
	StartTime   string              `json:"start_time"`
	EndTime     string              `json:"end_time"`
	Questions   []GeneratedQuestion `json:"questions"`
}

// generationDraft tolerates the loose shape of model output before repair.
type generationDraft struct {
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
	Questions   []struct {
		Statement     string `json:"statement"`
		AnswerCorrect string `json:"answer_correct"`
		Points        int    `json:"points"`
		AnswerBase    struct {
			Type    string   `json:"type"`
			Options []string `json:"options"`
		} `json:"answer_base"`
		CompetencesID []int `json:"competences_id"`
	} `json:"questions"`
}

type GenerationService struct {
	Oracle   Oracle
	Storage  *StorageService
	AIConfig config.AIConfig
	QuizCfg  config.QuizConfig
}

func NewGenerationService(oracle Oracle, storage *StorageService, aiCfg config.AIConfig, quizCfg config.QuizConfig) *GenerationService {
	return &GenerationService{
		Oracle:   oracle,
		Storage:  storage,
		AIConfig: aiCfg,
		QuizCfg:  quizCfg,
	}
}

// GenerateFromText drafts a quiz from the given source text.
func (s *GenerationService) GenerateFromText(ctx context.Context, input GenerationInput) (*GeneratedQuiz, error) {
	return s.generate(ctx, input, nil)
}

// GenerateFromPDF drafts a quiz from a PDF document. The document is
// archived to object storage and attached to the model call as-is, letting
// the model read it directly.
func (s *GenerationService) GenerateFromPDF(ctx context.Context, input GenerationInput, pdf []byte, filename string) (*GeneratedQuiz, error) {
	if s.Storage != nil {
		objectName := fmt.Sprintf("quiz_sources/%s%s", uuid.New().String(), filepath.Ext(filename))
		if _, err := s.Storage.Upload(ctx, objectName, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
			logger.Log.Warn("Failed to archive generation source document",
				zap.String("object", objectName),
				zap.Error(err),
			)
		}
	}

	return s.generate(ctx, input, &Attachment{MIMEType: "application/pdf", Data: pdf})
}

func (s *GenerationService) generate(ctx context.Context, input GenerationInput, attachment *Attachment) (*GeneratedQuiz, error) {
	enabledTypes := enabledQuestionTypes(input.TypeQuestion)
	if len(enabledTypes) == 0 {
		return nil, util.ErrNoQuestionTypeEnabled
	}

	numQuestion := s.clampQuestionCount(input.NumQuestion)
	now := time.Now().UTC()
	end := now.Add(time.Hour)

	prompt := buildGenerationPrompt(input, enabledTypes, numQuestion, now, end)

	callCtx, cancel := context.WithTimeout(ctx, s.AIConfig.GenerateTimeout())
	defer cancel()

	raw, err := s.Oracle.Generate(callCtx, prompt, attachment)
	if err != nil {
		monitoring.AIRequestCounter.WithLabelValues("generation", "failure").Inc()
		return nil, &util.GenerationFailedError{Cause: err}
	}
	monitoring.AIRequestCounter.WithLabelValues("generation", "success").Inc()

	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, &util.GenerationFailedError{Cause: err}
	}

	var draft generationDraft
	if err := json.Unmarshal(obj, &draft); err != nil {
		return nil, &util.GenerationFailedError{Cause: err}
	}

	questions := repairQuestions(draft, numQuestion, input.PointMax)

	title := draft.Title
	if title == "" {
		title = "Quiz Generado"
	}
	instruction := draft.Instruction
	if instruction == "" {
		instruction = "Responde las siguientes preguntas basadas en el documento."
	}

	return &GeneratedQuiz{
		ClassroomID: input.ClassroomID,
		Title:       title,
		Instruction: instruction,
		StartTime:   now.Format(time.RFC3339),
		EndTime:     end.Format(time.RFC3339),
		Questions:   questions,
	}, nil
}

func (s *GenerationService) clampQuestionCount(n int) int {
	if n <= 0 {
		return s.QuizCfg.DefaultNumQuestions
	}
	if n < s.QuizCfg.MinNumQuestions {
		return s.QuizCfg.MinNumQuestions
	}
	if n > s.QuizCfg.MaxNumQuestions {
		return s.QuizCfg.MaxNumQuestions
	}
	return n
}

func enabledQuestionTypes(flags map[string]bool) []string {
	enabled := make([]string, 0, len(flags))
	for name, on := range flags {
		if on {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// repairQuestions enforces the numeric contract the model only
// approximates: exactly numQuestion questions whose points sum to at most
// pointMax, each question worth at least 1 point. Extraneous model fields
// are dropped by reserializing into the canonical shape.
func repairQuestions(draft generationDraft, numQuestion, pointMax int) []GeneratedQuestion {
	questions := make([]GeneratedQuestion, 0, numQuestion)
	for _, q := range draft.Questions {
		gq := GeneratedQuestion{
			Statement:     q.Statement,
			AnswerCorrect: q.AnswerCorrect,
			Points:        q.Points,
			AnswerBase:    AnswerBaseSpec{Type: q.AnswerBase.Type},
			CompetencesID: q.CompetencesID,
		}
		if gq.AnswerBase.Type == model.AnswerBaseMultipleOption {
			gq.AnswerBase.Options = q.AnswerBase.Options
		}
		if gq.CompetencesID == nil {
			gq.CompetencesID = []int{}
		}
		questions = append(questions, gq)
	}

	if len(questions) < numQuestion {
		logger.Log.Warn("Model returned fewer questions than requested, padding",
			zap.Int("returned", len(questions)),
			zap.Int("requested", numQuestion),
		)
		monitoring.GenerationRepairCounter.WithLabelValues("count").Inc()
		for len(questions) < numQuestion {
			questions = append(questions, GeneratedQuestion{
				Statement:     "Pregunta de relleno por ajuste de cantidad.",
				AnswerCorrect: "Respuesta.",
				Points:        1,
				AnswerBase:    AnswerBaseSpec{Type: model.AnswerBaseText},
				CompetencesID: []int{},
			})
		}
	}
	questions = questions[:numQuestion]

	total := 0
	for _, q := range questions {
		total += q.Points
	}
	if total > pointMax {
		logger.Log.Warn("Model exceeded the point budget, rescaling",
			zap.Int("total", total),
			zap.Int("budget", pointMax),
		)
		monitoring.GenerationRepairCounter.WithLabelValues("points").Inc()
		factor := float64(pointMax) / float64(total)
		for i := range questions {
			scaled := int(math.Round(float64(questions[i].Points) * factor))
			if scaled < 1 {
				scaled = 1
			}
			questions[i].Points = scaled
		}
	}

	return questions
}

func buildGenerationPrompt(input GenerationInput, enabledTypes []string, numQuestion int, start, end time.Time) string {
	competencesJSON, _ := json.Marshal(input.Competences)

	sourceClause := "Analiza el contenido del documento PDF adjunto en profundidad."
	if input.Text != "" {
		sourceClause = fmt.Sprintf("Analiza en profundidad el siguiente texto, que usarás como tema principal para elaborar el quiz:\n%s", input.Text)
	}

	return fmt.Sprintf(`%s Tu tarea es generar un quiz educativo con %d preguntas, siguiendo las siguientes directrices y restricciones estrictas:

**Directrices Generales:**
1.  El quiz debe tener un **título** y una **instrucción general** relevante al contenido analizado.
2.  **Puntos Totales:** La suma total de los "points" de todas las preguntas generadas debe ser **igual o muy cercana a %d**. Distribuye los puntos de manera que se ajuste a este total.
3.  **Distribución de Preguntas:**
    -   Genera preguntas únicamente de los tipos habilitados en `+"`type_question`"+`: %s.
    -   Asegura una **distribución lo más equitativa y uniforme posible** de las %d preguntas entre los **tipos de pregunta habilitados** y también entre los **formatos de respuesta** (**"base_text"** para respuestas de texto libre, y **"base_multiple_option"** para opción múltiple).
    -   Si un tipo de pregunta o formato de respuesta no está habilitado, **no lo uses**.
4.  **Combinación de Competencias:** Para cada pregunta, es **IMPERATIVO** que selecciones **múltiples competencias** (idealmente 2 o más si es relevante y posible) de la lista proporcionada. La selección debe basarse en la afinidad fuerte de la pregunta con la 'description' y 'name' de **todas las competencias seleccionadas**.

**Estructura de Cada Pregunta:**
Para cada pregunta, incluye los siguientes campos exactos y con sus tipos de datos correctos:
-   **"statement"**: El enunciado claro y conciso de la pregunta.
-   **"answer_correct"**:
    -   Si `+"`answer_base.type`"+` es "base_text", esta es la respuesta completa y correcta a la pregunta abierta.
    -   Si `+"`answer_base.type`"+` es "base_multiple_option", esta debe ser **exactamente uno de los textos de las opciones proporcionadas** en la lista `+"`options`"+`.
-   **"points"**: Un valor numérico entero y positivo para la pregunta. La suma de estos puntos debe ajustarse a %d.
-   **"answer_base"**: Un objeto JSON con los detalles del formato de respuesta:
    -   **"type"**: Un string que debe ser **"base_text"** o **"base_multiple_option"**.
    -   **"options"**: (SOLO si "type" es "base_multiple_option") Una lista de strings con las posibles opciones de respuesta. Debe haber **entre 3 y 5 opciones**, y una de ellas debe ser la `+"`answer_correct`"+`.
-   **"competences_id"**: Una **lista de números enteros** (IDs) de las competencias relevantes para la pregunta. Estos IDs deben ser tomados **EXCLUSIVAMENTE** del listado de competencias proporcionado.

**Listado de Competencias Disponibles:**
%s

**Formato de Salida Requerido (JSON Exacto):**
Devuelve **SOLO un objeto JSON** que siga este formato exacto, sin ningún texto adicional, explicaciones, o bloques de código que no sean el propio JSON, ni antes ni después.

`+"```json"+`
{
    "classroom_id": %d,
    "title": "Un título descriptivo para el quiz",
    "instruction": "Instrucciones claras para los estudiantes sobre cómo completar el quiz.",
    "start_time": "%s",
    "end_time": "%s",
    "questions": [
        {
            "statement": "Enunciado de la primera pregunta, combinando tipos y competencias.",
            "answer_correct": "Respuesta correcta para esta pregunta.",
            "points": 10,
            "answer_base": {
                "type": "base_text"
            },
            "competences_id": [1, 2]
        },
        {
            "statement": "Pregunta de opción múltiple con enfoque crítico y varias competencias.",
            "answer_correct": "Opción Correcta A",
            "points": 10,
            "answer_base": {
                "type": "base_multiple_option",
                "options": [
                    "Opción Correcta A",
                    "Opción Incorrecta B",
                    "Opción Incorrecta C"
                ]
            },
            "competences_id": [2]
        }
    ]
}
`+"```"+`
La calidad de las preguntas, la correcta asignación de puntos para sumar %d y la combinación de competencias es fundamental.`,
		sourceClause,
		numQuestion,
		input.PointMax,
		strings.Join(enabledTypes, ", "),
		numQuestion,
		input.PointMax,
		string(competencesJSON),
		input.ClassroomID,
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
		input.PointMax,
	)
}
