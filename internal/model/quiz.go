package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Answer discriminants. Base answers describe the correct answer attached at
// authoring time, submitted answers are created per student submission.
const (
	AnswerBaseText           = "base_text"
	AnswerBaseMultipleOption = "base_multiple_option"

	AnswerSubmittedText           = "submitted_text"
	AnswerSubmittedMultipleOption = "submitted_multiple_option"
)

// IntList stores an ordered list of external competency ids as a JSON column.
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = IntList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into IntList", value)
	}
}

// swagger:model Quiz
type Quiz struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassroomID uint       `gorm:"index;not null" json:"classroomId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Instruction string     `gorm:"type:text" json:"instruction"`
	TotalPoints int        `gorm:"default:0" json:"totalPoints"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Questions []Question    `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Students  []QuizStudent `gorm:"foreignKey:IDQuiz;constraint:OnDelete:CASCADE" json:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID        uint      `gorm:"index;not null" json:"quizId"`
	IDAnswer      uint      `gorm:"index" json:"answerId"`
	Statement     string    `gorm:"type:text;not null" json:"statement"`
	AnswerCorrect string    `gorm:"type:text" json:"answerCorrect"`
	Points        int       `gorm:"default:1" json:"points"`
	CompetencesID IntList   `gorm:"type:json" json:"competencesId"`
	CreatedAt     time.Time `json:"createdAt"`

	AnswerBase *AnswerBase `gorm:"foreignKey:IDAnswer" json:"answerBase,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// AnswerBase is the correct-answer record for a question. It is a tagged
// union: Type selects the variant and Options is only set for
// base_multiple_option.
type AnswerBase struct {
	ID      uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Type    string          `gorm:"size:50;not null" json:"type"`
	Options json.RawMessage `gorm:"type:json" json:"options,omitempty"`
}

func (AnswerBase) TableName() string {
	return "answer_bases"
}

// OptionList decodes the stored option strings. Only meaningful for the
// multiple option variant.
func (a *AnswerBase) OptionList() ([]string, error) {
	if a.Type != AnswerBaseMultipleOption {
		return nil, errors.New("answer base has no options")
	}
	var opts []string
	if err := json.Unmarshal(a.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// QuizStudent is one student's attempt at one quiz. Composite key, one row
// per (student, quiz); resubmission overwrites it.
type QuizStudent struct {
	IDStudent                uint   `gorm:"primaryKey;autoIncrement:false" json:"studentId"`
	IDQuiz                   uint   `gorm:"primaryKey;autoIncrement:false" json:"quizId"`
	FeedbackGeneralAutomated string `gorm:"type:text" json:"feedbackGeneralAutomated"`
	FeedbackGeneralTeacher   string `gorm:"type:text" json:"feedbackGeneralTeacher"`
	PointsObtained           int    `gorm:"default:0" json:"pointsObtained"`
	IsPresentQuiz            bool   `gorm:"default:false" json:"isPresentQuiz"`
}

func (QuizStudent) TableName() string {
	return "quiz_students"
}

// AnswerSubmitted is a student's answer to one question. Tagged union:
// AnswerWritten for submitted_text, OptionSelect for
// submitted_multiple_option. Rows are immutable once written.
type AnswerSubmitted struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          string `gorm:"size:50;not null" json:"type"`
	AnswerWritten string `gorm:"type:text" json:"answerWritten,omitempty"`
	OptionSelect  string `gorm:"type:text" json:"optionSelect,omitempty"`
}

func (AnswerSubmitted) TableName() string {
	return "answer_submitteds"
}

// Text returns the student's answer as plain text regardless of variant.
func (a *AnswerSubmitted) Text() string {
	if a.Type == AnswerSubmittedMultipleOption {
		return a.OptionSelect
	}
	return a.AnswerWritten
}

// QuestionStudent links a student, a question and the submitted answer, with
// the per-question score and feedback.
type QuestionStudent struct {
	IDStudent         uint   `gorm:"primaryKey;autoIncrement:false" json:"studentId"`
	IDQuestion        uint   `gorm:"primaryKey;autoIncrement:false" json:"questionId"`
	IDAnswerSubmitted uint   `gorm:"primaryKey;autoIncrement:false" json:"answerSubmittedId"`
	FeedbackAutomated string `gorm:"type:text" json:"feedbackAutomated"`
	FeedbackTeacher   string `gorm:"type:text" json:"feedbackTeacher"`
	PointsObtained    int    `gorm:"default:0" json:"pointsObtained"`

	AnswerSubmitted *AnswerSubmitted `gorm:"foreignKey:IDAnswerSubmitted;constraint:OnDelete:CASCADE" json:"answerSubmitted,omitempty"`
}

func (QuestionStudent) TableName() string {
	return "question_students"
}
