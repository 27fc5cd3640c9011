package repository

import (
	"kiwi_quiz_service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

// FindAttemptForUpdate loads the attempt row with a row-level lock so that
// concurrent resubmissions for the same (student, quiz) execute in order.
// SQLite has no FOR UPDATE; its single writer already serializes attempts.
func (r *AttemptRepository) FindAttemptForUpdate(studentID, quizID uint) (*model.QuizStudent, error) {
	db := r.DB
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var a model.QuizStudent
	err := db.Where("id_student = ? AND id_quiz = ?", studentID, quizID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindAttempt(studentID, quizID uint) (*model.QuizStudent, error) {
	var a model.QuizStudent
	err := r.DB.Where("id_student = ? AND id_quiz = ?", studentID, quizID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CreateAttempt(a *model.QuizStudent) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) SaveAttempt(a *model.QuizStudent) error {
	return r.DB.Save(a).Error
}

func (r *AttemptRepository) ListAttempts(quizID uint) ([]model.QuizStudent, error) {
	var as []model.QuizStudent
	err := r.DB.Where("id_quiz = ?", quizID).Order("id_student asc").Find(&as).Error
	return as, err
}

func (r *AttemptRepository) CreateAnswerSubmitted(a *model.AnswerSubmitted) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) CreateQuestionStudent(qs *model.QuestionStudent) error {
	return r.DB.Create(qs).Error
}

func (r *AttemptRepository) ListResults(studentID uint, questionIDs []uint) ([]model.QuestionStudent, error) {
	var rs []model.QuestionStudent
	err := r.DB.Preload("AnswerSubmitted").
		Where("id_student = ? AND id_question IN ?", studentID, questionIDs).
		Find(&rs).Error
	return rs, err
}

// DeleteResults removes the prior per-question rows and their submitted
// answers for the questions being resubmitted.
func (r *AttemptRepository) DeleteResults(studentID uint, questionIDs []uint) error {
	if len(questionIDs) == 0 {
		return nil
	}

	var submittedIDs []uint
	if err := r.DB.Model(&model.QuestionStudent{}).
		Where("id_student = ? AND id_question IN ?", studentID, questionIDs).
		Pluck("id_answer_submitted", &submittedIDs).Error; err != nil {
		return err
	}

	if err := r.DB.Where("id_student = ? AND id_question IN ?", studentID, questionIDs).
		Delete(&model.QuestionStudent{}).Error; err != nil {
		return err
	}

	if len(submittedIDs) > 0 {
		if err := r.DB.Where("id IN ?", submittedIDs).Delete(&model.AnswerSubmitted{}).Error; err != nil {
			return err
		}
	}
	return nil
}
