package repository

import (
	"kiwi_quiz_service/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) CreateQuiz(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindQuizByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindQuizzesByIDs(ids []uint) ([]model.Quiz, error) {
	var qs []model.Quiz
	err := r.DB.Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) FindQuizzesByClassroom(classroomID uint) ([]model.Quiz, error) {
	var qs []model.Quiz
	err := r.DB.Where("classroom_id = ?", classroomID).Order("created_at desc").Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) UpdateQuiz(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) CreateAnswerBase(base *model.AnswerBase) error {
	return r.DB.Create(base).Error
}

func (r *QuizRepository) CreateQuestion(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("AnswerBase").First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) ListQuestions(quizID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Preload("AnswerBase").Where("quiz_id = ?", quizID).Order("id asc").Find(&qs).Error
	return qs, err
}

// DeleteQuiz removes the quiz with its questions, answer bases, attempts and
// submitted answers in one pass. Runs inside the caller's transaction.
func (r *QuizRepository) DeleteQuiz(quizID uint) error {
	var questionIDs []uint
	if err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}

	if len(questionIDs) > 0 {
		var baseIDs []uint
		if err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).Pluck("id_answer", &baseIDs).Error; err != nil {
			return err
		}

		var submittedIDs []uint
		if err := r.DB.Model(&model.QuestionStudent{}).Where("id_question IN ?", questionIDs).Pluck("id_answer_submitted", &submittedIDs).Error; err != nil {
			return err
		}

		if err := r.DB.Where("id_question IN ?", questionIDs).Delete(&model.QuestionStudent{}).Error; err != nil {
			return err
		}
		if len(submittedIDs) > 0 {
			if err := r.DB.Where("id IN ?", submittedIDs).Delete(&model.AnswerSubmitted{}).Error; err != nil {
				return err
			}
		}
		if err := r.DB.Where("quiz_id = ?", quizID).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		if len(baseIDs) > 0 {
			if err := r.DB.Where("id IN ?", baseIDs).Delete(&model.AnswerBase{}).Error; err != nil {
				return err
			}
		}
	}

	if err := r.DB.Where("id_quiz = ?", quizID).Delete(&model.QuizStudent{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Quiz{}, quizID).Error
}
