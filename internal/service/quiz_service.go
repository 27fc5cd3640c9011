package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/repository"
	"kiwi_quiz_service/internal/util"
	"kiwi_quiz_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const quizDetailCacheTTL = 10 * time.Minute

// AnswerBaseSpec describes the correct-answer variant of a question at
// authoring time.
type AnswerBaseSpec struct {
	Type    string   `json:"type" binding:"required"`
	Options []string `json:"options,omitempty"`
}

type QuestionSpec struct {
	Statement     string         `json:"statement" binding:"required"`
	AnswerCorrect string         `json:"answer_correct" binding:"required"`
	Points        int            `json:"points" binding:"required,gt=0"`
	AnswerBase    AnswerBaseSpec `json:"answer_base" binding:"required"`
	CompetencesID []int          `json:"competences_id"`
}

type QuizCreateInput struct {
	ClassroomID uint           `json:"classroom_id" binding:"required"`
	Title       string         `json:"title" binding:"required"`
	Instruction string         `json:"instruction"`
	StartTime   *time.Time     `json:"start_time"`
	EndTime     *time.Time     `json:"end_time"`
	Questions   []QuestionSpec `json:"questions" binding:"required,min=1"`
}

type QuestionSummary struct {
	QuestionID    uint  `json:"question_id"`
	Points        int   `json:"points"`
	CompetencesID []int `json:"competences_id"`
}

type QuizCreateOutput struct {
	QuizID      uint              `json:"quiz_id"`
	TotalPoints int               `json:"total_points"`
	Questions   []QuestionSummary `json:"questions"`
}

type QuizBasicOutput struct {
	ID          uint       `json:"id"`
	ClassroomID uint       `json:"classroom_id"`
	Title       string     `json:"title"`
	Instruction string     `json:"instruction"`
	TotalPoints int        `json:"total_points"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type AnswerBaseDetail struct {
	ID      uint     `json:"id"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

type QuestionDetail struct {
	ID            uint             `json:"id"`
	Statement     string           `json:"statement"`
	AnswerCorrect string           `json:"answer_correct"`
	Points        int              `json:"points"`
	CompetencesID []int            `json:"competences_id"`
	AnswerBase    AnswerBaseDetail `json:"answer_base"`
}

type QuizDetailOutput struct {
	QuizBasicOutput
	Questions []QuestionDetail `json:"questions"`
}

type AnswerSubmittedDetail struct {
	Type          string `json:"type"`
	AnswerWritten string `json:"answer_written,omitempty"`
	OptionSelect  string `json:"option_select,omitempty"`
}

type QuestionResultDetail struct {
	QuestionDetail
	AnswerSubmitted   *AnswerSubmittedDetail `json:"answer_submitted,omitempty"`
	PointsObtained    int                    `json:"points_obtained"`
	FeedbackAutomated string                 `json:"feedback_automated,omitempty"`
	FeedbackTeacher   string                 `json:"feedback_teacher,omitempty"`
}

type QuizResultDetailOutput struct {
	QuizBasicOutput
	StudentID                uint                   `json:"student_id"`
	IsPresentQuiz            bool                   `json:"is_present_quiz"`
	PointsObtained           int                    `json:"points_obtained"`
	FeedbackGeneralAutomated string                 `json:"feedback_general_automated,omitempty"`
	FeedbackGeneralTeacher   string                 `json:"feedback_general_teacher,omitempty"`
	Questions                []QuestionResultDetail `json:"questions"`
}

type StudentPointsOutput struct {
	StudentID      uint `json:"student_id"`
	PointsObtained int  `json:"points_obtained"`
}

type QuizWithAttemptStatusOutput struct {
	QuizBasicOutput
	Attempted bool `json:"attempted"`
}

type QuizService struct {
	DB          *gorm.DB
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	Redis       *redis.Client
}

func NewQuizService(db *gorm.DB, quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository, rdb *redis.Client) *QuizService {
	return &QuizService{
		DB:          db,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Redis:       rdb,
	}
}

// BuildAnswerBase converts an authoring spec into the stored record,
// rejecting unknown discriminants and empty option lists.
func BuildAnswerBase(spec AnswerBaseSpec) (*model.AnswerBase, error) {
	switch spec.Type {
	case model.AnswerBaseText:
		return &model.AnswerBase{Type: model.AnswerBaseText}, nil
	case model.AnswerBaseMultipleOption:
		if len(spec.Options) == 0 {
			return nil, util.ErrInvalidAnswerBase
		}
		raw, err := json.Marshal(spec.Options)
		if err != nil {
			return nil, err
		}
		return &model.AnswerBase{Type: model.AnswerBaseMultipleOption, Options: raw}, nil
	default:
		return nil, util.ErrInvalidAnswerBase
	}
}

// ValidateSchedule rejects a window whose start does not strictly precede
// its end. Either bound may be absent.
func ValidateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && !start.Before(*end) {
		return util.ErrInvalidSchedule
	}
	return nil
}

// CreateQuiz persists the quiz, its questions and their answer bases as one
// unit and computes the total points.
func (s *QuizService) CreateQuiz(input QuizCreateInput) (*QuizCreateOutput, error) {
	if err := ValidateSchedule(input.StartTime, input.EndTime); err != nil {
		return nil, err
	}

	var out *QuizCreateOutput
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)

		quiz := &model.Quiz{
			ClassroomID: input.ClassroomID,
			Title:       input.Title,
			Instruction: input.Instruction,
			StartTime:   input.StartTime,
			EndTime:     input.EndTime,
		}
		if err := repo.CreateQuiz(quiz); err != nil {
			return err
		}

		totalPoints := 0
		summaries := make([]QuestionSummary, 0, len(input.Questions))

		for _, qSpec := range input.Questions {
			base, err := BuildAnswerBase(qSpec.AnswerBase)
			if err != nil {
				return err
			}
			if err := repo.CreateAnswerBase(base); err != nil {
				return err
			}

			question := &model.Question{
				QuizID:        quiz.ID,
				IDAnswer:      base.ID,
				Statement:     qSpec.Statement,
				AnswerCorrect: qSpec.AnswerCorrect,
				Points:        qSpec.Points,
				CompetencesID: model.IntList(qSpec.CompetencesID),
			}
			if err := repo.CreateQuestion(question); err != nil {
				return err
			}

			totalPoints += question.Points
			summaries = append(summaries, QuestionSummary{
				QuestionID:    question.ID,
				Points:        question.Points,
				CompetencesID: qSpec.CompetencesID,
			})
		}

		quiz.TotalPoints = totalPoints
		if err := repo.UpdateQuiz(quiz); err != nil {
			return err
		}

		out = &QuizCreateOutput{
			QuizID:      quiz.ID,
			TotalPoints: totalPoints,
			Questions:   summaries,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *QuizService) GetQuizzesByIDs(ids []uint) ([]QuizBasicOutput, error) {
	quizzes, err := s.QuizRepo.FindQuizzesByIDs(ids)
	if err != nil {
		return nil, err
	}
	outs := make([]QuizBasicOutput, 0, len(quizzes))
	for _, q := range quizzes {
		outs = append(outs, basicOutput(&q))
	}
	return outs, nil
}

func basicOutput(q *model.Quiz) QuizBasicOutput {
	return QuizBasicOutput{
		ID:          q.ID,
		ClassroomID: q.ClassroomID,
		Title:       q.Title,
		Instruction: q.Instruction,
		TotalPoints: q.TotalPoints,
		StartTime:   q.StartTime,
		EndTime:     q.EndTime,
	}
}

func quizDetailCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:detail:%d", quizID)
}

// GetQuizDetails returns the quiz with its questions and decoded answer
// bases. Results are cached in redis until the quiz is deleted.
func (s *QuizService) GetQuizDetails(ctx context.Context, quizID uint) (*QuizDetailOutput, error) {
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, quizDetailCacheKey(quizID)).Result()
		if err == nil {
			var out QuizDetailOutput
			if err := json.Unmarshal([]byte(cached), &out); err == nil {
				return &out, nil
			}
		}
	}

	quiz, err := s.QuizRepo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	questions, err := s.QuizRepo.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}

	out := &QuizDetailOutput{
		QuizBasicOutput: basicOutput(quiz),
		Questions:       make([]QuestionDetail, 0, len(questions)),
	}
	for _, q := range questions {
		detail, err := questionDetail(&q)
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, detail)
	}

	if s.Redis != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.Redis.Set(ctx, quizDetailCacheKey(quizID), data, quizDetailCacheTTL).Err(); err != nil {
				logger.Log.Warn("Failed to cache quiz details", zap.Uint("quiz_id", quizID), zap.Error(err))
			}
		}
	}
	return out, nil
}

func questionDetail(q *model.Question) (QuestionDetail, error) {
	detail := QuestionDetail{
		ID:            q.ID,
		Statement:     q.Statement,
		AnswerCorrect: q.AnswerCorrect,
		Points:        q.Points,
		CompetencesID: []int(q.CompetencesID),
	}
	if q.AnswerBase != nil {
		detail.AnswerBase = AnswerBaseDetail{
			ID:   q.AnswerBase.ID,
			Type: q.AnswerBase.Type,
		}
		if q.AnswerBase.Type == model.AnswerBaseMultipleOption {
			opts, err := q.AnswerBase.OptionList()
			if err != nil {
				return detail, err
			}
			detail.AnswerBase.Options = opts
		}
	}
	return detail, nil
}

// GetQuizResults returns one student's graded attempt with per-question
// submitted answers and feedback.
func (s *QuizService) GetQuizResults(quizID, studentID uint) (*QuizResultDetailOutput, error) {
	quiz, err := s.QuizRepo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	questions, err := s.QuizRepo.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}

	questionIDs := make([]uint, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}

	results, err := s.AttemptRepo.ListResults(studentID, questionIDs)
	if err != nil {
		return nil, err
	}
	resultsByQuestion := make(map[uint]*model.QuestionStudent, len(results))
	for i := range results {
		resultsByQuestion[results[i].IDQuestion] = &results[i]
	}

	out := &QuizResultDetailOutput{
		QuizBasicOutput: basicOutput(quiz),
		StudentID:       studentID,
		Questions:       make([]QuestionResultDetail, 0, len(questions)),
	}

	attempt, err := s.AttemptRepo.FindAttempt(studentID, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	out.IsPresentQuiz = attempt.IsPresentQuiz
	out.PointsObtained = attempt.PointsObtained
	out.FeedbackGeneralAutomated = attempt.FeedbackGeneralAutomated
	out.FeedbackGeneralTeacher = attempt.FeedbackGeneralTeacher

	for _, q := range questions {
		detail, err := questionDetail(&q)
		if err != nil {
			return nil, err
		}
		resultDetail := QuestionResultDetail{QuestionDetail: detail}
		if r, ok := resultsByQuestion[q.ID]; ok {
			resultDetail.PointsObtained = r.PointsObtained
			resultDetail.FeedbackAutomated = r.FeedbackAutomated
			resultDetail.FeedbackTeacher = r.FeedbackTeacher
			if r.AnswerSubmitted != nil {
				resultDetail.AnswerSubmitted = &AnswerSubmittedDetail{
					Type:          r.AnswerSubmitted.Type,
					AnswerWritten: r.AnswerSubmitted.AnswerWritten,
					OptionSelect:  r.AnswerSubmitted.OptionSelect,
				}
			}
		}
		out.Questions = append(out.Questions, resultDetail)
	}

	return out, nil
}

func (s *QuizService) GetStudentsPoints(quizID uint) ([]StudentPointsOutput, error) {
	if _, err := s.QuizRepo.FindQuizByID(quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	attempts, err := s.AttemptRepo.ListAttempts(quizID)
	if err != nil {
		return nil, err
	}
	outs := make([]StudentPointsOutput, 0, len(attempts))
	for _, a := range attempts {
		outs = append(outs, StudentPointsOutput{
			StudentID:      a.IDStudent,
			PointsObtained: a.PointsObtained,
		})
	}
	return outs, nil
}

// GetClassroomQuizzesWithStatus lists a classroom's quizzes flagged with
// whether the given student already attempted each one.
func (s *QuizService) GetClassroomQuizzesWithStatus(classroomID, studentID uint) ([]QuizWithAttemptStatusOutput, error) {
	quizzes, err := s.QuizRepo.FindQuizzesByClassroom(classroomID)
	if err != nil {
		return nil, err
	}

	outs := make([]QuizWithAttemptStatusOutput, 0, len(quizzes))
	for _, q := range quizzes {
		attempted := false
		if _, err := s.AttemptRepo.FindAttempt(studentID, q.ID); err == nil {
			attempted = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		outs = append(outs, QuizWithAttemptStatusOutput{
			QuizBasicOutput: basicOutput(&q),
			Attempted:       attempted,
		})
	}
	return outs, nil
}

// DeleteQuiz cascades over questions, answer bases, attempts and submitted
// answers, then drops the cached detail entry.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID uint) error {
	if _, err := s.QuizRepo.FindQuizByID(quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return s.QuizRepo.WithTx(tx).DeleteQuiz(quizID)
	})
	if err != nil {
		return err
	}

	if s.Redis != nil {
		if err := s.Redis.Del(ctx, quizDetailCacheKey(quizID)).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate quiz cache", zap.Uint("quiz_id", quizID), zap.Error(err))
		}
	}
	return nil
}
