package service

import (
	"context"
	"errors"
	"testing"

	"kiwi_quiz_service/internal/config"
	"kiwi_quiz_service/internal/model"
	"kiwi_quiz_service/internal/repository"
	"kiwi_quiz_service/internal/util"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Quiz{},
		&model.Question{},
		&model.AnswerBase{},
		&model.QuizStudent{},
		&model.AnswerSubmitted{},
		&model.QuestionStudent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testStack struct {
	db      *gorm.DB
	quiz    *QuizService
	grading *GradingService
}

func newTestStack(t *testing.T, oracle Oracle) *testStack {
	t.Helper()

	db := newTestDB(t)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	return &testStack{
		db:      db,
		quiz:    NewQuizService(db, quizRepo, attemptRepo, nil),
		grading: NewGradingService(db, quizRepo, attemptRepo, oracle, config.AIConfig{}),
	}
}

func createCapitalsQuiz(t *testing.T, svc *QuizService) *QuizCreateOutput {
	t.Helper()

	out, err := svc.CreateQuiz(QuizCreateInput{
		ClassroomID: 1,
		Title:       "Capitales de América y Europa",
		Instruction: "Responde cada pregunta.",
		Questions: []QuestionSpec{
			{
				Statement:     "¿Cuál es la capital de Francia?",
				AnswerCorrect: "París",
				Points:        6,
				AnswerBase:    AnswerBaseSpec{Type: model.AnswerBaseText},
				CompetencesID: []int{1, 2},
			},
			{
				Statement:     "¿Cuál es la capital de Perú?",
				AnswerCorrect: "Lima",
				Points:        4,
				AnswerBase: AnswerBaseSpec{
					Type:    model.AnswerBaseMultipleOption,
					Options: []string{"Lima", "Bogotá", "Quito"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuiz error: %v", err)
	}
	return out
}

func TestCreateQuizComputesTotalPoints(t *testing.T) {
	stack := newTestStack(t, &fakeOracle{})
	out := createCapitalsQuiz(t, stack.quiz)

	if out.TotalPoints != 10 {
		t.Errorf("total points = %d, want 10", out.TotalPoints)
	}
	if len(out.Questions) != 2 {
		t.Fatalf("got %d question summaries, want 2", len(out.Questions))
	}

	var stored model.Quiz
	if err := stack.db.First(&stored, out.QuizID).Error; err != nil {
		t.Fatalf("reload quiz: %v", err)
	}
	if stored.TotalPoints != 10 {
		t.Errorf("stored total points = %d, want 10", stored.TotalPoints)
	}
}

func submission(quizID, studentID uint, questions []QuestionSummary, written, selected string) SubmissionInput {
	return SubmissionInput{
		QuizID:    quizID,
		StudentID: studentID,
		IsPresent: true,
		Questions: []QuestionSubmission{
			{
				QuestionID: questions[0].QuestionID,
				AnswerSubmitted: AnswerSubmittedSpec{
					Type:          model.AnswerSubmittedText,
					AnswerWritten: written,
				},
			},
			{
				QuestionID: questions[1].QuestionID,
				AnswerSubmitted: AnswerSubmittedSpec{
					Type:         model.AnswerSubmittedMultipleOption,
					OptionSelect: selected,
				},
			},
		},
	}
}

func TestProcessSubmissionSupersedesPriorAttempt(t *testing.T) {
	// The oracle is down, so scoring is deterministic and predictable.
	stack := newTestStack(t, &fakeOracle{err: errors.New("model offline")})
	quiz := createCapitalsQuiz(t, stack.quiz)

	first, err := stack.grading.ProcessSubmission(context.Background(),
		submission(quiz.QuizID, 42, quiz.Questions, "parís", "Lima"))
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if first.ObtainedPoints != 10 {
		t.Errorf("first attempt points = %d, want 10", first.ObtainedPoints)
	}

	if err := stack.db.Model(&model.QuizStudent{}).
		Where("id_student = ? AND id_quiz = ?", 42, quiz.QuizID).
		Update("feedback_general_teacher", "Revisa la segunda pregunta.").Error; err != nil {
		t.Fatalf("set teacher feedback: %v", err)
	}

	second, err := stack.grading.ProcessSubmission(context.Background(),
		submission(quiz.QuizID, 42, quiz.Questions, "París", "Bogotá"))
	if err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if second.ObtainedPoints != 6 {
		t.Errorf("second attempt points = %d, want 6", second.ObtainedPoints)
	}

	var attempts []model.QuizStudent
	if err := stack.db.Where("id_quiz = ?", quiz.QuizID).Find(&attempts).Error; err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("got %d attempt rows, want 1", len(attempts))
	}
	if attempts[0].PointsObtained != 6 {
		t.Errorf("attempt points = %d, want 6", attempts[0].PointsObtained)
	}
	if attempts[0].FeedbackGeneralTeacher != "" {
		t.Errorf("teacher feedback survived resubmission: %q", attempts[0].FeedbackGeneralTeacher)
	}

	var resultCount int64
	if err := stack.db.Model(&model.QuestionStudent{}).
		Where("id_student = ?", 42).Count(&resultCount).Error; err != nil {
		t.Fatalf("count results: %v", err)
	}
	if resultCount != 2 {
		t.Errorf("got %d result rows, want exactly one per question", resultCount)
	}

	var submittedCount int64
	if err := stack.db.Model(&model.AnswerSubmitted{}).Count(&submittedCount).Error; err != nil {
		t.Fatalf("count submitted answers: %v", err)
	}
	if submittedCount != 2 {
		t.Errorf("got %d submitted answers, want 2 (prior rows deleted)", submittedCount)
	}
}

func TestProcessSubmissionValidation(t *testing.T) {
	stack := newTestStack(t, &fakeOracle{err: errors.New("model offline")})
	quiz := createCapitalsQuiz(t, stack.quiz)
	other := createCapitalsQuiz(t, stack.quiz)

	t.Run("unknown quiz", func(t *testing.T) {
		input := submission(9999, 1, quiz.Questions, "x", "Lima")
		if _, err := stack.grading.ProcessSubmission(context.Background(), input); !errors.Is(err, util.ErrQuizNotFound) {
			t.Errorf("got %v, want ErrQuizNotFound", err)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		input := submission(quiz.QuizID, 1, quiz.Questions, "x", "Lima")
		input.Questions[0].QuestionID = 9999
		if _, err := stack.grading.ProcessSubmission(context.Background(), input); !errors.Is(err, util.ErrQuestionNotInQuiz) {
			t.Errorf("got %v, want ErrQuestionNotInQuiz", err)
		}
	})

	t.Run("question from another quiz", func(t *testing.T) {
		input := submission(quiz.QuizID, 1, other.Questions, "x", "Lima")
		if _, err := stack.grading.ProcessSubmission(context.Background(), input); !errors.Is(err, util.ErrQuestionNotInQuiz) {
			t.Errorf("got %v, want ErrQuestionNotInQuiz", err)
		}
	})

	t.Run("empty option selection", func(t *testing.T) {
		input := submission(quiz.QuizID, 1, quiz.Questions, "x", "")
		if _, err := stack.grading.ProcessSubmission(context.Background(), input); !errors.Is(err, util.ErrEmptySelection) {
			t.Errorf("got %v, want ErrEmptySelection", err)
		}
	})
}

func TestProcessSubmissionLookupFailurePropagates(t *testing.T) {
	stack := newTestStack(t, &fakeOracle{err: errors.New("model offline")})
	quiz := createCapitalsQuiz(t, stack.quiz)

	// Break the question table so the lookup fails with a driver error.
	if err := stack.db.Exec("DROP TABLE questions").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := stack.grading.ProcessSubmission(context.Background(),
		submission(quiz.QuizID, 1, quiz.Questions, "París", "Lima"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, util.ErrQuestionNotInQuiz) {
		t.Error("infrastructure failure was reported as a validation error")
	}
}

func TestGetQuizResultsAttemptLifecycle(t *testing.T) {
	stack := newTestStack(t, &fakeOracle{err: errors.New("model offline")})
	quiz := createCapitalsQuiz(t, stack.quiz)

	if _, err := stack.quiz.GetQuizResults(quiz.QuizID, 42); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("got %v, want ErrAttemptNotFound before any submission", err)
	}

	if _, err := stack.grading.ProcessSubmission(context.Background(),
		submission(quiz.QuizID, 42, quiz.Questions, "París", "Bogotá")); err != nil {
		t.Fatalf("submission: %v", err)
	}

	out, err := stack.quiz.GetQuizResults(quiz.QuizID, 42)
	if err != nil {
		t.Fatalf("GetQuizResults: %v", err)
	}
	if out.PointsObtained != 6 {
		t.Errorf("points = %d, want 6", out.PointsObtained)
	}
	if out.FeedbackGeneralAutomated == "" {
		t.Error("missing general feedback")
	}
	if len(out.Questions) != 2 {
		t.Fatalf("got %d question results, want 2", len(out.Questions))
	}
	for _, q := range out.Questions {
		if q.AnswerSubmitted == nil {
			t.Errorf("question %d has no submitted answer", q.ID)
		}
		if q.FeedbackAutomated == "" {
			t.Errorf("question %d has no feedback", q.ID)
		}
	}
}
