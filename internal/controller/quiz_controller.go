package controller

import (
	"errors"
	"strconv"

	"kiwi_quiz_service/internal/service"
	"kiwi_quiz_service/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// @Summary Create a quiz
// @Description Persists a quiz with its questions and answer bases, computing total points
// @Tags quiz
// @Accept json
// @Produce json
// @Param body body service.QuizCreateInput true "Quiz definition"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/quiz/create [post]
func (c *QuizController) Create(ctx *gin.Context) {
	var req service.QuizCreateInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.Service.CreateQuiz(req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidSchedule), errors.Is(err, util.ErrInvalidAnswerBase):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, out)
}

// @Summary Get quizzes by ids
// @Tags quiz
// @Accept json
// @Produce json
// @Param body body controller.QuizIDsRequest true "Quiz id list"
// @Success 200 {object} util.Response
// @Router /api/quiz/get-by-ids [post]
func (c *QuizController) GetByIDs(ctx *gin.Context) {
	var req QuizIDsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	outs, err := c.Service.GetQuizzesByIDs(req.QuizIDs)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, outs)
}

type QuizIDsRequest struct {
	QuizIDs []uint `json:"quiz_ids" binding:"required,min=1"`
}

// @Summary Get quiz details
// @Description Quiz with questions and decoded answer bases
// @Tags quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/details [get]
func (c *QuizController) GetDetails(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	out, err := c.Service.GetQuizDetails(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, out)
}

// @Summary Get a student's quiz results
// @Tags quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Param studentId path int true "Student ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/results/{studentId} [get]
func (c *QuizController) GetResults(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(ctx, "studentId")
	if !ok {
		return
	}

	out, err := c.Service.GetQuizResults(quizID, studentID)
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) || errors.Is(err, util.ErrAttemptNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, out)
}

// @Summary Get points per student for a quiz
// @Tags quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/students-points [get]
func (c *QuizController) GetStudentsPoints(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	outs, err := c.Service.GetStudentsPoints(id)
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, outs)
}

// @Summary List classroom quizzes with a student's attempt status
// @Tags quiz
// @Produce json
// @Param classroomId path int true "Classroom ID"
// @Param studentId path int true "Student ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/classroom/{classroomId}/student/{studentId} [get]
func (c *QuizController) GetClassroomQuizzes(ctx *gin.Context) {
	classroomID, ok := pathID(ctx, "classroomId")
	if !ok {
		return
	}
	studentID, ok := pathID(ctx, "studentId")
	if !ok {
		return
	}

	outs, err := c.Service.GetClassroomQuizzesWithStatus(classroomID, studentID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, outs)
}

// @Summary Delete a quiz
// @Description Cascades to questions, answer bases, attempts and submitted answers
// @Tags quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id} [delete]
func (c *QuizController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.Service.DeleteQuiz(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": id})
}
