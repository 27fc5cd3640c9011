package controller

import (
	"errors"

	"kiwi_quiz_service/internal/service"
	"kiwi_quiz_service/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	Service *service.GradingService
}

func NewSubmissionController(svc *service.GradingService) *SubmissionController {
	return &SubmissionController{Service: svc}
}

// @Summary Submit and grade a student's answers
// @Description Grades the whole submission in one model call with a deterministic fallback; resubmission replaces the previous attempt
// @Tags quiz
// @Accept json
// @Produce json
// @Param body body service.SubmissionInput true "Submission"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/submit_answers [post]
func (c *SubmissionController) SubmitAnswers(ctx *gin.Context) {
	var req service.SubmissionInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.Service.ProcessSubmission(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrQuestionNotInQuiz),
			errors.Is(err, util.ErrEmptySelection),
			errors.Is(err, util.ErrUnscorableQuestion):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, out)
}
