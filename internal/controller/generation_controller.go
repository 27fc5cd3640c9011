package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"kiwi_quiz_service/internal/service"
	"kiwi_quiz_service/internal/util"

	"github.com/gin-gonic/gin"
)

type GenerationController struct {
	Service *service.GenerationService
}

func NewGenerationController(svc *service.GenerationService) *GenerationController {
	return &GenerationController{Service: svc}
}

// @Summary Generate a quiz from text
// @Description Drafts a quiz from source text under count and point-budget constraints; the draft is repaired, not persisted
// @Tags generation
// @Accept json
// @Produce json
// @Param body body service.GenerationInput true "Generation constraints and source text"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/quiz/generate-from-text [post]
func (c *GenerationController) GenerateFromText(ctx *gin.Context) {
	var req service.GenerationInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.Service.GenerateFromText(ctx.Request.Context(), req)
	if err != nil {
		c.writeGenerationError(ctx, err)
		return
	}

	util.Success(ctx, out)
}

// @Summary Generate a quiz from a PDF document
// @Description Multipart upload: input_data_json carries the constraints, file carries the PDF. The document is archived and analyzed by the model
// @Tags generation
// @Accept multipart/form-data
// @Produce json
// @Param input_data_json formData string true "Generation constraints as JSON"
// @Param file formData file true "PDF document"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/quiz/generate-from-pdf [post]
func (c *GenerationController) GenerateFromPDF(ctx *gin.Context) {
	inputJSON := ctx.PostForm("input_data_json")
	if inputJSON == "" {
		util.BadRequest(ctx, "input_data_json is required")
		return
	}

	var req service.GenerationInput
	if err := json.Unmarshal([]byte(inputJSON), &req); err != nil {
		util.BadRequest(ctx, "input_data_json is not valid JSON: "+err.Error())
		return
	}
	if req.ClassroomID == 0 || req.PointMax <= 0 || req.TypeQuestion == nil {
		util.BadRequest(ctx, "classroom_id, point_max and type_question are required")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	pdf, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	out, err := c.Service.GenerateFromPDF(ctx.Request.Context(), req, pdf, fileHeader.Filename)
	if err != nil {
		c.writeGenerationError(ctx, err)
		return
	}

	util.Success(ctx, out)
}

func (c *GenerationController) writeGenerationError(ctx *gin.Context, err error) {
	var genErr *util.GenerationFailedError
	switch {
	case errors.Is(err, util.ErrNoQuestionTypeEnabled):
		util.BadRequest(ctx, err.Error())
	case errors.As(err, &genErr):
		util.Error(ctx, http.StatusBadGateway, genErr.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
