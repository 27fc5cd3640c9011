package app

import (
	"kiwi_quiz_service/docs"
	"kiwi_quiz_service/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		quiz := api.Group("/quiz")
		{
			quiz.POST("/create", c.quiz.Create)
			quiz.POST("/submit_answers", c.submission.SubmitAnswers)
			quiz.POST("/generate-from-text", c.generation.GenerateFromText)
			quiz.POST("/generate-from-pdf", c.generation.GenerateFromPDF)
			quiz.POST("/get-by-ids", c.quiz.GetByIDs)
			quiz.GET("/:id/details", c.quiz.GetDetails)
			quiz.GET("/:id/results/:studentId", c.quiz.GetResults)
			quiz.GET("/:id/students-points", c.quiz.GetStudentsPoints)
			quiz.GET("/classroom/:classroomId/student/:studentId", c.quiz.GetClassroomQuizzes)
			quiz.DELETE("/:id", c.quiz.Delete)
		}
	}
}
