package routes

import (
	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/handlers"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
)

// Handlers are the request handlers the router dispatches to.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Diagnoses *handlers.DiagnosisHandler
	Signup    *handlers.SignupHandler
	Patient   *handlers.PatientHandler
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers, jwtSecret string) {
	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", h.Auth.Login)

		signupRoutes := public.Group("/signup")
		{
			signupRoutes.POST("", h.Signup.StartSignup)
			signupRoutes.GET("/:flowId", h.Signup.GetSignup)
			signupRoutes.POST("/:flowId/verify", h.Signup.Verify)
			signupRoutes.POST("/:flowId/account", h.Signup.SubmitAccount)
			signupRoutes.POST("/:flowId/back", h.Signup.Back)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(jwtSecret))
	{
		private.GET("/auth/profile", h.Auth.GetProfile)

		// Row access is enforced by the backend for the caller's token.
		diagnosisRoutes := private.Group("/diagnoses")
		{
			diagnosisRoutes.GET("", h.Diagnoses.ListDiagnoses)
			diagnosisRoutes.POST("", h.Diagnoses.CreateDiagnosis)
			diagnosisRoutes.DELETE("/:id", h.Diagnoses.DeleteDiagnosis)
		}

		// Bulk export is a staff tool
		private.GET("/patients/:patientId/diagnoses/export",
			middleware.RoleAuthMiddleware(models.RoleStaff),
			h.Diagnoses.ExportDiagnoses)

		private.GET("/patient", h.Patient.GetDashboard)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
