package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nutri-planner/app"
	"nutri-planner/auth"
	"nutri-planner/models"
)

func SetupRouter(s *app.State) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	corsConfig := cors.Config{
		AllowOrigins:     s.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))

	r.POST("/register", Register(s))
	r.POST("/login", Login(s))
	r.GET("/auth/google/login", GoogleLogin(s))
	r.GET("/auth/google/callback", GoogleCallback(s))

	signedIn := auth.AuthMiddleware(s.Tokens, s.Auth, "", s.Log)
	r.POST("/logout", signedIn, Logout(s))

	account := r.Group("/account", signedIn)
	account.GET("", Me(s))
	account.PUT("", UpdateProfile(s))
	account.PUT("/password", ChangePassword(s))

	patient := r.Group("/patient", auth.AuthMiddleware(s.Tokens, s.Auth, models.RolePatient, s.Log))
	patient.GET("/diagnostic/draft", GetDraft(s))
	patient.PUT("/diagnostic/draft", SaveDraft(s))
	patient.POST("/diagnostic/submit", SubmitDiagnostic(s))
	patient.GET("/diagnostic/current", CurrentDiagnostic(s))
	patient.GET("/diagnostic/export", ExportDiagnostic(s))
	patient.GET("/plan", CurrentPlan(s))
	patient.POST("/meals", LogMeal(s))
	patient.GET("/meals", ListMeals(s))
	patient.DELETE("/meals/:id", DeleteMeal(s))
	patient.GET("/dashboard", Dashboard(s))
	patient.GET("/week", Week(s))
	patient.GET("/export", ExportDay(s))
	patient.GET("/print", PrintDay(s))
	patient.GET("/print.pdf", PrintDayPDF(s))

	nutri := r.Group("/nutritionist", auth.AuthMiddleware(s.Tokens, s.Auth, models.RoleNutritionist, s.Log))
	nutri.GET("/review", ReviewList(s))
	nutri.GET("/review/:id", ReviewDetail(s))
	nutri.POST("/review/:id/evaluate", EvaluateDiagnostic(s))
	nutri.POST("/plan/validate", ValidatePlan(s))
	nutri.GET("/patients", Patients(s))
	nutri.GET("/patients/:id/meals", PatientMeals(s))
	nutri.GET("/patients/:id/meals/:entryId/evaluation", MealEvaluation(s))
	nutri.PUT("/patients/:id/meals/:entryId/evaluation", EvaluateMeal(s))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
