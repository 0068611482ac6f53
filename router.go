package main

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// validActivationCode accepts 6 chars from the code alphabet, any case.
func validActivationCode(fl validator.FieldLevel) bool {
	code := normalizeCode(fl.Field().String())
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("activationcode", validActivationCode)
	}
}

func NewRouter(db *gorm.DB, cfg Config) *gin.Engine {
	registerValidations()

	r := gin.Default()

	// --- CORS: configured origins + any localhost:port during development ---
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, allowed := range cfg.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return strings.HasPrefix(origin, "http://localhost:")
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Optional health check
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	api := r.Group("/api/v1")

	// --- Auth ---
	api.POST("/auth/register", Register(db))
	api.POST("/auth/login", Login(db, cfg))

	authed := api.Group("", RequireAuth(db, cfg))
	{
		authed.POST("/auth/logout", Logout(db, cfg))
		authed.GET("/me", GetMe())

		// Catalog & lessons
		authed.GET("/subjects", ListSubjects(db))
		authed.GET("/subjects/:id", SubjectDetail(db))
		authed.GET("/sections/:id", SectionDetail(db))
		authed.GET("/lessons/:id", LessonDetail(db))

		// Code redemption
		authed.POST("/subjects/:id/activate", RedeemSubjectCode(db))
		authed.POST("/sections/:id/activate", RedeemSectionCode(db))
		authed.POST("/lessons/:id/activate", RedeemLessonCode(db))

		// Taking tests
		authed.GET("/tests/:id/take", GetTest(db))
		authed.POST("/tests/:id/submit", SubmitTest(db))

		// Custom tests
		authed.GET("/custom-tests/options", CustomTestOptions(db))
		authed.GET("/custom-tests", ListCustomTests(db))
		authed.POST("/custom-tests", CreateCustomTest(db))
		authed.GET("/custom-tests/:id", GetCustomTest(db))
		authed.POST("/custom-tests/:id/submit", SubmitCustomTest(db))
		authed.GET("/custom-tests/:id/result", CustomResult(db))

		// History & stats
		authed.GET("/results", MyResults(db))
		authed.GET("/results/:id", AttemptResult(db))
		authed.GET("/stats", StudentStats(db))
	}

	teacher := api.Group("/teacher", RequireAuth(db, cfg), RequireTeacher())
	{
		teacher.GET("/dashboard", TeacherDashboard(db))

		teacher.POST("/subjects", CreateSubject(db))
		teacher.PUT("/subjects/:id", UpdateSubject(db))
		teacher.DELETE("/subjects/:id", DeleteSubject(db))

		teacher.POST("/subjects/:id/sections", CreateSection(db))
		teacher.PUT("/sections/:id", UpdateSection(db))
		teacher.DELETE("/sections/:id", DeleteSection(db))
		teacher.POST("/sections/:id/toggle-code", ToggleSectionCode(db))

		teacher.POST("/sections/:id/lessons", CreateLesson(db))
		teacher.PUT("/lessons/:id", UpdateLesson(db))
		teacher.DELETE("/lessons/:id", DeleteLesson(db))

		teacher.POST("/sections/:id/tests", CreateTest(db))
		teacher.PUT("/tests/:id", UpdateTest(db))
		teacher.DELETE("/tests/:id", DeleteTest(db))
		teacher.POST("/tests/:id/questions", CreateQuestion(db))
		teacher.POST("/tests/:id/import", ImportQuestions(db))
		teacher.PUT("/questions/:id", UpdateQuestion(db))
		teacher.DELETE("/questions/:id", DeleteQuestion(db))

		// Access management
		teacher.GET("/subjects/:id/access", SubjectAccess(db))
		teacher.POST("/subjects/:id/codes", GenerateSubjectCode(db))
		teacher.DELETE("/subjects/:id/codes/:codeId", DeleteSubjectCode(db))
		teacher.POST("/subjects/:id/activations", ActivateSubjectForStudent(db))
		teacher.DELETE("/subjects/:id/activations/:studentId", RevokeSubjectForStudent(db))

		teacher.GET("/sections/:id/access", SectionAccess(db))
		teacher.POST("/sections/:id/codes", GenerateSectionCode(db))
		teacher.DELETE("/sections/:id/codes/:codeId", DeleteSectionCode(db))
		teacher.POST("/sections/:id/activations", ActivateSectionForStudent(db))
		teacher.DELETE("/sections/:id/activations/:studentId", RevokeSectionForStudent(db))

		teacher.GET("/lessons/:id/access", LessonAccess(db))
		teacher.POST("/lessons/:id/codes", GenerateLessonCode(db))
		teacher.DELETE("/lessons/:id/codes/:codeId", DeleteLessonCode(db))
		teacher.POST("/lessons/:id/activations", ActivateLessonForStudent(db))
		teacher.DELETE("/lessons/:id/activations/:studentId", RevokeLessonForStudent(db))

		// Students & results
		teacher.GET("/students", ListStudents(db))
		teacher.PUT("/students/:id", UpdateStudent(db))
		teacher.GET("/results", ResultsOverview(db))
		teacher.GET("/students/:id/results", StudentResults(db))
		teacher.PUT("/attempts/:id/regrade", RegradeAttempt(db))
		teacher.DELETE("/attempts/:id", DeleteAttempt(db))

		// Database inspection
		teacher.GET("/admin/tables", AdminOverview(db))
		teacher.GET("/admin/tables/:name", AdminTable(db))
	}

	return r
}
