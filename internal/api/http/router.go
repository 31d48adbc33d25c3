package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/policy"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

type RouterDeps struct {
	Exams        *exam.Service
	Questions    exam.QuestionRepo
	Competencies exam.CompetencyRepo
	Policies     policy.Store
	Users        users.Store
	Events       *syncx.EventRepo // optional
	Auth         *auth.AuthService
	DB           *sql.DB // optional, for /readyz
	Log          *logger.Logger

	CORSOrigins        []string
	EnableLocalAuth    bool
	AllowClaimFallback bool
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users, log))
	}

	// Protected API (JWT → stored role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		pr.Use(auth.AttachRoleFromStore(d.Users, d.AllowClaimFallback))

		// student flow
		pr.Group(func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermExamTake))
			sr.Post("/exams/step/{step}/start", StartExamHandler(d.Exams, log))
			sr.Get("/exams/step/{step}/plan", PlanHandler(d.Exams, log))
			sr.Post("/exams/{examID}/answer", AnswerHandler(d.Exams, log))
			sr.Post("/exams/{examID}/submit", SubmitHandler(d.Exams, log))
			sr.Get("/exams/{examID}", GetExamHandler(d.Exams, log))
			sr.Get("/exams", ListMyExamsHandler(d.Exams, log))
			sr.Get("/progress", ProgressHandler(d.Exams, log))
		})

		// supervisor
		pr.With(rbac.Require(rbac.PermExamViewAll)).
			Get("/exams/all", ListAllExamsHandler(d.Exams, log))
		pr.With(rbac.Require(rbac.PermExamReset)).
			Post("/exams/{examID}/reset", ResetExamHandler(d.Exams, log))
		if d.Events != nil {
			pr.With(rbac.RequireAny(rbac.PermEventsRead, rbac.PermExamViewAll)).
				Get("/events", ListEventsHandler(d.Events, log))
		}

		// admin
		pr.With(rbac.Require(rbac.PermPolicyManage)).Get("/policy", GetPolicyHandler(d.Policies, log))
		pr.With(rbac.Require(rbac.PermPolicyManage)).Put("/policy", PutPolicyHandler(d.Policies, log))

		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Get("/questions", ListQuestionsHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Post("/questions", CreateQuestionsHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Get("/competencies", ListCompetenciesHandler(d.Competencies, log))
		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Post("/competencies", PutCompetencyHandler(d.Competencies, log))
		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Post("/questions/import/qti", ImportQTIHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionMgmt)).Get("/questions/export/qti", ExportQTIHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermSeedRun)).Post("/seed/{what}", SeedHandler(d.Competencies, d.Questions, log))

		pr.With(rbac.Require(rbac.PermUsersManage)).Get("/users", ListUsersHandler(d.Users, log))
		pr.With(rbac.Require(rbac.PermUsersManage)).Post("/users/bulk", BulkUpsertUsersHandler(d.Users, log))
		pr.With(rbac.Require(rbac.PermUsersManage)).Put("/users/{userID}/role", AdminUpdateUserRoleHandler(d.Users, log))
		pr.With(rbac.Require(rbac.PermUsersManage)).Post("/users/{userID}/unlock-step1", UnlockStep1Handler(d.Users, log))
		pr.With(rbac.Require(rbac.PermSelfPassword)).Post("/users/change-password", ChangePasswordHandler(d.Users, log))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
