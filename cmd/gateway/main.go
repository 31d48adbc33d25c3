package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/mindengage-assess/internal/api/http"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/config"
	"github.com/mind-engage/mindengage-assess/internal/db"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/lock"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/policy"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

func main() {
	cfg := config.FromEnv()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(octx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		lg.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
	}
	defer dbh.Close()

	bank := exam.NewSQLStore(dbh)
	userStore := users.NewSQLStore(dbh)
	policies := policy.NewSQLStore(dbh)

	// --- Bootstrap data ---
	if cfg.AdminUser != "" && cfg.AdminPassHash != "" {
		if _, err := users.EnsureAdmin(ctx, userStore, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			lg.Fatal("bootstrap admin failed", "username", cfg.AdminUser, "error", err)
		}
	}

	seedPolicy := policy.Default()
	if cfg.PolicySeedFile != "" {
		if seedPolicy, err = policy.LoadFile(cfg.PolicySeedFile); err != nil {
			lg.Fatal("policy seed file", "path", cfg.PolicySeedFile, "error", err)
		}
	}
	if seeded, err := policy.SeedIfEmpty(ctx, policies, seedPolicy); err != nil {
		lg.Fatal("policy seed failed", "error", err)
	} else if seeded {
		lg.Info("policy seeded", "from_file", cfg.PolicySeedFile != "")
	}

	if cfg.SeedBank {
		nc, err := exam.SeedCompetenciesIfEmpty(ctx, bank)
		if err != nil {
			lg.Fatal("seed competencies failed", "error", err)
		}
		nq, err := exam.SeedQuestionsIfEmpty(ctx, bank)
		if err != nil {
			lg.Fatal("seed questions failed", "error", err)
		}
		lg.Info("question bank seeded", "competencies", nc, "questions", nq)
	}

	// --- Exam engine ---
	var locks exam.Locker = lock.NewLocal()
	if cfg.LockDriver == "redis" {
		rdb, err := lock.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			lg.Fatal("redis lock", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()
		locks = lock.NewRedis(rdb, cfg.LockTTL, lg)
	}

	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	svc, err := exam.NewService(exam.Deps{
		Exams:        bank,
		Questions:    bank,
		Competencies: bank,
		Policies:     policies,
		Users:        userStore,
		Locks:        locks,
		Events:       events,
		Log:          lg,
	}, exam.WithSettings(exam.Settings{
		SecondsPerQuestion:   cfg.PerQuestionSeconds,
		CompetenciesPerLevel: cfg.CompetenciesPerLevel,
		QuestionsPerExam:     cfg.QuestionsPerExam,
		AutoSubmitOnExpiry:   cfg.AutoSubmitOnExpiry,
	}))
	if err != nil {
		lg.Fatal("exam service", "error", err)
	}

	// --- Router ---
	h := api.NewRouter(api.RouterDeps{
		Exams:              svc,
		Questions:          bank,
		Competencies:       bank,
		Policies:           policies,
		Users:              userStore,
		Events:             events,
		Auth:               auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
		DB:                 dbh,
		Log:                lg,
		CORSOrigins:        cfg.CORSOrigins(),
		EnableLocalAuth:    cfg.EnableLocalAuth,
		AllowClaimFallback: cfg.Mode == config.ModeOffline,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			lg.Error("shutdown", "error", err)
		}
	}()

	lg.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "lock", cfg.LockDriver, "site_id", cfg.SiteID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("server failed", "error", err)
	}
	lg.Info("stopped")
}
