package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bazaarhq/bazaar-admin/internal/app"
	"github.com/bazaarhq/bazaar-admin/internal/auth"
	"github.com/bazaarhq/bazaar-admin/internal/principal"
	"github.com/bazaarhq/bazaar-admin/internal/rbac"
	"github.com/bazaarhq/bazaar-admin/internal/shared"
	"github.com/bazaarhq/bazaar-admin/internal/users"
	"github.com/bazaarhq/bazaar-admin/jobs"
)

// profileSource adapts the users repository to the principal resolver.
type profileSource struct {
	repo *users.Repository
}

func (p profileSource) ProfileByID(ctx context.Context, userID int64) (principal.Profile, error) {
	user, err := p.repo.GetUser(ctx, userID)
	if err != nil {
		return principal.Profile{}, err
	}
	return principal.Profile{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Status:   user.Status,
		RoleName: user.RoleName,
		HasRole:  user.HasRole,
	}, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "bazaar_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditRecorder := shared.NewAuditRecorder(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacStore := rbac.NewStore(dbpool)
	registry := rbac.NewRegistry(rbacStore)
	evaluator := rbac.NewEvaluator(rbacStore, logger)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	principalCache := principal.NewCache(redisClient, cfg.PrincipalCacheTTL)
	resolver := principal.NewResolver(profileSource{repo: usersRepo}, evaluator, principalCache, principal.Options{
		AdminBypass:   cfg.AdminBypass,
		AdminRoleName: cfg.AdminRoleName,
	}, logger)

	guard := rbac.NewGuard(cfg.AdminRoleName)
	rbacMiddleware := rbac.Middleware{Subjects: resolver, Guard: guard, Logger: logger}

	principalHandler := principal.NewHandler(logger, resolver, evaluator)
	rolesHandler := rbac.NewHandler(logger, registry, auditRecorder, resolver, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, registry, rbacMiddleware)
	usersHandler := users.NewHandler(logger, usersService, registry, auditRecorder, resolver, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		PrincipalHandler:   principalHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		UsersHandler:       usersHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
