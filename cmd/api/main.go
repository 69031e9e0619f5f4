package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"job-match-engine/internal/adapters/repo"
	"job-match-engine/internal/adapters/scorer"
	"job-match-engine/internal/domain"
	"job-match-engine/internal/infra/cache"
	"job-match-engine/internal/infra/config"
	"job-match-engine/internal/infra/db"
	httpinfra "job-match-engine/internal/infra/http"
	"job-match-engine/internal/infra/lock"
	applog "job-match-engine/internal/infra/log"
	"job-match-engine/internal/infra/metrics"
	"job-match-engine/internal/infra/openai"
	"job-match-engine/internal/infra/queue"
	"job-match-engine/internal/infra/ratelimit"
	"job-match-engine/internal/usecase/matching"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
	}
	defer rdb.Close()

	repoAdapter := repo.NewPostgres(pool)
	service := buildService(cfg, repoAdapter, rdb, logger)
	coordinator := matching.NewCoordinator(service, cfg.Matching.BatchThreshold, cfg.Matching.Workers, logger.With().Str("component", "batch").Logger())

	var matchQueue domain.MatchQueue
	if cfg.Queues.Backend == "rabbitmq" {
		rabbit, err := queue.NewRabbitMatchQueue(cfg.RabbitURL, cfg.Queues.Match)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		matchQueue = rabbit
	} else {
		matchQueue = queue.NewRedisMatchQueue(rdb, cfg.Queues.Match)
	}

	handlers := &api{
		cfg:         cfg,
		repo:        repoAdapter,
		coordinator: coordinator,
		queue:       matchQueue,
		runLock:     lock.NewRedis(rdb),
		limiter:     ratelimit.NewRedis(rdb, cfg.RateLimit.PerMinute, time.Minute),
		log:         logger.With().Str("component", "api").Logger(),
	}

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	server.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	server.Router.Route("/api/v1/match", func(r chi.Router) {
		r.Use(handlers.rateLimit)
		r.Post("/run", handlers.triggerRun)
		r.Post("/users/{email}", handlers.enqueueUser)
		r.Get("/users/{email}/results", handlers.userResults)
		r.Get("/users/{email}/runs", handlers.userRuns)
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: graceful shutdown не удался")
		}
		<-serveErr
		logger.Info().Msg("api: остановка по сигналу")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: HTTP сервер остановился с ошибкой")
		}
	}
}

type api struct {
	cfg         config.AppConfig
	repo        *repo.Postgres
	coordinator *matching.Coordinator
	queue       domain.MatchQueue
	runLock     domain.RunLock
	limiter     domain.RateLimiter
	log         zerolog.Logger
}

// rateLimit отклоняет запросы сверх лимита окна по идентичности вызывающего.
func (a *api) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get("X-Api-Key")
		if caller == "" {
			caller = r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				caller = host
			}
		}
		ok, err := a.limiter.Allow(r.Context(), caller)
		if err != nil {
			a.log.Error().Err(err).Msg("api: ошибка rate-лимитера")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			metrics.IncRateLimitReject()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// triggerRun запускает batch-прогон по всей когорте. Конкурентный запуск
// блокируется локом: второй вызов получает 409 и не должен повторяться
// в том же окне.
func (a *api) triggerRun(w http.ResponseWriter, r *http.Request) {
	release, err := a.runLock.Acquire(r.Context(), a.cfg.Lock.Key, a.cfg.Lock.TTL)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "already_running"})
			return
		}
		a.log.Error().Err(err).Msg("api: не удалось захватить лок прогона")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		defer func() {
			if err := release(runCtx); err != nil {
				a.log.Error().Err(err).Msg("api: не удалось снять лок прогона")
			}
		}()

		users, err := a.repo.ListEligible(runCtx)
		if err != nil {
			a.log.Error().Err(err).Msg("api: ошибка выборки пользователей")
			return
		}
		postings, err := a.repo.ListActive(runCtx, a.cfg.Matching.FreshnessWindow)
		if err != nil {
			a.log.Error().Err(err).Msg("api: ошибка выборки вакансий")
			return
		}
		a.coordinator.RunAll(runCtx, users, postings)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// enqueueUser ставит одиночный прогон пользователя в очередь.
func (a *api) enqueueUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if _, err := a.repo.GetByEmail(r.Context(), email); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		a.log.Error().Err(err).Str("user", email).Msg("api: ошибка проверки пользователя")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	job := domain.MatchJob{
		ID:          uuid.NewString(),
		UserEmail:   email,
		RequestedAt: time.Now().UTC(),
		Cause:       domain.MatchCauseManual,
	}
	if err := a.queue.Enqueue(r.Context(), job); err != nil {
		a.log.Error().Err(err).Str("user", email).Msg("api: не удалось поставить задачу в очередь")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": job.ID})
}

// userResults возвращает сохранённые результаты пользователя.
func (a *api) userResults(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := a.repo.ListResults(r.Context(), email, limit)
	if err != nil {
		a.log.Error().Err(err).Str("user", email).Msg("api: ошибка выборки результатов")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

// userRuns возвращает последние сводки прогонов пользователя.
func (a *api) userRuns(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	sessions, err := a.repo.ListRunSummaries(r.Context(), email, 10)
	if err != nil {
		a.log.Error().Err(err).Str("user", email).Msg("api: ошибка выборки сводок прогонов")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": sessions, "count": len(sessions)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func buildService(cfg config.AppConfig, repoAdapter *repo.Postgres, rdb *redis.Client, logger zerolog.Logger) *matching.Service {
	heuristicCfg := scorer.DefaultConfig()
	heuristicCfg.RatioCutoff = cfg.Matching.RatioCutoff
	heuristicCfg.MaxFreshnessHours = cfg.Matching.FreshnessWindow.Hours()
	rules := scorer.NewHeuristic(heuristicCfg)

	var ai domain.AIScorer
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		ai = scorer.NewLLM(client, cache.NewRedis(rdb), cfg.OpenAI.Model, cfg.OpenAI.Timeout, 50, logger.With().Str("component", "llm_scorer").Logger())
	} else {
		logger.Warn().Msg("api: ключ OpenAI не задан, AI-скоринг выключен")
	}

	orchestrator := matching.NewOrchestrator(rules, ai, logger.With().Str("component", "recovery").Logger())
	defaults := matching.DistributionDefaults{
		MaxSourceShare:       cfg.Matching.MaxSourceShare,
		SourceSwapPenalty:    cfg.Matching.SourceSwapPenalty,
		MinOtherSourceSupply: cfg.Matching.MinOtherSourceSupply,
	}
	return matching.NewService(repoAdapter, repoAdapter, repoAdapter, orchestrator, defaults, cfg.Matching.FreshnessWindow, logger.With().Str("component", "matching").Logger())
}
