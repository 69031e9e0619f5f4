package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"job-match-engine/internal/adapters/repo"
	"job-match-engine/internal/adapters/scorer"
	"job-match-engine/internal/domain"
	"job-match-engine/internal/infra/cache"
	"job-match-engine/internal/infra/config"
	"job-match-engine/internal/infra/db"
	"job-match-engine/internal/infra/lock"
	applog "job-match-engine/internal/infra/log"
	"job-match-engine/internal/infra/metrics"
	"job-match-engine/internal/infra/openai"
	"job-match-engine/internal/usecase/matching"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("matcher: нет подключения к БД")
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("matcher: нет подключения к Redis")
	}
	defer rdb.Close()

	// Весь batch-прогон сериализуется системно: второй экземпляр выходит
	// со статусом "уже идёт" и не повторяет попытку в том же окне.
	runLock := lock.NewRedis(rdb)
	release, err := runLock.Acquire(ctx, cfg.Lock.Key, cfg.Lock.TTL)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			logger.Info().Msg("matcher: прогон уже идёт, выходим")
			return
		}
		logger.Fatal().Err(err).Msg("matcher: не удалось захватить лок")
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.Error().Err(err).Msg("matcher: не удалось снять лок")
		}
	}()

	repoAdapter := repo.NewPostgres(pool)

	users, err := repoAdapter.ListEligible(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("matcher: ошибка выборки пользователей")
	}
	if len(users) == 0 {
		logger.Info().Msg("matcher: нет пользователей для прогона, нечего делать")
		return
	}

	postings, err := repoAdapter.ListActive(ctx, cfg.Matching.FreshnessWindow)
	if err != nil {
		logger.Fatal().Err(err).Msg("matcher: ошибка выборки вакансий")
	}
	if len(postings) == 0 {
		logger.Info().Msg("matcher: нет активных вакансий, нечего делать")
		return
	}

	service := buildService(cfg, repoAdapter, rdb, logger)
	coordinator := matching.NewCoordinator(service, cfg.Matching.BatchThreshold, cfg.Matching.Workers, logger.With().Str("component", "batch").Logger())

	report := coordinator.RunAll(ctx, users, postings)
	logger.Info().
		Int("users", report.Users).
		Int("succeeded", report.Succeeded).
		Int("no_matches", report.NoMatches).
		Int("failed", report.Failed).
		Dur("elapsed", report.Elapsed).
		Msg("matcher: batch run finished")
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
		logger.Warn().Msg("matcher: ключ OpenAI не задан, AI-скоринг выключен")
	}

	orchestrator := matching.NewOrchestrator(rules, ai, logger.With().Str("component", "recovery").Logger())
	defaults := matching.DistributionDefaults{
		MaxSourceShare:       cfg.Matching.MaxSourceShare,
		SourceSwapPenalty:    cfg.Matching.SourceSwapPenalty,
		MinOtherSourceSupply: cfg.Matching.MinOtherSourceSupply,
	}
	return matching.NewService(repoAdapter, repoAdapter, repoAdapter, orchestrator, defaults, cfg.Matching.FreshnessWindow, logger.With().Str("component", "matching").Logger())
}
