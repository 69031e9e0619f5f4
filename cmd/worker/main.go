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
	applog "job-match-engine/internal/infra/log"
	"job-match-engine/internal/infra/metrics"
	"job-match-engine/internal/infra/openai"
	"job-match-engine/internal/infra/queue"
	"job-match-engine/internal/usecase/matching"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к Redis")
	}
	defer rdb.Close()

	repoAdapter := repo.NewPostgres(pool)
	service := buildService(cfg, repoAdapter, rdb, logger)

	var matchQueue domain.MatchQueue
	if cfg.Queues.Backend == "rabbitmq" {
		rabbit, err := queue.NewRabbitMatchQueue(cfg.RabbitURL, cfg.Queues.Match)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		matchQueue = rabbit
	} else {
		matchQueue = queue.NewRedisMatchQueue(rdb, cfg.Queues.Match)
	}

	logger.Info().Str("backend", cfg.Queues.Backend).Str("queue", cfg.Queues.Match).Msg("worker: started")

	for {
		job, ack, err := matchQueue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info().Msg("worker: остановка по сигналу")
				return
			}
			logger.Error().Err(err).Msg("worker: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		session, err := service.MatchUser(ctx, job.UserEmail)
		if err != nil {
			logger.Error().Err(err).
				Str("user", job.UserEmail).
				Str("job_id", job.ID).
				Msg("worker: прогон пользователя завершился ошибкой")
			// Неизвестный пользователь повтором не лечится, остальное
			// возвращается в очередь на повторную доставку.
			if ackErr := ack(errors.Is(err, domain.ErrUserNotFound)); ackErr != nil {
				logger.Error().Err(ackErr).Str("job_id", job.ID).Msg("worker: не удалось подтвердить задачу")
			}
			continue
		}

		logger.Info().
			Str("user", job.UserEmail).
			Str("job_id", job.ID).
			Str("run_id", session.RunID).
			Int("results", session.SelectedCount).
			Str("cause", string(job.Cause)).
			Msg("worker: job processed")
		if ackErr := ack(true); ackErr != nil {
			logger.Error().Err(ackErr).Str("job_id", job.ID).Msg("worker: не удалось подтвердить задачу")
		}
	}
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
		logger.Warn().Msg("worker: ключ OpenAI не задан, AI-скоринг выключен")
	}

	orchestrator := matching.NewOrchestrator(rules, ai, logger.With().Str("component", "recovery").Logger())
	defaults := matching.DistributionDefaults{
		MaxSourceShare:       cfg.Matching.MaxSourceShare,
		SourceSwapPenalty:    cfg.Matching.SourceSwapPenalty,
		MinOtherSourceSupply: cfg.Matching.MinOtherSourceSupply,
	}
	return matching.NewService(repoAdapter, repoAdapter, repoAdapter, orchestrator, defaults, cfg.Matching.FreshnessWindow, logger.With().Str("component", "matching").Logger())
}
