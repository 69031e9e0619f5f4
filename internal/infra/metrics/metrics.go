package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MatchBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_build_seconds",
		Help:    "Время прогона пайплайна матчинга для одного пользователя",
		Buckets: prometheus.DefBuckets,
	})
	MatchRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_runs_total",
		Help: "Общее количество прогонов матчинга",
	})
	MatchResultsWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_results_written_total",
		Help: "Количество сохранённых результатов матчинга",
	})
	RecoveryLevelTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "match_recovery_level_total",
		Help: "Количество прогонов по уровням recovery",
	}, []string{"level"})
	AIFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_ai_fallback_total",
		Help: "Отказы AI-скорера с откатом на эвристику",
	})
	SupplyExhaustionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_supply_exhaustion_total",
		Help: "Прогоны, где даже финальный fallback не дал результатов",
	})
	UpsertErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "match_upsert_errors_total",
		Help: "Ошибки сохранения результатов матчинга",
	})
	RateLimitRejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_rejects_total",
		Help: "Запросы, отклонённые rate-лимитером",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MatchBuildSeconds,
		MatchRunsTotal,
		MatchResultsWrittenTotal,
		RecoveryLevelTotal,
		AIFallbackTotal,
		SupplyExhaustionTotal,
		UpsertErrorsTotal,
		RateLimitRejectsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveMatchBuild записывает длительность прогона пайплайна.
func ObserveMatchBuild(elapsed time.Duration) {
	MatchBuildSeconds.Observe(elapsed.Seconds())
}

// IncMatchRun увеличивает счётчик прогонов.
func IncMatchRun() {
	MatchRunsTotal.Inc()
}

// AddResultsWritten учитывает сохранённые результаты.
func AddResultsWritten(n int) {
	if n > 0 {
		MatchResultsWrittenTotal.Add(float64(n))
	}
}

// IncRecoveryLevel учитывает завершённый уровень recovery.
func IncRecoveryLevel(level string) {
	RecoveryLevelTotal.WithLabelValues(level).Inc()
}

// IncAIFallback учитывает откат AI-скорера на эвристику.
func IncAIFallback() {
	AIFallbackTotal.Inc()
}

// IncSupplyExhaustion учитывает исчерпание предложения.
func IncSupplyExhaustion() {
	SupplyExhaustionTotal.Inc()
}

// IncUpsertError учитывает ошибку сохранения результатов.
func IncUpsertError() {
	UpsertErrorsTotal.Inc()
}

// IncRateLimitReject учитывает отклонённый rate-лимитером запрос.
func IncRateLimitReject() {
	RateLimitRejectsTotal.Inc()
}
