package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"job-match-engine/internal/domain"
	"job-match-engine/internal/infra/metrics"
)

// ErrNoEligibleUsers возвращается, когда для прогона нет ни одной анкеты.
var ErrNoEligibleUsers = errors.New("нет пользователей для прогона")

// Service реализует бизнес-логику матчинга одного пользователя:
// лестница recovery → нормализация → идемпотентный upsert → сводка прогона.
type Service struct {
	users        domain.UserRepo
	jobs         domain.JobRepo
	matches      domain.MatchRepo
	orchestrator *Orchestrator
	defaults     DistributionDefaults
	freshness    time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewService создаёт сервис матчинга.
func NewService(users domain.UserRepo, jobs domain.JobRepo, matches domain.MatchRepo, orchestrator *Orchestrator, defaults DistributionDefaults, freshness time.Duration, log zerolog.Logger) *Service {
	return &Service{
		users:        users,
		jobs:         jobs,
		matches:      matches,
		orchestrator: orchestrator,
		defaults:     defaults,
		freshness:    freshness,
		log:          log,
		now:          time.Now,
	}
}

// MatchUser загружает анкету и пул вакансий и прогоняет пайплайн.
func (s *Service) MatchUser(ctx context.Context, email string) (domain.MatchSession, error) {
	prefs, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.MatchSession{}, fmt.Errorf("получение анкеты: %w", err)
	}
	pool, err := s.jobs.ListActive(ctx, s.freshness)
	if err != nil {
		return domain.MatchSession{}, fmt.Errorf("получение пула вакансий: %w", err)
	}
	return s.RunForUser(ctx, prefs, pool)
}

// RunForUser прогоняет пайплайн для готовой пары (анкета, пул вакансий).
// Пустой пул — информационный исход "nothing to do", не ошибка.
func (s *Service) RunForUser(ctx context.Context, prefs domain.UserPreferences, pool []domain.JobPosting) (domain.MatchSession, error) {
	start := s.now()
	metrics.IncMatchRun()

	session := domain.MatchSession{
		RunID:     uuid.NewString(),
		UserEmail: prefs.Email,
		PoolSize:  len(pool),
		CreatedAt: start.UTC(),
	}

	if len(pool) == 0 {
		session.Provenance = domain.ProvenanceRules
		s.log.Info().Str("user", prefs.Email).Msg("matching: пустой пул вакансий, нечего делать")
		s.finishSession(ctx, &session, start)
		return session, nil
	}

	dist := BuildDistribution(prefs, s.defaults)
	outcome := s.orchestrator.Run(ctx, prefs, pool, dist)

	session.FilteredCount = outcome.FilteredCount
	session.ScoredCount = outcome.ScoredCount
	session.SelectedCount = len(outcome.Candidates)
	session.RecoveryLevel = outcome.Level
	session.Provenance = outcome.Provenance

	if len(outcome.Candidates) == 0 {
		// Пользователь получает явный сигнал "подходящих вакансий нет",
		// а не тихий пустой результат: сводка прогона фиксируется всегда.
		s.log.Warn().
			Str("user", prefs.Email).
			Str("run_id", session.RunID).
			Msg("matching: no matches available")
		s.finishSession(ctx, &session, start)
		return session, nil
	}

	results := make([]domain.MatchResult, 0, len(outcome.Candidates))
	for _, candidate := range outcome.Candidates {
		results = append(results, domain.MatchResult{
			UserEmail:     prefs.Email,
			JobHash:       candidate.Posting.Hash,
			Score:         candidate.FinalScore(),
			Reason:        candidate.Reason,
			Provenance:    outcome.Provenance,
			RecoveryLevel: outcome.Level,
		})
	}

	if err := s.matches.UpsertResults(ctx, results); err != nil {
		metrics.IncUpsertError()
		s.finishSession(ctx, &session, start)
		return session, fmt.Errorf("сохранение результатов для %s: %w", prefs.Email, err)
	}
	metrics.AddResultsWritten(len(results))

	s.finishSession(ctx, &session, start)
	s.log.Info().
		Str("user", prefs.Email).
		Str("run_id", session.RunID).
		Str("level", outcome.Level.String()).
		Str("provenance", string(outcome.Provenance)).
		Int("results", len(results)).
		Dur("elapsed", session.Elapsed).
		Msg("matching: run completed")
	return session, nil
}

func (s *Service) finishSession(ctx context.Context, session *domain.MatchSession, start time.Time) {
	session.Elapsed = s.now().Sub(start)
	metrics.ObserveMatchBuild(session.Elapsed)
	if err := s.matches.SaveRunSummary(ctx, *session); err != nil {
		s.log.Error().Err(err).Str("user", session.UserEmail).Msg("matching: не удалось сохранить сводку прогона")
	}
}
