package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyRunning возвращается, если batch-прогон уже идёт (лок занят).
var ErrAlreadyRunning = errors.New("matching run already in progress")

// ErrUserNotFound возвращается, если анкета пользователя не найдена.
var ErrUserNotFound = errors.New("user preferences not found")

// UserRepo отдаёт анкеты пользователей, допущенных к прогону.
type UserRepo interface {
	ListEligible(ctx context.Context) ([]UserPreferences, error)
	GetByEmail(ctx context.Context, email string) (UserPreferences, error)
}

// JobRepo отдаёт активные early-career вакансии в окне свежести.
type JobRepo interface {
	ListActive(ctx context.Context, freshness time.Duration) ([]JobPosting, error)
}

// MatchRepo сохраняет результаты матчинга идемпотентным upsert-ом.
type MatchRepo interface {
	// UpsertResults пишет результаты по ключу (user_email, job_hash):
	// повторный прогон перезаписывает score и reason, не создавая дублей.
	UpsertResults(ctx context.Context, results []MatchResult) error
	SaveRunSummary(ctx context.Context, session MatchSession) error
	ListResults(ctx context.Context, email string, limit int) ([]MatchResult, error)
	ListRunSummaries(ctx context.Context, email string, limit int) ([]MatchSession, error)
}

// ScoreOptions настраивает один проход скоринга по правилам.
type ScoreOptions struct {
	// RatioCutoff переопределяет порог релевантности скорера.
	// nil — порог из конфигурации скорера; уровни relaxed-рекавери
	// передают 0, чтобы не отбрасывать несовпавшие категории.
	RatioCutoff *float64
}

// Scorer оценивает отфильтрованных кандидатов по правилам.
type Scorer interface {
	Score(prefs UserPreferences, candidates []MatchCandidate, opts ScoreOptions) []MatchCandidate
}

// AIScore — оценка одного кандидата внешним AI-скорером.
type AIScore struct {
	JobHash string
	Score   float64 // в [0, 1]
	Reason  string
}

// AIScorer оценивает ограниченное окно кандидатов внешней моделью.
// Ошибка или таймаут не фатальны: вызывающий тихо откатывается на эвристику.
type AIScorer interface {
	ScoreWindow(ctx context.Context, prefs UserPreferences, window []MatchCandidate) ([]AIScore, error)
}

// RunLock — распределённый лок, сериализующий batch-прогоны.
// Acquire возвращает ErrAlreadyRunning, если лок удерживается другим прогоном.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RateLimiter принимает решение allow/deny по идентичности вызывающего.
type RateLimiter interface {
	Allow(ctx context.Context, caller string) (bool, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
