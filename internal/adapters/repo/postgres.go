// Package repo реализует репозитории домена на основе pgxpool.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"job-match-engine/internal/domain"
	"job-match-engine/internal/infra/metrics"
)

// Postgres реализует UserRepo, JobRepo и MatchRepo.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo  = (*Postgres)(nil)
	_ domain.JobRepo   = (*Postgres)(nil)
	_ domain.MatchRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListEligible возвращает активные анкеты, допущенные к прогону.
func (p *Postgres) ListEligible(ctx context.Context) ([]domain.UserPreferences, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT email, cities, categories, entry_level_pref, work_environment, visa_status, tier,
       skills, industries, company_size, career_keywords, languages, created_at, updated_at
FROM user_preferences
WHERE is_active = true
ORDER BY email`)
	metrics.ObserveNetworkRequest("postgres", "list_eligible", "user_preferences", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.UserPreferences
	for rows.Next() {
		prefs, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, prefs)
	}
	return users, rows.Err()
}

// GetByEmail возвращает анкету пользователя.
func (p *Postgres) GetByEmail(ctx context.Context, email string) (domain.UserPreferences, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT email, cities, categories, entry_level_pref, work_environment, visa_status, tier,
       skills, industries, company_size, career_keywords, languages, created_at, updated_at
FROM user_preferences
WHERE email = $1`, email)
	metrics.ObserveNetworkRequest("postgres", "get_user", "user_preferences", start, err)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.UserPreferences{}, err
		}
		return domain.UserPreferences{}, domain.ErrUserNotFound
	}
	return scanUser(rows)
}

func scanUser(rows pgx.Rows) (domain.UserPreferences, error) {
	var (
		prefs           domain.UserPreferences
		workEnvironment string
		tier            string
	)
	err := rows.Scan(
		&prefs.Email, &prefs.Cities, &prefs.Categories, &prefs.EntryLevelPref,
		&workEnvironment, &prefs.VisaStatus, &tier,
		&prefs.Skills, &prefs.Industries, &prefs.CompanySize, &prefs.CareerKeywords,
		&prefs.Languages, &prefs.CreatedAt, &prefs.UpdatedAt,
	)
	if err != nil {
		return domain.UserPreferences{}, err
	}
	prefs.WorkEnvironment = domain.WorkEnvironment(workEnvironment)
	prefs.Tier = domain.Tier(tier)
	return prefs, nil
}

// ListActive возвращает активные early-career вакансии в окне свежести.
// Классификация уровня опыта гарантируется инжестом выше по потоку.
func (p *Postgres) ListActive(ctx context.Context, freshness time.Duration) ([]domain.JobPosting, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	since := time.Now().UTC().Add(-freshness)
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT job_hash, title, company, city, raw_location, categories, source, posted_at,
       work_environment, visa_friendly, description, experience_level
FROM job_postings
WHERE is_active = true AND posted_at >= $1
ORDER BY posted_at DESC`, since)
	metrics.ObserveNetworkRequest("postgres", "list_active", "job_postings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []domain.JobPosting
	for rows.Next() {
		var (
			posting         domain.JobPosting
			workEnvironment string
		)
		err := rows.Scan(
			&posting.Hash, &posting.Title, &posting.Company, &posting.City, &posting.RawLocation,
			&posting.Categories, &posting.Source, &posting.PostedAt,
			&workEnvironment, &posting.VisaFriendly, &posting.Description, &posting.ExperienceLevel,
		)
		if err != nil {
			return nil, err
		}
		posting.WorkEnvironment = domain.WorkEnvironment(workEnvironment)
		postings = append(postings, posting)
	}
	return postings, rows.Err()
}

// UpsertResults пишет результаты по составному ключу (user_email, job_hash):
// повторный прогон перезаписывает score и reason, не создавая дублей.
func (p *Postgres) UpsertResults(ctx context.Context, results []domain.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, result := range results {
		batch.Queue(`
INSERT INTO match_results (user_email, job_hash, score, reason, provenance, recovery_level, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (user_email, job_hash) DO UPDATE SET
	score = EXCLUDED.score,
	reason = EXCLUDED.reason,
	provenance = EXCLUDED.provenance,
	recovery_level = EXCLUDED.recovery_level,
	updated_at = now()`,
			result.UserEmail, result.JobHash, result.Score, result.Reason,
			string(result.Provenance), int(result.RecoveryLevel))
	}

	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	var execErr error
	for range results {
		if _, err := br.Exec(); err != nil && execErr == nil {
			execErr = err
		}
	}
	closeErr := br.Close()
	metrics.ObserveNetworkRequest("postgres", "upsert_results", "match_results", start, errors.Join(execErr, closeErr))
	if execErr != nil {
		return execErr
	}
	return closeErr
}

// SaveRunSummary сохраняет сводку прогона для аналитики.
func (p *Postgres) SaveRunSummary(ctx context.Context, session domain.MatchSession) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO match_runs (run_id, user_email, pool_size, filtered_count, scored_count, selected_count,
                        recovery_level, provenance, elapsed_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.RunID, session.UserEmail, session.PoolSize, session.FilteredCount,
		session.ScoredCount, session.SelectedCount, int(session.RecoveryLevel),
		string(session.Provenance), session.Elapsed.Milliseconds(), session.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "save_run_summary", "match_runs", start, err)
	return err
}

// ListRunSummaries возвращает последние сводки прогонов пользователя.
func (p *Postgres) ListRunSummaries(ctx context.Context, email string, limit int) ([]domain.MatchSession, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT run_id, user_email, pool_size, filtered_count, scored_count, selected_count,
       recovery_level, provenance, elapsed_ms, created_at
FROM match_runs
WHERE user_email = $1
ORDER BY created_at DESC
LIMIT $2`, email, limit)
	metrics.ObserveNetworkRequest("postgres", "list_run_summaries", "match_runs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.MatchSession
	for rows.Next() {
		var (
			session    domain.MatchSession
			level      int
			provenance string
			elapsedMS  int64
		)
		err := rows.Scan(&session.RunID, &session.UserEmail, &session.PoolSize,
			&session.FilteredCount, &session.ScoredCount, &session.SelectedCount,
			&level, &provenance, &elapsedMS, &session.CreatedAt)
		if err != nil {
			return nil, err
		}
		session.RecoveryLevel = domain.RecoveryLevel(level)
		session.Provenance = domain.Provenance(provenance)
		session.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ListResults возвращает сохранённые результаты пользователя по убыванию скора.
func (p *Postgres) ListResults(ctx context.Context, email string, limit int) ([]domain.MatchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_email, job_hash, score, reason, provenance, recovery_level, created_at, updated_at
FROM match_results
WHERE user_email = $1
ORDER BY score DESC, updated_at DESC
LIMIT $2`, email, limit)
	metrics.ObserveNetworkRequest("postgres", "list_results", "match_results", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.MatchResult
	for rows.Next() {
		var (
			result     domain.MatchResult
			provenance string
			level      int
		)
		err := rows.Scan(&result.UserEmail, &result.JobHash, &result.Score, &result.Reason,
			&provenance, &level, &result.CreatedAt, &result.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result.Provenance = domain.Provenance(provenance)
		result.RecoveryLevel = domain.RecoveryLevel(level)
		results = append(results, result)
	}
	return results, rows.Err()
}
