package matching

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"job-match-engine/internal/domain"
)

// BatchReport — итог batch-прогона по когорте пользователей.
type BatchReport struct {
	Users     int
	Succeeded int
	Failed    int
	NoMatches int
	Elapsed   time.Duration
}

// Coordinator прогоняет пайплайн по когорте. Начиная с порога пользователи
// группируются по похожести профиля, чтобы один AI-вызов обслуживал группу
// (кеш LLM-скорера срабатывает по сигнатуре профиля). Группировка —
// оптимизация: персистентные результаты идентичны одиночным прогонам.
type Coordinator struct {
	svc       *Service
	threshold int
	workers   int
	log       zerolog.Logger
}

// NewCoordinator создаёт координатор batch-прогонов.
func NewCoordinator(svc *Service, threshold, workers int, log zerolog.Logger) *Coordinator {
	if threshold <= 0 {
		threshold = 5
	}
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{svc: svc, threshold: threshold, workers: workers, log: log}
}

// RunAll прогоняет пайплайн для всех пользователей против общего пула.
// Ошибка одного пользователя логируется и не прерывает остальных.
func (c *Coordinator) RunAll(ctx context.Context, users []domain.UserPreferences, pool []domain.JobPosting) BatchReport {
	start := time.Now()
	report := BatchReport{Users: len(users)}
	if len(users) == 0 {
		c.log.Info().Msg("batch: нет пользователей для прогона")
		report.Elapsed = time.Since(start)
		return report
	}

	ordered := users
	if len(users) >= c.threshold {
		ordered = groupBySignature(users)
		c.log.Info().
			Int("users", len(users)).
			Int("workers", c.workers).
			Msg("batch: cohort grouped for shared ai scoring")
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, c.workers)
	)
	for _, prefs := range ordered {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(prefs domain.UserPreferences) {
			defer wg.Done()
			defer func() { <-sem }()

			session, err := c.svc.RunForUser(ctx, prefs, pool)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				c.log.Error().Err(err).Str("user", prefs.Email).Msg("batch: прогон пользователя завершился ошибкой")
			case session.SelectedCount == 0:
				report.NoMatches++
			default:
				report.Succeeded++
			}
		}(prefs)
	}
	wg.Wait()

	report.Elapsed = time.Since(start)
	c.log.Info().
		Int("users", report.Users).
		Int("succeeded", report.Succeeded).
		Int("no_matches", report.NoMatches).
		Int("failed", report.Failed).
		Dur("elapsed", report.Elapsed).
		Msg("batch: run completed")
	return report
}

// groupBySignature упорядочивает пользователей так, чтобы похожие профили шли
// подряд: их AI-окна совпадают и кеш скорера отдаёт общий ответ.
func groupBySignature(users []domain.UserPreferences) []domain.UserPreferences {
	out := make([]domain.UserPreferences, len(users))
	copy(out, users)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := profileSignature(out[i]), profileSignature(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].Email < out[j].Email
	})
	return out
}

func profileSignature(prefs domain.UserPreferences) string {
	prefs = prefs.Effective()
	cities := make([]string, len(prefs.Cities))
	copy(cities, prefs.Cities)
	categories := make([]string, len(prefs.Categories))
	copy(categories, prefs.Categories)
	for i := range cities {
		cities[i] = strings.ToLower(cities[i])
	}
	for i := range categories {
		categories[i] = strings.ToLower(categories[i])
	}
	sort.Strings(cities)
	sort.Strings(categories)
	return string(prefs.Tier) + "|" + strings.Join(cities, ",") + "|" + strings.Join(categories, ",")
}
