// Package scorer содержит реализации domain.Scorer и domain.AIScorer:
// эвристический скоринг по правилам и оценку внешней LLM.
package scorer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"job-match-engine/internal/domain"
)

// Config задаёт веса эвристического скоринга. Значения по умолчанию
// подобраны продуктово и намеренно вынесены в конфигурацию.
type Config struct {
	RatioCutoff       float64 // ниже этого порога кандидат исключается из ранжирования
	CategoryWeight    float64
	CompletenessBonus float64
	MultiFullBonus    float64
	MultiPartialBonus float64
	MultiBaseBonus    float64
	MaxFreshnessHours float64
}

// DefaultConfig возвращает продуктовые значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		RatioCutoff:       0.4,
		CategoryWeight:    60,
		CompletenessBonus: 20,
		MultiFullBonus:    20,
		MultiPartialBonus: 10,
		MultiBaseBonus:    5,
		MaxFreshnessHours: 14 * 24,
	}
}

// Heuristic применяет детерминированный скоринг по правилам.
type Heuristic struct {
	cfg Config
	now func() time.Time
}

var _ domain.Scorer = (*Heuristic)(nil)

// NewHeuristic создаёт скорер.
func NewHeuristic(cfg Config) *Heuristic {
	return &Heuristic{cfg: cfg, now: time.Now}
}

// Score оценивает кандидатов и возвращает их по убыванию скора.
// Кандидаты с релевантностью ниже порога отбрасываются; opts.RatioCutoff
// позволяет ослабить порог на relaxed-уровнях recovery. Равные скоры
// упорядочиваются по более свежей дате публикации.
func (h *Heuristic) Score(prefs domain.UserPreferences, candidates []domain.MatchCandidate, opts domain.ScoreOptions) []domain.MatchCandidate {
	prefs = prefs.Effective()
	now := h.now().UTC()

	cutoff := h.cfg.RatioCutoff
	if opts.RatioCutoff != nil {
		cutoff = *opts.RatioCutoff
	}

	out := make([]domain.MatchCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		ratio := relevanceRatio(prefs.Categories, candidate.Posting.Categories)
		if ratio < cutoff {
			continue
		}

		score := ratio * h.cfg.CategoryWeight
		reason := fmt.Sprintf("matches %d of %d job categories",
			overlapCount(prefs.Categories, candidate.Posting.Categories), len(candidate.Posting.Categories))

		if len(prefs.Categories) > 1 && prefs.Profile().Tier == domain.TierPremium {
			covered := coveredPaths(prefs.Categories, candidate.Posting.Categories)
			switch {
			case covered == len(prefs.Categories):
				score += h.cfg.MultiFullBonus
				reason += ", covers all selected career paths"
			case covered >= 1:
				score += h.cfg.MultiPartialBonus
				reason += ", covers part of selected career paths"
			default:
				score += h.cfg.MultiBaseBonus
			}
		}

		completeness := 0.0
		if len(candidate.Posting.Categories) > 0 {
			completeness = h.cfg.CompletenessBonus
			score += completeness
		}

		recency := freshness(now, candidate.Posting.PostedAt, h.cfg.MaxFreshnessHours)

		candidate.RelevanceRatio = ratio
		candidate.Completeness = completeness
		candidate.Recency = recency
		candidate.Score = clampScore(score)
		candidate.Reason = reason
		out = append(out, candidate)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Posting.PostedAt.After(out[j].Posting.PostedAt)
	})
	return out
}

// relevanceRatio = |пересечение категорий| / |категории вакансии|.
// Пользователь без категорий считается полностью совместимым.
func relevanceRatio(userCategories, jobCategories []string) float64 {
	if len(userCategories) == 0 {
		return 1
	}
	if len(jobCategories) == 0 {
		return 0
	}
	return float64(overlapCount(userCategories, jobCategories)) / float64(len(jobCategories))
}

func overlapCount(userCategories, jobCategories []string) int {
	count := 0
	for _, got := range jobCategories {
		for _, want := range userCategories {
			if strings.EqualFold(want, got) {
				count++
				break
			}
		}
	}
	return count
}

// coveredPaths считает, сколько выбранных направлений покрыто вакансией.
func coveredPaths(userCategories, jobCategories []string) int {
	count := 0
	for _, want := range userCategories {
		for _, got := range jobCategories {
			if strings.EqualFold(want, got) {
				count++
				break
			}
		}
	}
	return count
}

func freshness(now, postedAt time.Time, maxHours float64) float64 {
	if maxHours <= 0 || postedAt.IsZero() {
		return 0
	}
	age := now.Sub(postedAt).Hours()
	if age < 0 {
		return 1
	}
	if age >= maxHours {
		return 0
	}
	return 1 - age/maxHours
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
