package matching

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"job-match-engine/internal/domain"
	"job-match-engine/internal/infra/metrics"
	"job-match-engine/internal/taxonomy"
)

// Outcome — результат прогона лестницы recovery для одного пользователя.
type Outcome struct {
	Candidates    []domain.MatchCandidate
	Level         domain.RecoveryLevel
	Provenance    domain.Provenance
	FilteredCount int
	ScoredCount   int
}

// Orchestrator проходит уровни деградации от строгого фильтра к финальному
// fallback. Переход на следующий уровень происходит только при недоборе
// кандидатов; лестница конечна и всегда завершается не позже уровня 5.
type Orchestrator struct {
	rules domain.Scorer
	ai    domain.AIScorer // nil — AI-скоринг выключен
	log   zerolog.Logger
}

// NewOrchestrator создаёт оркестратор recovery.
func NewOrchestrator(rules domain.Scorer, ai domain.AIScorer, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{rules: rules, ai: ai, log: log}
}

type recoveryLevel struct {
	id          domain.RecoveryLevel
	premiumOnly bool
	// relaxedScoring снимает порог релевантности скорера: уровни, снявшие
	// категорию с пре-фильтра, не должны вернуть её через скоринг.
	relaxedScoring bool
	options        func(prefs domain.UserPreferences, profile domain.TierProfile) FilterOptions
}

func ladder() []recoveryLevel {
	return []recoveryLevel{
		{
			id: domain.LevelPrimary,
			options: func(prefs domain.UserPreferences, profile domain.TierProfile) FilterOptions {
				opts := FilterOptions{
					Cities:     prefs.Cities,
					Categories: taxonomy.ExpandSelections(prefs.Categories),
				}
				if profile.FullFilters {
					opts.WorkEnvironment = prefs.WorkEnvironment
					opts.RequireVisaFriendly = prefs.VisaStatus == "requires-sponsorship"
					opts.Skills = prefs.Skills
					opts.Industries = prefs.Industries
				}
				return opts
			},
		},
		{
			id:             domain.LevelRelaxedFiltering,
			relaxedScoring: true,
			options: func(prefs domain.UserPreferences, _ domain.TierProfile) FilterOptions {
				// Сбрасываем всё, кроме города.
				return FilterOptions{Cities: prefs.Cities}
			},
		},
		{
			id:             domain.LevelCityExpansion,
			relaxedScoring: true,
			options: func(prefs domain.UserPreferences, _ domain.TierProfile) FilterOptions {
				return FilterOptions{Cities: taxonomy.ExpandCities(prefs.Cities)}
			},
		},
		{
			id:             domain.LevelSkillRelaxation,
			premiumOnly:    true,
			relaxedScoring: true,
			options: func(prefs domain.UserPreferences, _ domain.TierProfile) FilterOptions {
				return FilterOptions{
					Cities:        taxonomy.ExpandCities(prefs.Cities),
					Skills:        prefs.Skills,
					PartialSkills: true,
				}
			},
		},
		{
			id:             domain.LevelIndustryBroadened,
			premiumOnly:    true,
			relaxedScoring: true,
			options: func(prefs domain.UserPreferences, _ domain.TierProfile) FilterOptions {
				return FilterOptions{
					Cities:     taxonomy.ExpandCities(prefs.Cities),
					Industries: taxonomy.ExpandIndustries(prefs.Industries),
				}
			},
		},
	}
}

// Run исполняет лестницу recovery. Останавливается на первом уровне,
// набравшем минимум, либо на уровне 5 безусловно.
func (o *Orchestrator) Run(ctx context.Context, prefs domain.UserPreferences, pool []domain.JobPosting, dist domain.DistributionConfig) Outcome {
	prefs = prefs.Effective()
	profile := prefs.Profile()
	minimum := profile.MinViable
	if minimum < 1 {
		minimum = 1
	}
	start := time.Now()

	for _, lvl := range ladder() {
		if lvl.premiumOnly && !profile.SkillLevels {
			continue
		}
		outcome := o.runLevel(ctx, lvl, prefs, profile, pool, dist)
		metrics.IncRecoveryLevel(outcome.Level.String())
		o.log.Info().
			Str("level", outcome.Level.String()).
			Str("confidence", outcome.Level.Confidence()).
			Str("user", prefs.Email).
			Int("filtered", outcome.FilteredCount).
			Int("selected", len(outcome.Candidates)).
			Dur("elapsed", time.Since(start)).
			Msg("recovery: level completed")
		if len(outcome.Candidates) >= minimum {
			return outcome
		}
	}

	outcome := o.finalFallback(prefs, pool, dist)
	metrics.IncRecoveryLevel(outcome.Level.String())
	if len(outcome.Candidates) == 0 {
		metrics.IncSupplyExhaustion()
		o.log.Error().
			Str("user", prefs.Email).
			Int("pool", len(pool)).
			Msg("recovery: supply exhausted, final fallback returned nothing")
	} else {
		// Уровень 5 помечается отдельно: операторы отслеживают дефицит предложения.
		o.log.Warn().
			Str("user", prefs.Email).
			Int("selected", len(outcome.Candidates)).
			Dur("elapsed", time.Since(start)).
			Msg("recovery: final fallback engaged")
	}
	return outcome
}

// runLevel исполняет один уровень: фильтр → скоринг → отбор. Ошибка
// AI-скорера не фатальна и переводит provenance в fallback.
func (o *Orchestrator) runLevel(ctx context.Context, lvl recoveryLevel, prefs domain.UserPreferences, profile domain.TierProfile, pool []domain.JobPosting, dist domain.DistributionConfig) Outcome {
	filtered, report := Prefilter(pool, lvl.options(prefs, profile))
	candidates := toCandidates(filtered, lvl.id)

	var scoreOpts domain.ScoreOptions
	if lvl.relaxedScoring {
		zero := 0.0
		scoreOpts.RatioCutoff = &zero
	}
	ranked := o.rules.Score(prefs, candidates, scoreOpts)

	aiFailed := false
	if o.ai != nil && len(ranked) > 0 {
		window := ranked
		if len(window) > profile.AIWindow {
			window = window[:profile.AIWindow]
		}
		scores, err := o.ai.ScoreWindow(ctx, prefs, window)
		if err != nil {
			aiFailed = true
			metrics.IncAIFallback()
			o.log.Warn().
				Err(err).
				Str("user", prefs.Email).
				Str("level", lvl.id.String()).
				Msg("recovery: ai scorer unavailable, falling back to heuristic")
		} else {
			applyAIScores(ranked, scores)
			sort.SliceStable(ranked, func(i, j int) bool {
				if ranked[i].FinalScore() != ranked[j].FinalScore() {
					return ranked[i].FinalScore() > ranked[j].FinalScore()
				}
				return ranked[i].Posting.PostedAt.After(ranked[j].Posting.PostedAt)
			})
		}
	}

	selected := Select(ranked, dist)
	return Outcome{
		Candidates:    selected,
		Level:         lvl.id,
		Provenance:    provenanceFor(selected, o.ai != nil, aiFailed),
		FilteredCount: report.Left,
		ScoredCount:   len(ranked),
	}
}

// finalFallback игнорирует все фильтры и отдаёт самые свежие вакансии.
func (o *Orchestrator) finalFallback(prefs domain.UserPreferences, pool []domain.JobPosting, dist domain.DistributionConfig) Outcome {
	recent := make([]domain.JobPosting, len(pool))
	copy(recent, pool)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].PostedAt.After(recent[j].PostedAt)
	})
	if len(recent) > dist.TargetCount {
		recent = recent[:dist.TargetCount]
	}

	candidates := make([]domain.MatchCandidate, 0, len(recent))
	for idx, posting := range recent {
		age := 1 - float64(idx)/float64(dist.TargetCount)
		candidates = append(candidates, domain.MatchCandidate{
			Posting: posting,
			Score:   clampFallbackScore(age * 40),
			Reason:  "most recently posted fallback pick",
			Level:   domain.LevelFinalFallback,
			Recency: age,
		})
	}
	return Outcome{
		Candidates:    candidates,
		Level:         domain.LevelFinalFallback,
		Provenance:    domain.ProvenanceFallback,
		FilteredCount: len(pool),
		ScoredCount:   len(candidates),
	}
}

func toCandidates(postings []domain.JobPosting, level domain.RecoveryLevel) []domain.MatchCandidate {
	out := make([]domain.MatchCandidate, 0, len(postings))
	for _, posting := range postings {
		out = append(out, domain.MatchCandidate{Posting: posting, Level: level})
	}
	return out
}

func applyAIScores(candidates []domain.MatchCandidate, scores []domain.AIScore) {
	byHash := make(map[string]domain.AIScore, len(scores))
	for _, score := range scores {
		byHash[score.JobHash] = score
	}
	for i := range candidates {
		if score, ok := byHash[candidates[i].Posting.Hash]; ok {
			value := score.Score
			candidates[i].AIScore = &value
			if score.Reason != "" {
				candidates[i].Reason = score.Reason
			}
		}
	}
}

// provenanceFor: все выбранные с AI-оценкой — ai, часть — hybrid,
// отказ AI — fallback, иначе rules.
func provenanceFor(selected []domain.MatchCandidate, aiEnabled, aiFailed bool) domain.Provenance {
	if aiFailed {
		return domain.ProvenanceFallback
	}
	if !aiEnabled || len(selected) == 0 {
		return domain.ProvenanceRules
	}
	withAI := 0
	for _, candidate := range selected {
		if candidate.AIScore != nil {
			withAI++
		}
	}
	switch withAI {
	case 0:
		return domain.ProvenanceRules
	case len(selected):
		return domain.ProvenanceAI
	default:
		return domain.ProvenanceHybrid
	}
}

func clampFallbackScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
