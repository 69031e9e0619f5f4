package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"job-match-engine/internal/adapters/scorer"
	"job-match-engine/internal/domain"
)

// stubRules присваивает всем кандидатам фиксированный скор, ничего не отбрасывая.
type stubRules struct {
	score float64
}

func (s *stubRules) Score(_ domain.UserPreferences, candidates []domain.MatchCandidate, _ domain.ScoreOptions) []domain.MatchCandidate {
	out := make([]domain.MatchCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = s.score
		out[i].Reason = "stub score"
	}
	return out
}

type stubAI struct {
	scores map[string]float64
	err    error
	calls  int
}

func (s *stubAI) ScoreWindow(_ context.Context, _ domain.UserPreferences, window []domain.MatchCandidate) ([]domain.AIScore, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.AIScore, 0, len(window))
	for _, candidate := range window {
		if score, ok := s.scores[candidate.Posting.Hash]; ok {
			out = append(out, domain.AIScore{JobHash: candidate.Posting.Hash, Score: score, Reason: "ai reason"})
		}
	}
	return out, nil
}

func berlinPool(n int) []domain.JobPosting {
	pool := make([]domain.JobPosting, 0, n)
	for i := 0; i < n; i++ {
		p := posting("job-"+string(rune('a'+i)), "Berlin", "software-engineering")
		p.PostedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		pool = append(pool, p)
	}
	return pool
}

func freePrefs() domain.UserPreferences {
	return domain.UserPreferences{
		Email:      "user@example.com",
		Tier:       domain.TierFree,
		Cities:     []string{"Berlin"},
		Categories: []string{"software-engineering"},
	}
}

func freeDist(prefs domain.UserPreferences) domain.DistributionConfig {
	return BuildDistribution(prefs, DistributionDefaults{MaxSourceShare: 0.6, SourceSwapPenalty: 5, MinOtherSourceSupply: 10})
}

func TestRunStopsAtPrimaryLevel(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	outcome := o.Run(context.Background(), prefs, berlinPool(5), freeDist(prefs))
	if outcome.Level != domain.LevelPrimary {
		t.Fatalf("при достаточном предложении лестница останавливается на уровне 0, получили %s", outcome.Level)
	}
	if outcome.Provenance != domain.ProvenanceRules {
		t.Fatalf("без AI provenance должен быть rules, получили %s", outcome.Provenance)
	}
	if len(outcome.Candidates) != 5 {
		t.Fatalf("free получает 5 результатов, получили %d", len(outcome.Candidates))
	}
}

func TestRunEscalatesToRelaxedFiltering(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	// Город совпадает, категории — нет: уровень 0 пуст, уровень 1 снимает всё, кроме города.
	pool := make([]domain.JobPosting, 0, 4)
	for i := 0; i < 4; i++ {
		pool = append(pool, posting("m-"+string(rune('a'+i)), "Berlin", "marketing-growth"))
	}
	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Level != domain.LevelRelaxedFiltering {
		t.Fatalf("ожидали уровень relaxed_filtering, получили %s", outcome.Level)
	}
	if outcome.Level.Confidence() != "medium" {
		t.Fatalf("уровень 1 — medium confidence")
	}
}

func TestRunRelaxedFilteringSurfacesOffCategorySupply(t *testing.T) {
	// Реальный скорер: уровень 1 снимает порог релевантности, иначе
	// несовпавшие категории отсеивались бы скорингом и после снятия фильтра.
	o := NewOrchestrator(scorer.NewHeuristic(scorer.DefaultConfig()), nil, zerolog.Nop())
	prefs := freePrefs()

	pool := make([]domain.JobPosting, 0, 4)
	for i := 0; i < 4; i++ {
		pool = append(pool, posting("m-"+string(rune('a'+i)), "Berlin", "marketing-growth"))
	}
	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Level != domain.LevelRelaxedFiltering {
		t.Fatalf("уровень 1 должен отдавать вакансии вне категорий пользователя, получили %s", outcome.Level)
	}
	if outcome.Provenance != domain.ProvenanceRules {
		t.Fatalf("уровень 1 — обычный rules-скоринг, получили %s", outcome.Provenance)
	}
	if len(outcome.Candidates) != 4 {
		t.Fatalf("ожидали 4 кандидата, получили %d", len(outcome.Candidates))
	}
}

func TestRunCityExpansionFindsAliases(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	pool := make([]domain.JobPosting, 0, 4)
	for i := 0; i < 4; i++ {
		pool = append(pool, posting("p-"+string(rune('a'+i)), "Potsdam", "software-engineering"))
	}
	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Level != domain.LevelCityExpansion {
		t.Fatalf("вакансии в Потсдаме должны находиться расширением Берлина, получили %s", outcome.Level)
	}
}

func TestRunFreeSkipsPremiumLevels(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	// Лиссабон не входит в алиасы Берлина: free доходит до финального fallback,
	// минуя уровни 3-4.
	pool := make([]domain.JobPosting, 0, 4)
	for i := 0; i < 4; i++ {
		p := posting("l-"+string(rune('a'+i)), "Lisbon", "software-engineering")
		p.PostedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		pool = append(pool, p)
	}
	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Level != domain.LevelFinalFallback {
		t.Fatalf("ожидали финальный fallback, получили %s", outcome.Level)
	}
	if outcome.Provenance != domain.ProvenanceFallback {
		t.Fatalf("fallback-уровень помечается provenance=fallback")
	}
	if outcome.Level.Confidence() != "low" {
		t.Fatalf("уровень 5 — low confidence")
	}
}

func TestRunFinalFallbackPicksMostRecent(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	pool := make([]domain.JobPosting, 0, 8)
	for i := 0; i < 8; i++ {
		p := posting("l-"+string(rune('a'+i)), "Lisbon", "software-engineering")
		p.PostedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
		pool = append(pool, p)
	}
	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if len(outcome.Candidates) != 5 {
		t.Fatalf("fallback отдаёт не больше целевого размера, получили %d", len(outcome.Candidates))
	}
	if outcome.Candidates[0].Posting.Hash != "l-h" {
		t.Fatalf("fallback начинается с самой свежей вакансии, получили %s", outcome.Candidates[0].Posting.Hash)
	}
	if outcome.Candidates[0].Reason != "most recently posted fallback pick" {
		t.Fatalf("неожиданная причина fallback: %q", outcome.Candidates[0].Reason)
	}
}

func TestRunEmptyPoolExhaustsSupply(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	outcome := o.Run(context.Background(), prefs, nil, freeDist(prefs))
	if outcome.Level != domain.LevelFinalFallback || len(outcome.Candidates) != 0 {
		t.Fatalf("пустой пул — пустой fallback: %+v", outcome)
	}
}

func TestRunBelowMinimumEscalates(t *testing.T) {
	o := NewOrchestrator(&stubRules{score: 70}, nil, zerolog.Nop())
	prefs := freePrefs()

	// Двух кандидатов мало (минимум 3): уровни 0-2 дают одно и то же,
	// лестница доходит до финального fallback.
	outcome := o.Run(context.Background(), prefs, berlinPool(2), freeDist(prefs))
	if outcome.Level != domain.LevelFinalFallback {
		t.Fatalf("недобор минимума должен эскалировать до конца лестницы, получили %s", outcome.Level)
	}
	if len(outcome.Candidates) != 2 {
		t.Fatalf("fallback отдаёт сколько есть: %d", len(outcome.Candidates))
	}
}

func TestRunAIFailureFallsBackToHeuristic(t *testing.T) {
	ai := &stubAI{err: errors.New("timeout")}
	o := NewOrchestrator(&stubRules{score: 70}, ai, zerolog.Nop())
	prefs := freePrefs()

	outcome := o.Run(context.Background(), prefs, berlinPool(5), freeDist(prefs))
	if outcome.Level != domain.LevelPrimary {
		t.Fatalf("отказ AI не эскалирует лестницу, получили %s", outcome.Level)
	}
	if len(outcome.Candidates) != 5 {
		t.Fatalf("отказ AI не теряет кандидатов: %d", len(outcome.Candidates))
	}
	if outcome.Provenance != domain.ProvenanceFallback {
		t.Fatalf("отказ AI помечается provenance=fallback, получили %s", outcome.Provenance)
	}
}

func TestRunAIScoresReorderCandidates(t *testing.T) {
	pool := berlinPool(5)
	ai := &stubAI{scores: map[string]float64{}}
	for _, p := range pool {
		ai.scores[p.Hash] = 0.5
	}
	// Самая старая вакансия получает максимальную AI-оценку.
	ai.scores["job-a"] = 0.95

	o := NewOrchestrator(&stubRules{score: 70}, ai, zerolog.Nop())
	prefs := freePrefs()

	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Provenance != domain.ProvenanceAI {
		t.Fatalf("все выбранные оценены AI — provenance=ai, получили %s", outcome.Provenance)
	}
	if outcome.Candidates[0].Posting.Hash != "job-a" {
		t.Fatalf("AI-оценка должна переупорядочить кандидатов: %s", outcome.Candidates[0].Posting.Hash)
	}
	if ai.calls != 1 {
		t.Fatalf("AI вызывается один раз на уровень, было %d", ai.calls)
	}
}

func TestRunHybridProvenanceOnPartialAICoverage(t *testing.T) {
	pool := berlinPool(5)
	ai := &stubAI{scores: map[string]float64{"job-a": 0.9, "job-b": 0.8}}

	o := NewOrchestrator(&stubRules{score: 70}, ai, zerolog.Nop())
	prefs := freePrefs()

	outcome := o.Run(context.Background(), prefs, pool, freeDist(prefs))
	if outcome.Provenance != domain.ProvenanceHybrid {
		t.Fatalf("частичное покрытие AI — provenance=hybrid, получили %s", outcome.Provenance)
	}
}
