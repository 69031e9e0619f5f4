package scorer

import (
	"testing"
	"time"

	"job-match-engine/internal/domain"
)

func fixedHeuristic() *Heuristic {
	h := NewHeuristic(DefaultConfig())
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func candidate(hash string, postedAt time.Time, categories ...string) domain.MatchCandidate {
	return domain.MatchCandidate{Posting: domain.JobPosting{
		Hash:       hash,
		Title:      "Junior Analyst",
		Company:    "Acme",
		Categories: categories,
		PostedAt:   postedAt,
	}}
}

func TestScoreBounded(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Tier: domain.TierPremium, Categories: []string{"finance-investment", "accounting-audit", "data-science"}}
	ranked := h.Score(prefs, []domain.MatchCandidate{
		candidate("a", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), "finance-investment", "accounting-audit", "data-science"),
	}, domain.ScoreOptions{})
	if len(ranked) != 1 {
		t.Fatalf("ожидали одного кандидата")
	}
	if ranked[0].Score < 0 || ranked[0].Score > 100 {
		t.Fatalf("скор вышел за [0, 100]: %v", ranked[0].Score)
	}
}

func TestScoreDropsBelowCutoff(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"finance-investment"}}
	// 1 из 3 категорий: 0.33 < 0.4.
	ranked := h.Score(prefs, []domain.MatchCandidate{
		candidate("a", time.Now(), "finance-investment", "marketing", "sales"),
	}, domain.ScoreOptions{})
	if len(ranked) != 0 {
		t.Fatalf("кандидат ниже порога релевантности должен отбрасываться: %v", ranked)
	}
}

func TestScoreCutoffOverrideKeepsMismatches(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"software-engineering"}}
	zero := 0.0
	// Нулевой порог оставляет вакансию вне категорий пользователя:
	// остаётся только бонус за размеченность.
	ranked := h.Score(prefs, []domain.MatchCandidate{
		candidate("a", time.Now(), "marketing-growth"),
	}, domain.ScoreOptions{RatioCutoff: &zero})
	if len(ranked) != 1 {
		t.Fatalf("нулевой порог не должен отбрасывать кандидатов: %v", ranked)
	}
	if ranked[0].Score != 20 {
		t.Fatalf("ожидали только бонус за размеченность (20), получили %v", ranked[0].Score)
	}
}

func TestScoreKeepsAtCutoff(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"finance-investment"}}
	// 2 из 5 категорий: ровно 0.4 — порог включительный.
	ranked := h.Score(prefs, []domain.MatchCandidate{
		candidate("a", time.Now(), "finance-investment", "finance-investment", "marketing", "sales", "hr"),
	}, domain.ScoreOptions{})
	if len(ranked) != 1 {
		t.Fatalf("кандидат ровно на пороге должен оставаться")
	}
}

func TestScoreEmptyUserCategoriesFullyCompatible(t *testing.T) {
	h := fixedHeuristic()
	ranked := h.Score(domain.UserPreferences{}, []domain.MatchCandidate{
		candidate("a", time.Now(), "marketing"),
	}, domain.ScoreOptions{})
	if len(ranked) != 1 {
		t.Fatalf("пользователь без категорий совместим с любой вакансией")
	}
	if ranked[0].RelevanceRatio != 1 {
		t.Fatalf("ожидали релевантность 1, получили %v", ranked[0].RelevanceRatio)
	}
}

func TestScoreUnlabeledPostingIncompatible(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"finance-investment"}}
	ranked := h.Score(prefs, []domain.MatchCandidate{candidate("a", time.Now())}, domain.ScoreOptions{})
	if len(ranked) != 0 {
		t.Fatalf("вакансия без категорий несовместима с выбором пользователя")
	}
}

func TestScoreRecencyBreaksTies(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"finance-investment"}}
	older := candidate("old", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), "finance-investment")
	newer := candidate("new", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), "finance-investment")

	ranked := h.Score(prefs, []domain.MatchCandidate{older, newer}, domain.ScoreOptions{})
	if len(ranked) != 2 {
		t.Fatalf("ожидали двух кандидатов")
	}
	if ranked[0].Posting.Hash != "new" {
		t.Fatalf("при равном скоре первой должна идти более свежая вакансия")
	}
}

func TestScoreMultiCategoryBonusPremiumOnly(t *testing.T) {
	h := fixedHeuristic()
	postedAt := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	full := candidate("a", postedAt, "finance-investment", "data-science")

	premium := domain.UserPreferences{Tier: domain.TierPremium, Categories: []string{"finance-investment", "data-science"}}
	free := domain.UserPreferences{Tier: domain.TierFree, Categories: []string{"finance-investment", "data-science"}}

	premiumRanked := h.Score(premium, []domain.MatchCandidate{full}, domain.ScoreOptions{})
	freeRanked := h.Score(free, []domain.MatchCandidate{full}, domain.ScoreOptions{})
	if premiumRanked[0].Score <= freeRanked[0].Score {
		t.Fatalf("бонус за покрытие направлений положен только premium: %v <= %v",
			premiumRanked[0].Score, freeRanked[0].Score)
	}
}

func TestScoreReasonMentionsCategories(t *testing.T) {
	h := fixedHeuristic()
	prefs := domain.UserPreferences{Categories: []string{"finance-investment"}}
	ranked := h.Score(prefs, []domain.MatchCandidate{
		candidate("a", time.Now(), "finance-investment", "accounting-audit"),
	}, domain.ScoreOptions{})
	if ranked[0].Reason != "matches 1 of 2 job categories" {
		t.Fatalf("неожиданная причина: %q", ranked[0].Reason)
	}
}
