package matching

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"job-match-engine/internal/domain"
)

func cohort(n int) []domain.UserPreferences {
	users := make([]domain.UserPreferences, 0, n)
	for i := 0; i < n; i++ {
		prefs := freePrefs()
		prefs.Email = "user-" + string(rune('a'+i)) + "@example.com"
		users = append(users, prefs)
	}
	return users
}

func TestRunAllProcessesCohort(t *testing.T) {
	matches := newStubMatchRepo()
	service := newTestService(&stubUserRepo{}, &stubJobRepo{}, matches, nil)
	coordinator := NewCoordinator(service, 5, 4, zerolog.Nop())

	users := cohort(7)
	report := coordinator.RunAll(context.Background(), users, berlinPool(5))
	if report.Users != 7 || report.Succeeded != 7 || report.Failed != 0 {
		t.Fatalf("неожиданный отчёт: %+v", report)
	}
	for _, prefs := range users {
		if matches.countFor(prefs.Email) != 5 {
			t.Fatalf("пользователь %s должен получить 5 результатов", prefs.Email)
		}
	}
}

func TestRunAllBatchMatchesSoloOutcome(t *testing.T) {
	pool := berlinPool(5)
	users := cohort(6)

	soloMatches := newStubMatchRepo()
	solo := newTestService(&stubUserRepo{}, &stubJobRepo{}, soloMatches, nil)
	for _, prefs := range users {
		if _, err := solo.RunForUser(context.Background(), prefs, pool); err != nil {
			t.Fatalf("одиночный прогон: %v", err)
		}
	}

	batchMatches := newStubMatchRepo()
	batch := newTestService(&stubUserRepo{}, &stubJobRepo{}, batchMatches, nil)
	coordinator := NewCoordinator(batch, 5, 4, zerolog.Nop())
	coordinator.RunAll(context.Background(), users, pool)

	for _, prefs := range users {
		soloResults, _ := soloMatches.ListResults(context.Background(), prefs.Email, 50)
		batchResults, _ := batchMatches.ListResults(context.Background(), prefs.Email, 50)
		if len(soloResults) != len(batchResults) {
			t.Fatalf("batch-режим должен давать те же результаты, что и одиночный: %d != %d",
				len(soloResults), len(batchResults))
		}
		soloByHash := map[string]float64{}
		for _, result := range soloResults {
			soloByHash[result.JobHash] = result.Score
		}
		for _, result := range batchResults {
			if soloByHash[result.JobHash] != result.Score {
				t.Fatalf("скор в batch-режиме разошёлся с одиночным для %s", result.JobHash)
			}
		}
	}
}

func TestRunAllOneFailureDoesNotAbortOthers(t *testing.T) {
	matches := newStubMatchRepo()
	users := cohort(4)
	matches.failFor = users[1].Email

	service := newTestService(&stubUserRepo{}, &stubJobRepo{}, matches, nil)
	coordinator := NewCoordinator(service, 10, 2, zerolog.Nop())

	report := coordinator.RunAll(context.Background(), users, berlinPool(5))
	if report.Failed != 1 {
		t.Fatalf("ожидали 1 ошибку, получили %d", report.Failed)
	}
	if report.Succeeded != 3 {
		t.Fatalf("остальные пользователи должны обработаться: %+v", report)
	}
	for i, prefs := range users {
		if i == 1 {
			continue
		}
		if matches.countFor(prefs.Email) != 5 {
			t.Fatalf("пользователь %s должен получить результаты несмотря на чужую ошибку", prefs.Email)
		}
	}
}

func TestRunAllCountsNoMatchUsers(t *testing.T) {
	matches := newStubMatchRepo()
	service := newTestService(&stubUserRepo{}, &stubJobRepo{}, matches, nil)
	coordinator := NewCoordinator(service, 5, 4, zerolog.Nop())

	report := coordinator.RunAll(context.Background(), cohort(3), nil)
	if report.NoMatches != 3 || report.Failed != 0 {
		t.Fatalf("пустой пул — исход no_matches, не ошибка: %+v", report)
	}
	if len(matches.sessions) != 3 {
		t.Fatalf("сводка фиксируется для каждого пользователя")
	}
}

func TestGroupBySignatureKeepsAllUsers(t *testing.T) {
	users := cohort(6)
	users[0].Cities = []string{"Madrid"}
	users[3].Tier = domain.TierPremium

	grouped := groupBySignature(users)
	if len(grouped) != len(users) {
		t.Fatalf("группировка не теряет пользователей: %d != %d", len(grouped), len(users))
	}
	seen := map[string]bool{}
	for _, prefs := range grouped {
		seen[prefs.Email] = true
	}
	for _, prefs := range users {
		if !seen[prefs.Email] {
			t.Fatalf("пользователь %s пропал после группировки", prefs.Email)
		}
	}
}

func TestGroupBySignatureOrdersSimilarProfilesTogether(t *testing.T) {
	premium := freePrefs()
	premium.Email = "p@example.com"
	premium.Tier = domain.TierPremium

	users := []domain.UserPreferences{cohort(1)[0], premium, cohort(2)[1]}
	grouped := groupBySignature(users)

	// Оба free-профиля с одинаковой сигнатурой должны идти подряд.
	firstFree, lastFree := -1, -1
	for i, prefs := range grouped {
		if prefs.Tier != domain.TierPremium {
			if firstFree < 0 {
				firstFree = i
			}
			lastFree = i
		}
	}
	if lastFree-firstFree != 1 {
		t.Fatalf("похожие профили должны группироваться подряд: %v", grouped)
	}
}

func TestProfileSignatureIgnoresCityOrder(t *testing.T) {
	a := domain.UserPreferences{Tier: domain.TierFree, Cities: []string{"Berlin", "Madrid"}, Categories: []string{"data-science"}}
	b := domain.UserPreferences{Tier: domain.TierFree, Cities: []string{"madrid", "BERLIN"}, Categories: []string{"data-science"}}
	if profileSignature(a) != profileSignature(b) {
		t.Fatalf("сигнатура не должна зависеть от порядка и регистра городов")
	}
}

func TestProfileSignatureIgnoresPremiumFieldsOnFree(t *testing.T) {
	a := domain.UserPreferences{Tier: domain.TierFree, Cities: []string{"Berlin"}}
	b := domain.UserPreferences{Tier: domain.TierFree, Cities: []string{"Berlin"}, Skills: []string{"python"}}
	if profileSignature(a) != profileSignature(b) {
		t.Fatalf("premium-поля не влияют на сигнатуру free-профиля")
	}
}
