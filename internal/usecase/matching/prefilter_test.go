package matching

import (
	"testing"
	"time"

	"job-match-engine/internal/domain"
)

func posting(hash, city string, categories ...string) domain.JobPosting {
	return domain.JobPosting{
		Hash:       hash,
		Title:      "Junior Engineer",
		Company:    "Acme",
		City:       city,
		Categories: categories,
		Source:     "boardA",
		PostedAt:   time.Now().Add(-24 * time.Hour),
	}
}

func TestPrefilterNeverGrowsPool(t *testing.T) {
	pool := []domain.JobPosting{
		posting("a", "Berlin", "software-engineering"),
		posting("b", "Madrid", "software-engineering"),
	}
	filtered, report := Prefilter(pool, FilterOptions{Cities: []string{"berlin"}})
	if len(filtered) > len(pool) {
		t.Fatalf("фильтр вернул больше, чем получил: %d > %d", len(filtered), len(pool))
	}
	if report.Initial != 2 || report.Left != 1 || report.Dropped != 1 {
		t.Fatalf("неверный отчёт фильтра: %+v", report)
	}
}

func TestPrefilterCityCaseInsensitive(t *testing.T) {
	pool := []domain.JobPosting{posting("a", "BERLIN", "software-engineering")}
	filtered, _ := Prefilter(pool, FilterOptions{Cities: []string{"berlin"}})
	if len(filtered) != 1 {
		t.Fatalf("сравнение городов должно игнорировать регистр")
	}
}

func TestPrefilterEmptyCityPasses(t *testing.T) {
	pool := []domain.JobPosting{posting("a", "", "software-engineering")}
	filtered, _ := Prefilter(pool, FilterOptions{Cities: []string{"berlin"}})
	if len(filtered) != 1 {
		t.Fatalf("вакансия без города должна проходить городской фильтр")
	}
}

func TestPrefilterCategoriesExactOverlap(t *testing.T) {
	pool := []domain.JobPosting{
		posting("a", "Berlin", "software-engineering"),
		posting("b", "Berlin", "marketing"),
		posting("c", "Berlin"),
	}
	filtered, _ := Prefilter(pool, FilterOptions{Categories: []string{"software-engineering"}})
	if len(filtered) != 2 {
		t.Fatalf("ожидали совпадение категории и проход неразмеченной вакансии, получили %d", len(filtered))
	}
}

func TestPrefilterVisaRequirement(t *testing.T) {
	friendly := posting("a", "Berlin", "software-engineering")
	friendly.VisaFriendly = true
	strict := posting("b", "Berlin", "software-engineering")
	pool := []domain.JobPosting{friendly, strict}

	filtered, _ := Prefilter(pool, FilterOptions{RequireVisaFriendly: true})
	if len(filtered) != 1 || filtered[0].Hash != "a" {
		t.Fatalf("при требовании визы должны оставаться только visa-friendly вакансии")
	}
}

func TestPrefilterSkillsExactWordMatch(t *testing.T) {
	java := posting("a", "Berlin", "software-engineering")
	java.Description = "We use Java and Kafka."
	javascript := posting("b", "Berlin", "software-engineering")
	javascript.Description = "We use JavaScript."
	pool := []domain.JobPosting{java, javascript}

	filtered, _ := Prefilter(pool, FilterOptions{Skills: []string{"java"}})
	if len(filtered) != 1 || filtered[0].Hash != "a" {
		t.Fatalf("точное совпадение навыка не должно ловить javascript: %v", filtered)
	}
}

func TestPrefilterPartialSkillsMatchSubstring(t *testing.T) {
	javascript := posting("b", "Berlin", "software-engineering")
	javascript.Description = "We use JavaScript."
	pool := []domain.JobPosting{javascript}

	filtered, _ := Prefilter(pool, FilterOptions{Skills: []string{"java"}, PartialSkills: true})
	if len(filtered) != 1 {
		t.Fatalf("substring-режим должен ловить javascript по java")
	}
}

func TestPrefilterWorkEnvironmentUnclearPasses(t *testing.T) {
	unclear := posting("a", "Berlin", "software-engineering")
	unclear.WorkEnvironment = domain.WorkEnvUnclear
	onsite := posting("b", "Berlin", "software-engineering")
	onsite.WorkEnvironment = domain.WorkEnvOnSite
	pool := []domain.JobPosting{unclear, onsite}

	filtered, _ := Prefilter(pool, FilterOptions{WorkEnvironment: domain.WorkEnvRemote})
	if len(filtered) != 1 || filtered[0].Hash != "a" {
		t.Fatalf("unclear проходит любой фильтр формата, on-site против remote — нет: %v", filtered)
	}
}

func TestPrefilterEmptyResultIsNotError(t *testing.T) {
	pool := []domain.JobPosting{posting("a", "Madrid", "marketing")}
	filtered, report := Prefilter(pool, FilterOptions{Cities: []string{"berlin"}, Categories: []string{"software-engineering"}})
	if len(filtered) != 0 {
		t.Fatalf("ожидали пустой результат")
	}
	if report.Dropped != 1 {
		t.Fatalf("отчёт должен фиксировать отброшенных кандидатов")
	}
}
