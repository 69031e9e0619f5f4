// Package matching реализует пайплайн подбора вакансий: пре-фильтр,
// скоринг, отбор с ограничениями разнообразия и лестницу recovery.
package matching

import (
	"strings"

	"job-match-engine/internal/domain"
)

// FilterOptions описывает жёсткие ограничения одного прохода пре-фильтра.
// Наполнение зависит от тарифа и текущего уровня recovery.
type FilterOptions struct {
	Cities              []string // допустимые города, без учёта регистра
	Categories          []string // канонические категории; пусто — без ограничения
	WorkEnvironment     domain.WorkEnvironment
	RequireVisaFriendly bool
	Skills              []string
	PartialSkills       bool // substring-совпадение навыков вместо точного
	Industries          []string
}

// StepReport описывает результат одного прохода фильтра.
type StepReport struct {
	Initial int
	Dropped int
	Left    int
}

// Prefilter сокращает пул до вакансий, проходящих жёсткие ограничения.
// Чистая функция: не ошибается и никогда не возвращает больше, чем получила.
// Пустой результат — повод для эскалации у вызывающего, не ошибка.
func Prefilter(pool []domain.JobPosting, opts FilterOptions) ([]domain.JobPosting, StepReport) {
	out := make([]domain.JobPosting, 0, len(pool))
	for _, posting := range pool {
		if !matchesCity(posting, opts.Cities) {
			continue
		}
		if !matchesCategories(posting, opts.Categories) {
			continue
		}
		if !matchesWorkEnvironment(posting, opts.WorkEnvironment) {
			continue
		}
		if opts.RequireVisaFriendly && !posting.VisaFriendly {
			continue
		}
		if !matchesSkills(posting, opts.Skills, opts.PartialSkills) {
			continue
		}
		if !matchesIndustries(posting, opts.Industries) {
			continue
		}
		out = append(out, posting)
	}
	return out, StepReport{Initial: len(pool), Dropped: len(pool) - len(out), Left: len(out)}
}

// matchesCity: вакансия без города проходит всегда (city-agnostic, например remote).
func matchesCity(posting domain.JobPosting, cities []string) bool {
	if len(cities) == 0 {
		return true
	}
	city := strings.ToLower(strings.TrimSpace(posting.City))
	if city == "" {
		return true
	}
	for _, allowed := range cities {
		if city == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// matchesCategories: проходит, если ограничений нет, вакансия не размечена
// или хотя бы одна категория совпадает точно.
func matchesCategories(posting domain.JobPosting, categories []string) bool {
	if len(categories) == 0 || len(posting.Categories) == 0 {
		return true
	}
	for _, want := range categories {
		for _, got := range posting.Categories {
			if strings.EqualFold(want, got) {
				return true
			}
		}
	}
	return false
}

func matchesWorkEnvironment(posting domain.JobPosting, want domain.WorkEnvironment) bool {
	if want == "" || want == domain.WorkEnvUnclear {
		return true
	}
	if posting.WorkEnvironment == "" || posting.WorkEnvironment == domain.WorkEnvUnclear {
		return true
	}
	return posting.WorkEnvironment == want
}

func matchesSkills(posting domain.JobPosting, skills []string, partial bool) bool {
	if len(skills) == 0 {
		return true
	}
	text := strings.ToLower(posting.Title + " " + posting.Description)
	for _, skill := range skills {
		needle := strings.ToLower(strings.TrimSpace(skill))
		if needle == "" {
			continue
		}
		if partial {
			if strings.Contains(text, needle) {
				return true
			}
			continue
		}
		if containsWord(text, needle) {
			return true
		}
	}
	return false
}

func matchesIndustries(posting domain.JobPosting, industries []string) bool {
	if len(industries) == 0 {
		return true
	}
	text := strings.ToLower(posting.Company + " " + posting.Description)
	for _, industry := range industries {
		needle := strings.ToLower(strings.TrimSpace(industry))
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// containsWord ищет точное вхождение по границам слов.
func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || isBoundary(text[start-1])
		afterOK := end == len(text) || isBoundary(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isBoundary(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return false
	case b >= '0' && b <= '9':
		return false
	}
	return true
}
