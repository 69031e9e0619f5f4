// Package taxonomy содержит неизменяемые справочники: карьерные категории,
// алиасы городов и синонимы индустрий. Таблицы загружаются один раз и
// никогда не мутируются во время работы.
package taxonomy

import (
	"sort"
	"strings"
)

// careerPaths сопоставляет пользовательский выбор направления каноническим
// тегам категорий, которыми размечаются вакансии при инжесте.
var careerPaths = map[string][]string{
	"software-engineering": {"software-engineering", "devops-cloud"},
	"data-science":         {"data-science", "data-engineering", "machine-learning"},
	"finance-investment":   {"finance-investment", "accounting-audit"},
	"consulting-strategy":  {"consulting-strategy"},
	"marketing-growth":     {"marketing-growth", "communications-pr"},
	"sales-business":       {"sales-business", "business-development"},
	"product-management":   {"product-management"},
	"design-creative":      {"design-creative", "ux-research"},
	"operations-supply":    {"operations-supply", "logistics"},
	"hr-people":            {"hr-people", "recruiting"},
	"legal-compliance":     {"legal-compliance"},
	"research-academia":    {"research-academia"},
}

// CanonicalCategories возвращает канонические категории для выбранного
// направления. Неизвестный выбор трактуется как уже каноническая категория.
func CanonicalCategories(selection string) []string {
	key := strings.ToLower(strings.TrimSpace(selection))
	if key == "" {
		return nil
	}
	if tags, ok := careerPaths[key]; ok {
		out := make([]string, len(tags))
		copy(out, tags)
		return out
	}
	return []string{key}
}

// ExpandSelections разворачивает список выборов пользователя в отсортированный
// набор канонических категорий без дублей.
func ExpandSelections(selections []string) []string {
	seen := make(map[string]struct{})
	for _, selection := range selections {
		for _, tag := range CanonicalCategories(selection) {
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
