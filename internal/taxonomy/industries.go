package taxonomy

import "strings"

// industrySynonyms разворачивает заявленную индустрию в набор синонимов.
// Используется уровнем industry_broadening оркестратора recovery.
var industrySynonyms = map[string][]string{
	"fintech":       {"fintech", "banking", "financial services", "payments", "insurance"},
	"e-commerce":    {"e-commerce", "ecommerce", "retail", "marketplace"},
	"healthtech":    {"healthtech", "healthcare", "medtech", "pharma", "biotech"},
	"automotive":    {"automotive", "mobility", "transportation"},
	"energy":        {"energy", "renewables", "cleantech", "utilities"},
	"media":         {"media", "entertainment", "gaming", "adtech"},
	"consulting":    {"consulting", "professional services", "advisory"},
	"saas":          {"saas", "software", "cloud", "b2b software"},
	"logistics":     {"logistics", "supply chain", "delivery", "freight"},
	"edtech":        {"edtech", "education", "e-learning"},
	"manufacturing": {"manufacturing", "industrial", "engineering"},
}

// ExpandIndustries возвращает индустрии вместе с синонимами без дублей.
func ExpandIndustries(industries []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(industries))
	add := func(industry string) {
		key := strings.ToLower(strings.TrimSpace(industry))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, industry := range industries {
		add(industry)
		for _, synonym := range industrySynonyms[strings.ToLower(strings.TrimSpace(industry))] {
			add(synonym)
		}
	}
	return out
}
