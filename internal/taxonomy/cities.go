package taxonomy

import "strings"

// cityAliases разворачивает заявленный город в ближайшие регионы и агломерацию.
// Используется уровнем city_expansion оркестратора recovery.
var cityAliases = map[string][]string{
	"berlin":    {"berlin", "potsdam", "brandenburg"},
	"munich":    {"munich", "münchen", "augsburg", "garching"},
	"hamburg":   {"hamburg", "lübeck"},
	"frankfurt": {"frankfurt", "frankfurt am main", "eschborn", "offenbach"},
	"madrid":    {"madrid", "alcobendas", "getafe"},
	"barcelona": {"barcelona", "badalona", "l'hospitalet"},
	"paris":     {"paris", "la défense", "boulogne-billancourt", "saint-denis"},
	"amsterdam": {"amsterdam", "amstelveen", "haarlem", "utrecht"},
	"london":    {"london", "greater london", "reading", "cambridge"},
	"dublin":    {"dublin", "leixlip"},
	"zurich":    {"zurich", "zürich", "zug", "winterthur"},
	"milan":     {"milan", "milano", "monza"},
	"warsaw":    {"warsaw", "warszawa"},
	"stockholm": {"stockholm", "solna", "kista"},
}

// ExpandCities возвращает города вместе с их алиасами, сохраняя заявленный
// порядок. Сравнение без учёта регистра.
func ExpandCities(cities []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(cities))
	add := func(city string) {
		key := strings.ToLower(strings.TrimSpace(city))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, city := range cities {
		add(city)
		for _, alias := range cityAliases[strings.ToLower(strings.TrimSpace(city))] {
			add(alias)
		}
	}
	return out
}
