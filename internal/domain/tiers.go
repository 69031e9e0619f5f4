package domain

import "strings"

// Tier описывает тариф пользователя.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// TierProfile описывает параметры пайплайна для тарифа.
// Оба тарифа проходят один и тот же пайплайн, различается только конфигурация.
type TierProfile struct {
	Tier          Tier
	Name          string
	TargetResults int
	AIWindow      int  // сколько верхних кандидатов уходит AI-скореру
	MinViable     int  // минимум результатов, при котором уровень recovery считается успешным
	FullFilters   bool // использовать skills/industries/visa/work-environment на пре-фильтре
	SkillLevels   bool // доступны ли уровни recovery 3-4
}

var tierProfiles = map[Tier]TierProfile{
	TierFree: {
		Tier:          TierFree,
		Name:          "Free",
		TargetResults: 5,
		AIWindow:      30,
		MinViable:     3,
		FullFilters:   false,
		SkillLevels:   false,
	},
	TierPremium: {
		Tier:          TierPremium,
		Name:          "Premium",
		TargetResults: 15,
		AIWindow:      50,
		MinViable:     3,
		FullFilters:   true,
		SkillLevels:   true,
	},
}

// ProfileForTier возвращает профиль тарифа, по умолчанию free.
func ProfileForTier(tier Tier) TierProfile {
	if profile, ok := tierProfiles[Tier(strings.ToLower(string(tier)))]; ok {
		return profile
	}
	return tierProfiles[TierFree]
}

// Profile возвращает профиль тарифа пользователя.
func (u UserPreferences) Profile() TierProfile {
	return ProfileForTier(u.Tier)
}

// Effective возвращает копию анкеты с учётом тарифа: на free premium-поля
// обнуляются, даже если в хранилище они заполнены.
func (u UserPreferences) Effective() UserPreferences {
	if u.Profile().Tier == TierPremium {
		return u
	}
	trimmed := u
	trimmed.Skills = nil
	trimmed.Industries = nil
	trimmed.CompanySize = ""
	trimmed.CareerKeywords = ""
	trimmed.Languages = nil
	return trimmed
}
