package matching

import "job-match-engine/internal/domain"

// DistributionDefaults — продуктовые константы отбора, вынесенные в конфигурацию.
type DistributionDefaults struct {
	MaxSourceShare       float64
	SourceSwapPenalty    float64
	MinOtherSourceSupply int
}

// BuildDistribution собирает DistributionConfig под тариф пользователя.
// Тарифы различаются только конфигурацией: free и premium проходят один
// и тот же селектор.
func BuildDistribution(prefs domain.UserPreferences, defaults DistributionDefaults) domain.DistributionConfig {
	prefs = prefs.Effective()
	profile := prefs.Profile()

	cfg := domain.DistributionConfig{
		TargetCount:          profile.TargetResults,
		MaxSourceShare:       defaults.MaxSourceShare,
		BalanceSources:       true,
		Cities:               prefs.Cities,
		BalanceCities:        len(prefs.Cities) > 1,
		SourceSwapPenalty:    defaults.SourceSwapPenalty,
		MinOtherSourceSupply: defaults.MinOtherSourceSupply,
	}

	// Premium без явного предпочтения формата получает сбалансированный микс.
	if profile.FullFilters && (prefs.WorkEnvironment == "" || prefs.WorkEnvironment == domain.WorkEnvUnclear) {
		cfg.WorkEnvironments = []domain.WorkEnvironment{domain.WorkEnvRemote, domain.WorkEnvHybrid, domain.WorkEnvOnSite}
		cfg.BalanceWorkEnv = true
	}
	return cfg
}
