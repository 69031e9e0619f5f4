package domain

import "testing"

func TestProfileForTierDefaultsToFree(t *testing.T) {
	profile := ProfileForTier("enterprise")
	if profile.Tier != TierFree {
		t.Fatalf("неизвестный тариф должен деградировать до free, получили %s", profile.Tier)
	}
}

func TestProfileForTierCaseInsensitive(t *testing.T) {
	profile := ProfileForTier("Premium")
	if profile.Tier != TierPremium {
		t.Fatalf("регистр тарифа не должен иметь значения, получили %s", profile.Tier)
	}
	if profile.TargetResults != 15 {
		t.Fatalf("premium должен давать 15 результатов, получили %d", profile.TargetResults)
	}
}

func TestEffectiveClearsPremiumFieldsForFree(t *testing.T) {
	prefs := UserPreferences{
		Email:      "free@example.com",
		Tier:       TierFree,
		Cities:     []string{"Berlin"},
		Skills:     []string{"python"},
		Industries: []string{"fintech"},
		Languages:  []string{"en"},
	}
	effective := prefs.Effective()
	if len(effective.Skills) != 0 || len(effective.Industries) != 0 || len(effective.Languages) != 0 {
		t.Fatalf("premium-поля должны обнуляться на free: %+v", effective)
	}
	if len(effective.Cities) != 1 {
		t.Fatalf("базовые поля не должны меняться")
	}
	if len(prefs.Skills) != 1 {
		t.Fatalf("Effective не должен мутировать исходную анкету")
	}
}

func TestEffectiveKeepsPremiumFields(t *testing.T) {
	prefs := UserPreferences{Tier: TierPremium, Skills: []string{"sql"}}
	if len(prefs.Effective().Skills) != 1 {
		t.Fatalf("premium сохраняет расширенные поля")
	}
}
