package matching

import (
	"fmt"
	"sort"
	"strings"

	"job-match-engine/internal/domain"
)

// Select формирует итоговую выборку из ранжированных кандидатов, соблюдая
// квоты по городам, вторичный баланс форматов работы и баланс источников.
// Возвращает не больше cfg.TargetCount кандидатов; при нехватке предложения
// отдаёт сколько есть, не добивая выборку нерелевантными вакансиями.
func Select(ranked []domain.MatchCandidate, cfg domain.DistributionConfig) []domain.MatchCandidate {
	if cfg.TargetCount <= 0 || len(ranked) == 0 {
		return nil
	}

	var selected []domain.MatchCandidate
	if cfg.BalanceCities && len(cfg.Cities) > 1 {
		selected = selectByCityQuota(ranked, cfg)
	} else {
		selected = selectTop(ranked, cfg.TargetCount)
	}

	if cfg.BalanceWorkEnv && len(cfg.WorkEnvironments) > 1 {
		selected = rebalanceWorkEnv(selected, ranked, cfg)
	}

	if cfg.BalanceSources {
		selected = rebalanceSources(selected, ranked, cfg)
	}

	// Итоговый порядок — по той же оценке, что уходит в персистенс:
	// AI-оценка, когда она есть, заменяет эвристическую.
	sort.SliceStable(selected, func(i, j int) bool {
		if si, sj := selected[i].FinalScore(), selected[j].FinalScore(); si != sj {
			return si > sj
		}
		return selected[i].Posting.PostedAt.After(selected[j].Posting.PostedAt)
	})
	return selected
}

// selectTop берёт верхние target кандидатов в порядке ранжирования.
func selectTop(ranked []domain.MatchCandidate, target int) []domain.MatchCandidate {
	out := make([]domain.MatchCandidate, 0, target)
	for idx, candidate := range ranked {
		if len(out) >= target {
			break
		}
		candidate.Reason = appendReason(candidate.Reason, fmt.Sprintf("ranked #%d overall", idx+1))
		out = append(out, candidate)
	}
	return out
}

// selectByCityQuota распределяет квоты между городами: floor(target/C) на
// город, остаток — первым заявленным городам. Каждая корзина заполняется из
// собственного ранжированного под-списка. Квоты жёсткие: перебор одного
// города не компенсирует недобор другого.
func selectByCityQuota(ranked []domain.MatchCandidate, cfg domain.DistributionConfig) []domain.MatchCandidate {
	cityCount := len(cfg.Cities)
	base := cfg.TargetCount / cityCount
	remainder := cfg.TargetCount % cityCount

	quotas := make([]int, cityCount)
	for i := range quotas {
		quotas[i] = base
		if i < remainder {
			quotas[i]++
		}
	}

	taken := make(map[string]struct{})
	out := make([]domain.MatchCandidate, 0, cfg.TargetCount)
	var agnostic []domain.MatchCandidate

	for i, city := range cfg.Cities {
		want := strings.ToLower(strings.TrimSpace(city))
		filled := 0
		for _, candidate := range ranked {
			if filled >= quotas[i] {
				break
			}
			if _, ok := taken[candidate.Posting.Hash]; ok {
				continue
			}
			got := strings.ToLower(strings.TrimSpace(candidate.Posting.City))
			if got != want {
				continue
			}
			taken[candidate.Posting.Hash] = struct{}{}
			filled++
			candidate.Reason = appendReason(candidate.Reason, fmt.Sprintf("top pick for %s (rank %d)", city, filled))
			out = append(out, candidate)
		}
	}

	// Вакансии без города не принадлежат ни одной корзине: ими добираются
	// свободные слоты после квот.
	for _, candidate := range ranked {
		if _, ok := taken[candidate.Posting.Hash]; ok {
			continue
		}
		if strings.TrimSpace(candidate.Posting.City) == "" {
			agnostic = append(agnostic, candidate)
		}
	}
	for _, candidate := range agnostic {
		if len(out) >= cfg.TargetCount {
			break
		}
		taken[candidate.Posting.Hash] = struct{}{}
		candidate.Reason = appendReason(candidate.Reason, "city-agnostic pick")
		out = append(out, candidate)
	}

	return out
}

// rebalanceWorkEnv — вторичный баланс форматов работы тем же квотным подходом:
// форматы с недобором получают кандидатов взамен самых слабых из перебора.
func rebalanceWorkEnv(selected, ranked []domain.MatchCandidate, cfg domain.DistributionConfig) []domain.MatchCandidate {
	envCount := len(cfg.WorkEnvironments)
	base := len(selected) / envCount
	if base == 0 {
		return selected
	}

	counts := make(map[domain.WorkEnvironment]int)
	taken := make(map[string]struct{})
	for _, candidate := range selected {
		counts[candidate.Posting.WorkEnvironment]++
		taken[candidate.Posting.Hash] = struct{}{}
	}

	for _, env := range cfg.WorkEnvironments {
		for counts[env] < base {
			replacement, ok := bestUnselected(ranked, taken, func(c domain.MatchCandidate) bool {
				return c.Posting.WorkEnvironment == env
			})
			if !ok {
				break
			}
			victim := -1
			for i, candidate := range selected {
				if counts[candidate.Posting.WorkEnvironment] <= base {
					continue
				}
				if victim < 0 || candidate.FinalScore() < selected[victim].FinalScore() {
					victim = i
				}
			}
			if victim < 0 {
				break
			}
			counts[selected[victim].Posting.WorkEnvironment]--
			delete(taken, selected[victim].Posting.Hash)
			replacement.Reason = appendReason(replacement.Reason, fmt.Sprintf("added for %s balance", replacement.Posting.WorkEnvironment))
			selected[victim] = replacement
			counts[replacement.Posting.WorkEnvironment]++
			taken[replacement.Posting.Hash] = struct{}{}
		}
	}
	return selected
}

// rebalanceSources: если доля доминирующего источника превышает
// MaxSourceShare (или выборка целиком из одного источника) и в остатке пула
// достаточно вакансий других источников, самый слабый кандидат доминирующего
// источника меняется на лучшего из другого источника со штрафом к скору.
func rebalanceSources(selected, ranked []domain.MatchCandidate, cfg domain.DistributionConfig) []domain.MatchCandidate {
	if len(selected) < 2 {
		return selected
	}
	counts := make(map[string]int)
	for _, candidate := range selected {
		counts[candidate.Posting.Source]++
	}
	dominant := selected[0].Posting.Source
	for source, count := range counts {
		if count > counts[dominant] {
			dominant = source
		}
	}

	if cfg.MaxSourceShare > 0 && cfg.MaxSourceShare < 1 {
		share := float64(counts[dominant]) / float64(len(selected))
		if share <= cfg.MaxSourceShare {
			return selected
		}
	} else if counts[dominant] != len(selected) {
		return selected
	}

	taken := make(map[string]struct{}, len(selected))
	for _, candidate := range selected {
		taken[candidate.Posting.Hash] = struct{}{}
	}

	otherSupply := 0
	for _, candidate := range ranked {
		if _, ok := taken[candidate.Posting.Hash]; ok {
			continue
		}
		if candidate.Posting.Source != dominant {
			otherSupply++
		}
	}
	if otherSupply < cfg.MinOtherSourceSupply {
		return selected
	}

	replacement, ok := bestUnselected(ranked, taken, func(c domain.MatchCandidate) bool {
		return c.Posting.Source != dominant
	})
	if !ok {
		return selected
	}

	victim := -1
	for i, candidate := range selected {
		if candidate.Posting.Source != dominant {
			continue
		}
		if victim < 0 || candidate.FinalScore() < selected[victim].FinalScore() {
			victim = i
		}
	}
	if victim < 0 {
		return selected
	}

	replacement.Score = replacement.Score - cfg.SourceSwapPenalty
	if replacement.Score < 0 {
		replacement.Score = 0
	}
	if replacement.AIScore != nil {
		penalized := *replacement.AIScore - cfg.SourceSwapPenalty/100
		if penalized < 0 {
			penalized = 0
		}
		replacement.AIScore = &penalized
	}
	replacement.Reason = appendReason(replacement.Reason, fmt.Sprintf("swapped in from %s for source diversity", replacement.Posting.Source))
	selected[victim] = replacement
	return selected
}

// bestUnselected возвращает первого по рангу невыбранного кандидата,
// удовлетворяющего предикату.
func bestUnselected(ranked []domain.MatchCandidate, taken map[string]struct{}, match func(domain.MatchCandidate) bool) (domain.MatchCandidate, bool) {
	for _, candidate := range ranked {
		if _, ok := taken[candidate.Posting.Hash]; ok {
			continue
		}
		if match(candidate) {
			return candidate, true
		}
	}
	return domain.MatchCandidate{}, false
}

func appendReason(reason, extra string) string {
	if reason == "" {
		return extra
	}
	return reason + "; " + extra
}
