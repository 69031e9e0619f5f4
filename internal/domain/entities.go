package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// WorkEnvironment описывает формат работы в вакансии или предпочтениях.
type WorkEnvironment string

const (
	WorkEnvRemote  WorkEnvironment = "remote"
	WorkEnvHybrid  WorkEnvironment = "hybrid"
	WorkEnvOnSite  WorkEnvironment = "on-site"
	WorkEnvUnclear WorkEnvironment = "unclear"
)

// UserPreferences описывает анкету пользователя. Пайплайн читает её и никогда не меняет.
type UserPreferences struct {
	Email           string
	Cities          []string // 1-3 города в порядке приоритета
	Categories      []string // канонические категории карьерных направлений
	EntryLevelPref  string
	WorkEnvironment WorkEnvironment
	VisaStatus      string
	Tier            Tier

	// Поля доступные только на premium-тарифе.
	Skills         []string
	Industries     []string
	CompanySize    string
	CareerKeywords string
	Languages      []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobPosting описывает вакансию из пула. Создаётся инжестом, для пайплайна read-only.
type JobPosting struct {
	Hash            string // job_hash: контентный хеш (title, company, location)
	Title           string
	Company         string
	City            string
	RawLocation     string
	Categories      []string
	Source          string // доска-источник
	PostedAt        time.Time
	WorkEnvironment WorkEnvironment
	VisaFriendly    bool
	Description     string
	ExperienceLevel string
}

// ComputeJobHash считает стабильный job_hash по (title, company, location).
// Повторный инжест того же объявления даёт тот же хеш.
func ComputeJobHash(title, company, location string) string {
	normalized := strings.ToLower(strings.TrimSpace(title)) + "|" +
		strings.ToLower(strings.TrimSpace(company)) + "|" +
		strings.ToLower(strings.TrimSpace(location))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:24]
}

// Provenance указывает, какой алгоритм дал итоговую оценку.
type Provenance string

const (
	ProvenanceRules    Provenance = "rules"
	ProvenanceAI       Provenance = "ai"
	ProvenanceHybrid   Provenance = "hybrid"
	ProvenanceFallback Provenance = "fallback"
)

// RecoveryLevel — номер уровня деградации, на котором собраны кандидаты.
type RecoveryLevel int

const (
	LevelPrimary           RecoveryLevel = 0
	LevelRelaxedFiltering  RecoveryLevel = 1
	LevelCityExpansion     RecoveryLevel = 2
	LevelSkillRelaxation   RecoveryLevel = 3
	LevelIndustryBroadened RecoveryLevel = 4
	LevelFinalFallback     RecoveryLevel = 5
)

var levelNames = map[RecoveryLevel]string{
	LevelPrimary:           "primary",
	LevelRelaxedFiltering:  "relaxed_filtering",
	LevelCityExpansion:     "city_expansion",
	LevelSkillRelaxation:   "skill_relaxation",
	LevelIndustryBroadened: "industry_broadening",
	LevelFinalFallback:     "final_fallback",
}

func (l RecoveryLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// Confidence возвращает уровень доверия к результатам данного уровня.
func (l RecoveryLevel) Confidence() string {
	switch l {
	case LevelPrimary:
		return "high"
	case LevelRelaxedFiltering, LevelCityExpansion:
		return "medium"
	default:
		return "low"
	}
}

// MatchCandidate — транзитная запись кандидата внутри пайплайна, не сохраняется.
type MatchCandidate struct {
	Posting        JobPosting
	RelevanceRatio float64
	Completeness   float64
	Recency        float64
	Score          float64  // эвристический скор в [0, 100]
	AIScore        *float64 // оценка внешнего AI-скорера в [0, 1]
	Reason         string
	Level          RecoveryLevel
}

// FinalScore возвращает нормализованную оценку в [0, 1] для персистенса.
func (c MatchCandidate) FinalScore() float64 {
	if c.AIScore != nil {
		return clamp01(*c.AIScore)
	}
	return clamp01(c.Score / 100)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MatchResult — персистентный результат матчинга с составным ключом (email, job_hash).
type MatchResult struct {
	UserEmail     string
	JobHash       string
	Score         float64 // нормализован в [0, 1]
	Reason        string
	Provenance    Provenance
	RecoveryLevel RecoveryLevel
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DistributionConfig задаёт целевой размер и ограничения разнообразия на одну выборку.
type DistributionConfig struct {
	TargetCount          int
	MaxSourceShare       float64
	BalanceSources       bool
	Cities               []string // в порядке приоритета пользователя
	BalanceCities        bool
	WorkEnvironments     []WorkEnvironment
	BalanceWorkEnv       bool
	SourceSwapPenalty    float64 // штраф к скору при замене ради разнообразия источников
	MinOtherSourceSupply int     // минимум вакансий других источников для замены
}

// MatchSession — сводка одного прогона пайплайна для аналитики.
type MatchSession struct {
	RunID         string
	UserEmail     string
	PoolSize      int
	FilteredCount int
	ScoredCount   int
	SelectedCount int
	RecoveryLevel RecoveryLevel
	Provenance    Provenance
	Elapsed       time.Duration
	CreatedAt     time.Time
}
