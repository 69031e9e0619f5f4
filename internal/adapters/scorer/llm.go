package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"job-match-engine/internal/domain"
	openai "job-match-engine/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMScorer оценивает ограниченное окно кандидатов через Chat Completions.
// Ответы кешируются по сигнатуре профиля: похожие пользователи batch-прогона
// получают один внешний вызов на группу.
type LLMScorer struct {
	client   chatCompletionClient
	cache    domain.Cache
	model    string
	timeout  time.Duration
	maxItems int
	cacheTTL time.Duration
	log      zerolog.Logger
}

var _ domain.AIScorer = (*LLMScorer)(nil)

// NewLLM создаёт AI-скорер. cache может быть nil — тогда кеширование выключено.
func NewLLM(client chatCompletionClient, cache domain.Cache, model string, timeout time.Duration, maxItems int, log zerolog.Logger) *LLMScorer {
	if maxItems <= 0 {
		maxItems = 50
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMScorer{
		client:   client,
		cache:    cache,
		model:    model,
		timeout:  timeout,
		maxItems: maxItems,
		cacheTTL: 15 * time.Minute,
		log:      log,
	}
}

type llmCandidatePayload struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	City       string   `json:"city,omitempty"`
	Categories []string `json:"categories,omitempty"`
	PostedAt   string   `json:"posted_at"`
	Summary    string   `json:"summary,omitempty"`
}

type llmScoreResponse struct {
	Scores []llmScoreRef `json:"scores"`
}

type llmScoreRef struct {
	ID     json.Number `json:"id"`
	Score  float64     `json:"score"`
	Reason string      `json:"reason"`
}

// ScoreWindow оценивает окно кандидатов. Ошибка не фатальна для пайплайна:
// вызывающий откатывается на эвристический скор с provenance=fallback.
func (s *LLMScorer) ScoreWindow(ctx context.Context, prefs domain.UserPreferences, window []domain.MatchCandidate) ([]domain.AIScore, error) {
	if len(window) == 0 {
		return nil, nil
	}
	if len(window) > s.maxItems {
		window = window[:s.maxItems]
	}

	cacheKey := s.cacheKey(prefs, window)
	if s.cache != nil {
		if raw, err := s.cache.Get(cacheKey); err == nil && len(raw) > 0 {
			var cached []domain.AIScore
			if err := json.Unmarshal(raw, &cached); err == nil {
				s.log.Debug().Str("key", cacheKey).Msg("llm scorer: cache hit")
				return cached, nil
			}
		}
	}

	scores, err := s.callModel(ctx, prefs, window)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(scores); err == nil {
			_ = s.cache.Set(cacheKey, raw, s.cacheTTL)
		}
	}
	return scores, nil
}

func (s *LLMScorer) callModel(ctx context.Context, prefs domain.UserPreferences, window []domain.MatchCandidate) ([]domain.AIScore, error) {
	payload := make([]llmCandidatePayload, 0, len(window))
	hashByID := make(map[int]string, len(window))
	for idx, candidate := range window {
		id := idx + 1
		hashByID[id] = candidate.Posting.Hash
		payload = append(payload, llmCandidatePayload{
			ID:         id,
			Title:      candidate.Posting.Title,
			Company:    candidate.Posting.Company,
			City:       candidate.Posting.City,
			Categories: candidate.Posting.Categories,
			PostedAt:   candidate.Posting.PostedAt.UTC().Format(time.RFC3339),
			Summary:    truncate(candidate.Posting.Description, 1200),
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`You score job postings for an early-career job seeker.

Candidate profile:
- target cities: %s
- career categories: %s
- skills: %s
- industries: %s
- entry-level preference: %s

For every posting below assign a fit score between 0.0 and 1.0 and a one-sentence reason.
Always use the "id" field from the input as "id" in the answer, never invent new identifiers.
Return strictly JSON: {"scores": [{"id": 1, "score": 0.85, "reason": "..."}]}.

Postings JSON:
%s`,
		strings.Join(prefs.Cities, ", "),
		strings.Join(prefs.Categories, ", "),
		strings.Join(prefs.Skills, ", "),
		strings.Join(prefs.Industries, ", "),
		prefs.EntryLevelPref,
		string(body),
	)

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "You are a precise job matching assistant. Score only from the given data, do not invent facts.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: empty response")
	}

	var parsed llmScoreResponse
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}

	scores := make([]domain.AIScore, 0, len(parsed.Scores))
	for _, ref := range parsed.Scores {
		id, err := ref.ID.Int64()
		if err != nil {
			continue
		}
		hash, ok := hashByID[int(id)]
		if !ok {
			continue
		}
		score := ref.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores = append(scores, domain.AIScore{
			JobHash: hash,
			Score:   score,
			Reason:  strings.TrimSpace(ref.Reason),
		})
	}
	return scores, nil
}

// cacheKey — сигнатура (профиль, окно кандидатов): совпадает у пользователей
// одной batch-группы с одинаковым окном.
func (s *LLMScorer) cacheKey(prefs domain.UserPreferences, window []domain.MatchCandidate) string {
	parts := make([]string, 0, len(window)+4)
	parts = append(parts, string(prefs.Tier))
	parts = append(parts, strings.ToLower(strings.Join(sortedCopy(prefs.Cities), ",")))
	parts = append(parts, strings.ToLower(strings.Join(sortedCopy(prefs.Categories), ",")))
	parts = append(parts, strings.ToLower(strings.Join(sortedCopy(prefs.Skills), ",")))
	for _, candidate := range window {
		parts = append(parts, candidate.Posting.Hash)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "ai_scores:" + hex.EncodeToString(sum[:])[:32]
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
