// Package usecase implements the core retrieval algorithms (spec section
// 4): query analysis, rank fusion, reranking, context assembly, and the
// orchestrator that drives all nine stages. None of these types talk to
// the network directly; they consume the ports interfaces so they can be
// exercised with fakes in tests.
package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/core/ports"
)

const maxExpansions = 5

// intentKeywords is the weighted-keyword pre-pass table, ported from
// query_enhancer.py's INTENT_MAPPING. It lets the analyser classify the
// common case deterministically before spending an LLM call.
var intentKeywords = map[domain.Intent][]string{
	domain.IntentDocuments:    {"giấy tờ cần nộp", "hồ sơ bao gồm", "văn bản nộp", "tài liệu cần", "nộp gì"},
	domain.IntentRequirements: {"điều kiện", "yêu cầu", "ai được", "đối tượng", "được làm", "được phép"},
	domain.IntentProcess:      {"trình tự", "các bước", "làm thế nào", "quy trình", "cách thức"},
	domain.IntentLegal:        {"căn cứ", "pháp lý", "luật", "nghị định", "thông tư", "quy định"},
	domain.IntentTimeline:     {"thời gian", "bao lâu", "thời hạn", "mất bao lâu", "trong vòng", "ngày làm việc"},
	domain.IntentFees:         {"phí", "lệ phí", "chi phí", "tốn", "giá", "mất bao nhiêu"},
	domain.IntentLocation:     {"ở đâu", "địa chỉ", "nơi", "cơ quan nào", "đến đâu"},
}

// intentExclusions disqualifies an intent's keyword score when a
// conflicting phrase is present, handling compound questions like "hồ sơ
// nộp trong thời gian bao lâu" (about timing, not documents).
var intentExclusions = map[domain.Intent][]string{
	domain.IntentDocuments: {"thời gian", "bao lâu", "thời hạn", "hình thức thông báo", "thông báo"},
}

// synonymTable drives the fixed substitution expansions from spec section
// 4.1: each key, when present in the question, contributes one expansion
// per listed synonym (capped later by maxExpansions).
var synonymTable = map[string][]string{
	"đăng ký": {"đk", "ghi danh"},
	"giấy tờ": {"hồ sơ", "tài liệu"},
	"thủ tục": {"quy trình"},
	"lệ phí":  {"phí"},
}

// Analyser converts a raw question into a QueryPlan (spec section 4.1).
type Analyser struct {
	llm    ports.LLMAnalyser
	logger *slog.Logger
}

func NewAnalyser(llm ports.LLMAnalyser, logger *slog.Logger) *Analyser {
	return &Analyser{llm: llm, logger: logger}
}

// Analyse builds a QueryPlan: intent classification, procedure-code
// detection, and up to five deduplicated query expansions.
func (a *Analyser) Analyse(ctx context.Context, question string) domain.QueryPlan {
	intent, confidence := a.classifyIntent(ctx, question)
	contextConfig := domain.ContextConfigFor(intent)

	plan := domain.QueryPlan{
		RawQuestion:            question,
		Intent:                 intent,
		IntentConfidence:       confidence,
		ContextConfig:          contextConfig,
		EnableStructuredOutput: contextConfig.EnableStructuredOutput,
	}

	if code := domain.ProcedureCodePattern.FindString(question); code != "" {
		plan.DetectedProcedureCode = code
	}

	plan.Expansions = a.buildExpansions(ctx, question, intent)
	return plan
}

func (a *Analyser) classifyIntent(ctx context.Context, question string) (domain.Intent, float64) {
	if intent, ok := keywordIntent(question); ok {
		return intent, 1.0
	}

	intent, confidence, err := a.llm.ClassifyIntent(ctx, question)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("intent classification fell back to overview", "error", err.Error())
		}
		return domain.IntentOverview, 0
	}
	return intent, confidence
}

// keywordIntent runs the deterministic weighted-keyword pre-pass (spec
// section 2.6's supplement). It returns ok=false when every intent scores
// zero, deferring to the LLM collaborator.
func keywordIntent(question string) (domain.Intent, bool) {
	lower := strings.ToLower(question)

	intents := make([]domain.Intent, 0, len(intentKeywords))
	for intent := range intentKeywords {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	best := domain.Intent("")
	bestScore := 0
	for _, intent := range intents {
		keywords := intentKeywords[intent]
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if exclusions, ok := intentExclusions[intent]; ok {
			for _, excl := range exclusions {
				if strings.Contains(lower, excl) {
					score = 0
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}

	if bestScore == 0 {
		return "", false
	}
	return best, true
}

// buildExpansions generates up to three LLM paraphrases plus up to two
// synonym-substituted variants, deduplicated case-insensitively and capped
// at five total (spec section 4.1). On LLM failure, expansions fall back
// to [raw_question].
func (a *Analyser) buildExpansions(ctx context.Context, question string, intent domain.Intent) []string {
	seen := map[string]bool{strings.ToLower(question): true}
	expansions := []string{question}

	paraphrases, err := a.llm.Paraphrase(ctx, question, 3)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("paraphrase generation failed", "error", err.Error())
		}
		return expansions
	}
	for _, p := range paraphrases {
		expansions = appendUnique(expansions, seen, p)
		if len(expansions) >= maxExpansions {
			return expansions
		}
	}

	for _, v := range synonymVariants(question) {
		expansions = appendUnique(expansions, seen, v)
		if len(expansions) >= maxExpansions {
			return expansions
		}
	}

	return expansions
}

func appendUnique(expansions []string, seen map[string]bool, candidate string) []string {
	key := strings.ToLower(strings.TrimSpace(candidate))
	if key == "" || seen[key] {
		return expansions
	}
	seen[key] = true
	return append(expansions, candidate)
}

// synonymVariants produces up to two substitution variants, matching
// synonymTable keys in a stable order so results are deterministic.
func synonymVariants(question string) []string {
	lower := strings.ToLower(question)

	keys := make([]string, 0, len(synonymTable))
	for k := range synonymTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	variants := make([]string, 0, 2)
	for _, term := range keys {
		if !strings.Contains(lower, term) {
			continue
		}
		for _, synonym := range synonymTable[term] {
			variants = append(variants, replaceCaseInsensitive(question, term, synonym))
			if len(variants) == 2 {
				return variants
			}
		}
	}
	return variants
}

func replaceCaseInsensitive(text, old, replacement string) string {
	lowerText := strings.ToLower(text)
	lowerOld := strings.ToLower(old)
	idx := strings.Index(lowerText, lowerOld)
	if idx < 0 {
		return text
	}
	return text[:idx] + replacement + text[idx+len(old):]
}
