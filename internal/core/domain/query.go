package domain

import "regexp"

// Intent is a closed sum type over the eight question categories the
// analyser can produce. Kept as a string enum plus lookup tables rather than
// runtime string matching at hot paths (Stage 4's chunk-type filter, Stage 8's
// context budget).
type Intent string

const (
	IntentDocuments    Intent = "documents"
	IntentRequirements Intent = "requirements"
	IntentProcess      Intent = "process"
	IntentLegal        Intent = "legal"
	IntentTimeline     Intent = "timeline"
	IntentFees         Intent = "fees"
	IntentLocation     Intent = "location"
	IntentOverview     Intent = "overview"
)

// validIntents backs IsValidIntent without allocating on every call.
var validIntents = map[Intent]struct{}{
	IntentDocuments:    {},
	IntentRequirements: {},
	IntentProcess:      {},
	IntentLegal:        {},
	IntentTimeline:     {},
	IntentFees:         {},
	IntentLocation:     {},
	IntentOverview:     {},
}

// IsValidIntent reports whether intent is one of the eight closed categories.
func IsValidIntent(intent Intent) bool {
	_, ok := validIntents[intent]
	return ok
}

// chunkTypeFilterByIntent is the Stage 4 lookup table: which child chunk
// types satisfy each intent. Overview carries no filter (nil means "any").
var chunkTypeFilterByIntent = map[Intent][]ChunkType{
	IntentDocuments:    {ChunkTypeDocuments},
	IntentRequirements: {ChunkTypeRequirements},
	IntentProcess:      {ChunkTypeProcess},
	IntentLegal:        {ChunkTypeLegal},
	IntentTimeline:     {ChunkTypeFeesTiming},
	IntentFees:         {ChunkTypeFeesTiming},
	IntentLocation:     {ChunkTypeAgencies},
	IntentOverview:     nil,
}

// ChildChunkTypeFilter returns the Stage 4 chunk-type filter for intent.
// A nil, non-error return means "no filter" (the overview case).
func ChildChunkTypeFilter(intent Intent) []ChunkType {
	return chunkTypeFilterByIntent[intent]
}

// ContextConfig is the per-intent chunk/descendant/sibling budget consulted
// by the Context Assembler (Stage 8).
type ContextConfig struct {
	Chunks                 int
	MaxDescendants         int
	MaxSiblings            int
	IncludeParents         bool
	EnableStructuredOutput bool
}

// contextConfigByIntent is the exact table from spec section 6.
var contextConfigByIntent = map[Intent]ContextConfig{
	IntentDocuments:    {Chunks: 2, MaxDescendants: 5, MaxSiblings: 2, IncludeParents: true, EnableStructuredOutput: true},
	IntentFees:         {Chunks: 2, MaxDescendants: 3, MaxSiblings: 1, IncludeParents: true, EnableStructuredOutput: true},
	IntentProcess:      {Chunks: 2, MaxDescendants: 40, MaxSiblings: 5, IncludeParents: true, EnableStructuredOutput: true},
	IntentLegal:        {Chunks: 3, MaxDescendants: 4, MaxSiblings: 3, IncludeParents: true, EnableStructuredOutput: true},
	IntentTimeline:     {Chunks: 3, MaxDescendants: 4, MaxSiblings: 3, IncludeParents: true, EnableStructuredOutput: true},
	IntentRequirements: {Chunks: 2, MaxDescendants: 2, MaxSiblings: 3, IncludeParents: true, EnableStructuredOutput: true},
	IntentLocation:     {Chunks: 2, MaxDescendants: 3, MaxSiblings: 1, IncludeParents: true, EnableStructuredOutput: true},
	IntentOverview:     {Chunks: 3, MaxDescendants: 5, MaxSiblings: 2, IncludeParents: true, EnableStructuredOutput: false},
}

// ContextConfigFor returns the context budget for intent, defaulting to the
// overview budget for an unrecognised value.
func ContextConfigFor(intent Intent) ContextConfig {
	if cfg, ok := contextConfigByIntent[intent]; ok {
		return cfg
	}
	return contextConfigByIntent[IntentOverview]
}

// ProcedureCodePattern matches a procedure code like "1.013124" embedded in
// free text. Width resolved to \d{5,7} per DESIGN.md (the original source
// disagrees with itself between \d{5,6} and \d{5,7}).
var ProcedureCodePattern = regexp.MustCompile(`\b\d+\.\d{5,7}\b`)

// Source identifies which retrieval channel produced a RetrievedItem.
type Source string

const (
	SourceDense    Source = "dense"
	SourceLexical  Source = "lexical"
	SourceFused    Source = "fused"
	SourceReranked Source = "reranked"
)

// QueryPlan is the transient, per-request output of the Query Analyser.
type QueryPlan struct {
	RawQuestion            string
	Intent                 Intent
	IntentConfidence       float64
	Expansions             []string
	DetectedProcedureCode  string
	ContextConfig          ContextConfig
	EnableStructuredOutput bool
}
